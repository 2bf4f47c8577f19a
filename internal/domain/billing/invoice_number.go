package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/billing/backend/internal/domain/shared"
)

// DefaultInvoicePrefix is the tag invoice numbers start with unless
// configured otherwise
const DefaultInvoicePrefix = "KSC"

// InvoiceDayPrefix returns the shared prefix of all invoice numbers issued
// on the given calendar day, e.g. "KSC-20260831-"
func InvoiceDayPrefix(prefix string, date time.Time) string {
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	return fmt.Sprintf("%s-%s-", prefix, date.Format("20060102"))
}

// FormatInvoiceNumber builds a full invoice number from its parts.
// The sequence is zero-padded to three digits; sequences beyond 999
// simply grow wider.
func FormatInvoiceNumber(prefix string, date time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", InvoiceDayPrefix(prefix, date), seq)
}

// ParseInvoiceSequence extracts the numeric sequence from an invoice number.
// Returns 0 when the number does not end in a parsable sequence, so the
// next issued sequence becomes 1.
func ParseInvoiceSequence(number string) int {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

// ValidateInvoiceNumber checks the <prefix>-<YYYYMMDD>-<seq> shape
func ValidateInvoiceNumber(number string) error {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number must have the form PREFIX-YYYYMMDD-SEQ")
	}
	if parts[0] == "" {
		return shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number prefix cannot be empty")
	}
	if _, err := time.Parse("20060102", parts[1]); err != nil {
		return shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number date segment is invalid")
	}
	if _, err := strconv.Atoi(parts[2]); err != nil {
		return shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number sequence segment is invalid")
	}
	return nil
}
