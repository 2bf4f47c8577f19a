package billing

import (
	"sort"
	"time"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DueInvoice is a settlement target: an invoice with an unpaid balance.
// It is a detached snapshot, the allocator never mutates stored state.
type DueInvoice struct {
	ID               uuid.UUID
	InvoiceNumber    string
	AmountPaid       decimal.Decimal
	BalanceRemaining decimal.Decimal
	IssueDate        time.Time
	CreatedAt        time.Time
}

// Allocation is the portion of a payment applied to a single invoice
type Allocation struct {
	InvoiceID           uuid.UUID
	InvoiceNumber       string
	Amount              decimal.Decimal
	NewAmountPaid       decimal.Decimal
	NewBalanceRemaining decimal.Decimal
	NewStatus           InvoiceStatus
}

// SettlementResult is the complete outcome of allocating one payment
// across a customer's outstanding invoices
type SettlementResult struct {
	Allocations     []Allocation
	TotalAllocated  decimal.Decimal
	Remaining       decimal.Decimal
	FullyAllocated  bool
	InvoicesCleared []uuid.UUID
	InvoicesPartial []uuid.UUID
}

// SettleDues distributes a payment across outstanding invoices oldest-first.
// Invoices are ordered by issue date with creation time as tiebreak; each is
// cleared in full while the payment lasts, the last touched invoice may be
// cleared partially. A zero payment is a no-op. Leftover payment is reported
// in Remaining; what to do with it is the caller's policy.
func SettleDues(payment decimal.Decimal, dues []DueInvoice) (*SettlementResult, error) {
	if payment.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}

	result := &SettlementResult{
		Allocations:     make([]Allocation, 0),
		TotalAllocated:  decimal.Zero,
		Remaining:       payment,
		InvoicesCleared: make([]uuid.UUID, 0),
		InvoicesPartial: make([]uuid.UUID, 0),
	}
	if payment.IsZero() || len(dues) == 0 {
		result.FullyAllocated = payment.IsZero()
		return result, nil
	}

	sorted := make([]DueInvoice, len(dues))
	copy(sorted, dues)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].IssueDate.Equal(sorted[j].IssueDate) {
			return sorted[i].IssueDate.Before(sorted[j].IssueDate)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	remaining := payment
	for _, due := range sorted {
		if remaining.IsZero() {
			break
		}
		if due.BalanceRemaining.LessThanOrEqual(decimal.Zero) {
			continue
		}

		allocAmount := decimal.Min(remaining, due.BalanceRemaining)
		newBalance := due.BalanceRemaining.Sub(allocAmount)
		newStatus := InvoiceStatusDue
		if newBalance.IsZero() {
			newStatus = InvoiceStatusPaid
		}

		result.Allocations = append(result.Allocations, Allocation{
			InvoiceID:           due.ID,
			InvoiceNumber:       due.InvoiceNumber,
			Amount:              allocAmount,
			NewAmountPaid:       due.AmountPaid.Add(allocAmount),
			NewBalanceRemaining: newBalance,
			NewStatus:           newStatus,
		})

		result.TotalAllocated = result.TotalAllocated.Add(allocAmount)
		remaining = remaining.Sub(allocAmount)

		if newBalance.IsZero() {
			result.InvoicesCleared = append(result.InvoicesCleared, due.ID)
		} else {
			result.InvoicesPartial = append(result.InvoicesPartial, due.ID)
		}
	}

	result.Remaining = remaining
	result.FullyAllocated = remaining.IsZero()
	return result, nil
}

// LeftoverPolicy controls what happens to payment left over after every
// outstanding invoice has been cleared
type LeftoverPolicy string

const (
	// LeftoverPolicyIgnore reports the remainder back without applying it
	LeftoverPolicyIgnore LeftoverPolicy = "ignore"
	// LeftoverPolicyCredit records the remainder as a refund on the new invoice
	LeftoverPolicyCredit LeftoverPolicy = "credit"
)

// IsValid checks if the leftover policy is known
func (p LeftoverPolicy) IsValid() bool {
	switch p {
	case LeftoverPolicyIgnore, LeftoverPolicyCredit:
		return true
	}
	return false
}
