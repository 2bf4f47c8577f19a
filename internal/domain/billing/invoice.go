package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPaid InvoiceStatus = "paid" // Balance remaining is zero
	InvoiceStatusDue  InvoiceStatus = "due"  // Balance remaining is positive
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusDue
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// LineItem is a single sold item on an invoice.
// It is a value object within the Invoice aggregate, stored as JSONB.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Invoice represents a recorded sale and its settlement state.
// Amounts only move one way: AmountPaid grows, BalanceRemaining shrinks
// toward zero. Invoices are never deleted.
type Invoice struct {
	shared.OwnedAggregateRoot
	InvoiceNumber    string          `json:"invoice_number"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	IssueDate        time.Time       `json:"issue_date"`
	LineItems        LineItems       `json:"line_items"`
	GrossTotal       decimal.Decimal `json:"gross_total"`  // Sum of line amounts before tax
	TaxTotal         decimal.Decimal `json:"tax_total"`    // Fixed-split tax on the gross total
	SuperTotal       decimal.Decimal `json:"super_total"`  // Gross + tax, the amount the sale is worth
	PreviousDue      decimal.Decimal `json:"previous_due"` // Customer's outstanding dues at issue time
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
	Refund           decimal.Decimal `json:"refund"`
	GoodsReturn      decimal.Decimal `json:"goods_return"`
	Status           InvoiceStatus   `json:"status"`
	Salesperson      string          `json:"salesperson"`
	DocumentKey      string          `json:"document_key,omitempty"` // Object-storage key of the rendered PDF
}

// NewInvoiceParams carries the inputs for creating an invoice
type NewInvoiceParams struct {
	OwnerID       uuid.UUID
	InvoiceNumber string
	CustomerID    uuid.UUID
	CustomerName  string
	IssueDate     time.Time
	LineItems     LineItems
	GrossTotal    decimal.Decimal
	TaxTotal      decimal.Decimal
	SuperTotal    decimal.Decimal
	PreviousDue   decimal.Decimal
	AmountPaid    decimal.Decimal
	Refund        decimal.Decimal
	GoodsReturn   decimal.Decimal
	Salesperson   string
	Anonymous     bool
}

// NewInvoice creates a new invoice and derives its settlement state.
// Anonymous sales are always recorded as fully paid: the supplied paid
// amount is ignored, no previous due is carried and no refund applies.
// Otherwise the balance is max(0, superTotal - amountPaid) and the status
// is due exactly when a balance remains; overpayment leaves no balance and
// the invoice is recorded as paid.
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.OwnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if p.InvoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if p.CustomerName == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	if p.SuperTotal.IsNegative() || p.GrossTotal.IsNegative() || p.TaxTotal.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice totals cannot be negative")
	}
	if p.AmountPaid.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Paid amount cannot be negative")
	}
	if p.Refund.IsNegative() || p.GoodsReturn.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Refund and goods return cannot be negative")
	}

	issueDate := p.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	items := p.LineItems
	if items == nil {
		items = LineItems{}
	}

	inv := &Invoice{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(p.OwnerID),
		InvoiceNumber:      p.InvoiceNumber,
		CustomerID:         p.CustomerID,
		CustomerName:       p.CustomerName,
		IssueDate:          issueDate,
		LineItems:          items,
		GrossTotal:         p.GrossTotal,
		TaxTotal:           p.TaxTotal,
		SuperTotal:         p.SuperTotal,
		GoodsReturn:        p.GoodsReturn,
		Salesperson:        p.Salesperson,
	}

	if p.Anonymous {
		inv.PreviousDue = decimal.Zero
		inv.AmountPaid = p.SuperTotal
		inv.Refund = decimal.Zero
		inv.BalanceRemaining = decimal.Zero
		inv.Status = InvoiceStatusPaid
	} else {
		inv.PreviousDue = p.PreviousDue
		inv.AmountPaid = p.AmountPaid
		inv.Refund = p.Refund
		inv.BalanceRemaining = decimal.Max(decimal.Zero, p.SuperTotal.Sub(p.AmountPaid))
		if inv.BalanceRemaining.IsZero() {
			inv.Status = InvoiceStatusPaid
		} else {
			inv.Status = InvoiceStatusDue
		}
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// ApplyPayment applies part of an incoming payment to this invoice.
// The amount must be positive and cannot exceed the remaining balance.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if inv.Status != InvoiceStatusDue {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to %s invoice %s", inv.Status, inv.InvoiceNumber))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if amount.GreaterThan(inv.BalanceRemaining) {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Payment %s exceeds remaining balance %s", amount.String(), inv.BalanceRemaining.String()))
	}

	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.BalanceRemaining = inv.BalanceRemaining.Sub(amount)
	if inv.BalanceRemaining.IsZero() {
		inv.Status = InvoiceStatusPaid
		inv.AddDomainEvent(NewInvoicePaidEvent(inv, amount))
	} else {
		inv.AddDomainEvent(NewInvoicePartiallyPaidEvent(inv, amount))
	}
	inv.IncrementVersion()
	inv.Touch()

	return nil
}

// ApplyAllocation applies one allocator result to this invoice
func (inv *Invoice) ApplyAllocation(alloc Allocation) error {
	if alloc.InvoiceID != inv.ID {
		return shared.NewDomainError("INVALID_INPUT", "Allocation does not target this invoice")
	}
	return inv.ApplyPayment(alloc.Amount)
}

// AttachDocument records the object-storage key of the rendered PDF
func (inv *Invoice) AttachDocument(key string) error {
	if key == "" {
		return shared.NewDomainError("INVALID_INPUT", "Document key cannot be empty")
	}
	inv.DocumentKey = key
	inv.IncrementVersion()
	inv.Touch()
	return nil
}

// IsPaid returns true if nothing remains to be paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// HasBalance returns true if the invoice still carries a due
func (inv *Invoice) HasBalance() bool {
	return inv.BalanceRemaining.GreaterThan(decimal.Zero)
}

// AsDue converts the invoice into a settlement target snapshot
func (inv *Invoice) AsDue() DueInvoice {
	return DueInvoice{
		ID:               inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		AmountPaid:       inv.AmountPaid,
		BalanceRemaining: inv.BalanceRemaining,
		IssueDate:        inv.IssueDate,
		CreatedAt:        inv.CreatedAt,
	}
}
