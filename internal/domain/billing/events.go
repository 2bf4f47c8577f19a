package billing

import (
	"time"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerCreatedEvent is raised when a new customer record is created
type CustomerCreatedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	WalkIn     bool      `json:"walk_in"`
}

// EventType returns the event type name
func (e *CustomerCreatedEvent) EventType() string {
	return "CustomerCreated"
}

// NewCustomerCreatedEvent creates a new CustomerCreatedEvent
func NewCustomerCreatedEvent(c *Customer) *CustomerCreatedEvent {
	return &CustomerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CustomerCreated", "Customer", c.ID, c.OwnerID),
		CustomerID:      c.ID,
		Name:            c.Name,
		Phone:           c.Phone,
		WalkIn:          c.WalkIn,
	}
}

// CustomerBalanceChangedEvent is raised when a customer's outstanding balance moves
type CustomerBalanceChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID       `json:"customer_id"`
	Name       string          `json:"name"`
	OldBalance decimal.Decimal `json:"old_balance"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// EventType returns the event type name
func (e *CustomerBalanceChangedEvent) EventType() string {
	return "CustomerBalanceChanged"
}

// NewCustomerBalanceChangedEvent creates a new CustomerBalanceChangedEvent
func NewCustomerBalanceChangedEvent(c *Customer, oldBalance decimal.Decimal) *CustomerBalanceChangedEvent {
	return &CustomerBalanceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CustomerBalanceChanged", "Customer", c.ID, c.OwnerID),
		CustomerID:      c.ID,
		Name:            c.Name,
		OldBalance:      oldBalance,
		NewBalance:      c.Balance,
	}
}

// InvoiceCreatedEvent is raised when a sale is recorded
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	SuperTotal       decimal.Decimal `json:"super_total"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
	Status           InvoiceStatus   `json:"status"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID, inv.OwnerID),
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		CustomerID:       inv.CustomerID,
		CustomerName:     inv.CustomerName,
		SuperTotal:       inv.SuperTotal,
		AmountPaid:       inv.AmountPaid,
		BalanceRemaining: inv.BalanceRemaining,
		Status:           inv.Status,
	}
}

// InvoicePaidEvent is raised when an invoice's balance reaches zero
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaidAt        time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return "InvoicePaid"
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, payment decimal.Decimal) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaid", "Invoice", inv.ID, inv.OwnerID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		PaymentAmount:   payment,
		AmountPaid:      inv.AmountPaid,
		PaidAt:          time.Now(),
	}
}

// InvoicePartiallyPaidEvent is raised when a payment reduces but does not
// clear an invoice's balance
type InvoicePartiallyPaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
}

// EventType returns the event type name
func (e *InvoicePartiallyPaidEvent) EventType() string {
	return "InvoicePartiallyPaid"
}

// NewInvoicePartiallyPaidEvent creates a new InvoicePartiallyPaidEvent
func NewInvoicePartiallyPaidEvent(inv *Invoice, payment decimal.Decimal) *InvoicePartiallyPaidEvent {
	return &InvoicePartiallyPaidEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("InvoicePartiallyPaid", "Invoice", inv.ID, inv.OwnerID),
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		CustomerID:       inv.CustomerID,
		PaymentAmount:    payment,
		BalanceRemaining: inv.BalanceRemaining,
	}
}
