package models

import (
	"time"

	"github.com/billing/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for the Customer aggregate root.
// The unique index on (owner_id, name, phone) backs the registry's
// resolve-or-create idempotence.
type CustomerModel struct {
	OwnedAggregateModel
	Name    string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_customer_owner_identity,priority:2"`
	Phone   string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_customer_owner_identity,priority:3"`
	Address string          `gorm:"type:text"`
	Balance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	WalkIn  bool            `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *billing.Customer {
	c := &billing.Customer{
		Name:    m.Name,
		Phone:   m.Phone,
		Address: m.Address,
		Balance: m.Balance,
		WalkIn:  m.WalkIn,
	}
	m.PopulateOwnedAggregateRoot(&c.OwnedAggregateRoot)
	return c
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c *billing.Customer) {
	m.FromDomainOwnedAggregateRoot(c.OwnedAggregateRoot)
	m.Name = c.Name
	m.Phone = c.Phone
	m.Address = c.Address
	m.Balance = c.Balance
	m.WalkIn = c.WalkIn
}

// CustomerModelFromDomain builds a persistence model from a domain Customer
func CustomerModelFromDomain(c *billing.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The unique index on (owner_id, invoice_number) is what turns the
// read-latest-and-increment numbering race into a retryable conflict.
type InvoiceModel struct {
	OwnedAggregateModel
	InvoiceNumber    string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_owner_number,priority:2"`
	CustomerID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	CustomerName     string                `gorm:"type:varchar(200);not null"`
	IssueDate        time.Time             `gorm:"not null;index"`
	LineItems        billing.LineItems     `gorm:"type:jsonb;default:'[]'"`
	GrossTotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	TaxTotal         decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	SuperTotal       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	PreviousDue      decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	AmountPaid       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceRemaining decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0;index"`
	Refund           decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	GoodsReturn      decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Status           billing.InvoiceStatus `gorm:"type:varchar(10);not null;default:'due';index"`
	Salesperson      string                `gorm:"type:varchar(100)"`
	DocumentKey      string                `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:    m.InvoiceNumber,
		CustomerID:       m.CustomerID,
		CustomerName:     m.CustomerName,
		IssueDate:        m.IssueDate,
		LineItems:        m.LineItems,
		GrossTotal:       m.GrossTotal,
		TaxTotal:         m.TaxTotal,
		SuperTotal:       m.SuperTotal,
		PreviousDue:      m.PreviousDue,
		AmountPaid:       m.AmountPaid,
		BalanceRemaining: m.BalanceRemaining,
		Refund:           m.Refund,
		GoodsReturn:      m.GoodsReturn,
		Status:           m.Status,
		Salesperson:      m.Salesperson,
		DocumentKey:      m.DocumentKey,
	}
	m.PopulateOwnedAggregateRoot(&inv.OwnedAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainOwnedAggregateRoot(inv.OwnedAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.CustomerName = inv.CustomerName
	m.IssueDate = inv.IssueDate
	m.LineItems = inv.LineItems
	m.GrossTotal = inv.GrossTotal
	m.TaxTotal = inv.TaxTotal
	m.SuperTotal = inv.SuperTotal
	m.PreviousDue = inv.PreviousDue
	m.AmountPaid = inv.AmountPaid
	m.BalanceRemaining = inv.BalanceRemaining
	m.Refund = inv.Refund
	m.GoodsReturn = inv.GoodsReturn
	m.Status = inv.Status
	m.Salesperson = inv.Salesperson
	m.DocumentKey = inv.DocumentKey
}

// InvoiceModelFromDomain builds a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
