package billing

import (
	"time"

	"github.com/billing/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Sale DTOs ====================

// LineItemInput represents one sold item in a create sale request
type LineItemInput struct {
	Name      string          `json:"name" binding:"required,min=1,max=200"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// CreateSaleRequest represents a request to record a sale.
// Anonymous is resolved at the HTTP boundary from the walk-in sentinel
// identity pair; services never compare sentinel strings.
type CreateSaleRequest struct {
	CustomerName    string           `json:"customer_name" binding:"required,min=1,max=200"`
	CustomerPhone   string           `json:"customer_phone" binding:"required,min=7,max=20"`
	CustomerAddress string           `json:"customer_address" binding:"max=500"`
	Anonymous       bool             `json:"anonymous"`
	LineItems       []LineItemInput  `json:"line_items"`
	GrossTotal      decimal.Decimal  `json:"gross_total"`
	TaxTotal        decimal.Decimal  `json:"tax_total"`
	SuperTotal      decimal.Decimal  `json:"super_total" binding:"required"`
	AmountPaid      decimal.Decimal  `json:"amount_paid"`
	GoodsReturn     decimal.Decimal  `json:"goods_return"`
	Salesperson     string           `json:"salesperson" binding:"max=100"`
	IssueDate       *time.Time       `json:"issue_date"`
	IdempotencyKey  string           `json:"idempotency_key" binding:"max=128"`
}

// AllocationResponse reports one slice of the payment applied to an
// outstanding invoice
type AllocationResponse struct {
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	Amount           decimal.Decimal `json:"amount"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
	Status           string          `json:"status"`
}

// CreateSaleResult is the outcome of recording a sale
type CreateSaleResult struct {
	Invoice           InvoiceResponse      `json:"invoice"`
	CustomerID        uuid.UUID            `json:"customer_id"`
	CustomerBalance   decimal.Decimal      `json:"customer_balance"`
	Allocations       []AllocationResponse `json:"allocations"`
	AllocatedAmount   decimal.Decimal      `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal      `json:"unallocated_amount"`
}

// ==================== Invoice DTOs ====================

// LineItemResponse represents one line item on an invoice
type LineItemResponse struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID               uuid.UUID          `json:"id"`
	InvoiceNumber    string             `json:"invoice_number"`
	CustomerID       uuid.UUID          `json:"customer_id"`
	CustomerName     string             `json:"customer_name"`
	IssueDate        time.Time          `json:"issue_date"`
	LineItems        []LineItemResponse `json:"line_items"`
	GrossTotal       decimal.Decimal    `json:"gross_total"`
	TaxTotal         decimal.Decimal    `json:"tax_total"`
	SuperTotal       decimal.Decimal    `json:"super_total"`
	PreviousDue      decimal.Decimal    `json:"previous_due"`
	AmountPaid       decimal.Decimal    `json:"amount_paid"`
	BalanceRemaining decimal.Decimal    `json:"balance_remaining"`
	Refund           decimal.Decimal    `json:"refund"`
	GoodsReturn      decimal.Decimal    `json:"goods_return"`
	Status           string             `json:"status"`
	Salesperson      string             `json:"salesperson,omitempty"`
	HasDocument      bool               `json:"has_document"`
	CreatedAt        time.Time          `json:"created_at"`
}

// ToInvoiceResponse converts a domain invoice to its response representation
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		items = append(items, LineItemResponse{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    item.Amount,
		})
	}

	return InvoiceResponse{
		ID:               inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		CustomerID:       inv.CustomerID,
		CustomerName:     inv.CustomerName,
		IssueDate:        inv.IssueDate,
		LineItems:        items,
		GrossTotal:       inv.GrossTotal,
		TaxTotal:         inv.TaxTotal,
		SuperTotal:       inv.SuperTotal,
		PreviousDue:      inv.PreviousDue,
		AmountPaid:       inv.AmountPaid,
		BalanceRemaining: inv.BalanceRemaining,
		Refund:           inv.Refund,
		GoodsReturn:      inv.GoodsReturn,
		Status:           inv.Status.String(),
		Salesperson:      inv.Salesperson,
		HasDocument:      inv.DocumentKey != "",
		CreatedAt:        inv.CreatedAt,
	}
}

// InvoiceListFilter represents filtering options for invoice listing
type InvoiceListFilter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	From     *time.Time
	To       *time.Time
}

// ==================== Customer DTOs ====================

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	WalkIn    bool            `json:"walk_in"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToCustomerResponse converts a domain customer to its response representation
func ToCustomerResponse(c *billing.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		Address:   c.Address,
		Balance:   c.Balance,
		WalkIn:    c.WalkIn,
		CreatedAt: c.CreatedAt,
	}
}

// ==================== Export DTOs ====================

// ExportInvoiceRow is one invoice row inside a customer group
type ExportInvoiceRow struct {
	InvoiceNumber    string          `json:"invoice_number"`
	IssueDate        time.Time       `json:"issue_date"`
	SuperTotal       decimal.Decimal `json:"super_total"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
	Status           string          `json:"status"`
}

// ExportCustomerGroup groups a customer's invoices with per-customer subtotals
type ExportCustomerGroup struct {
	CustomerID       uuid.UUID          `json:"customer_id"`
	CustomerName     string             `json:"customer_name"`
	Rows             []ExportInvoiceRow `json:"rows"`
	SubtotalAmount   decimal.Decimal    `json:"subtotal_amount"`
	SubtotalPaid     decimal.Decimal    `json:"subtotal_paid"`
	SubtotalBalance  decimal.Decimal    `json:"subtotal_balance"`
}

// ExportInvoicesResult is the grouped export view over a date range
type ExportInvoicesResult struct {
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Groups       []ExportCustomerGroup `json:"groups"`
	TotalAmount  decimal.Decimal       `json:"total_amount"`
	TotalPaid    decimal.Decimal       `json:"total_paid"`
	TotalBalance decimal.Decimal       `json:"total_balance"`
	InvoiceCount int                   `json:"invoice_count"`
}
