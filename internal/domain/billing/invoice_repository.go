package billing

import (
	"context"
	"time"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceRepository defines the persistence interface for invoices
type InvoiceRepository interface {
	// FindByID finds an invoice by ID within an owner scope
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its invoice number
	FindByNumber(ctx context.Context, ownerID uuid.UUID, number string) (*Invoice, error)

	// FindOutstandingByCustomer returns the customer's invoices with a
	// positive balance, oldest issue date first
	FindOutstandingByCustomer(ctx context.Context, ownerID, customerID uuid.UUID) ([]Invoice, error)

	// FindByDateRange returns the owner's invoices issued in [from, to],
	// ordered by issue date then invoice number
	FindByDateRange(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]Invoice, error)

	// List returns the owner's invoices with pagination
	List(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (*shared.Paginated[Invoice], error)

	// NextInvoiceNumber issues the next number for the given day by reading
	// the greatest existing number with the day's prefix. Two concurrent
	// calls can observe the same latest number; the unique index on
	// (owner_id, invoice_number) turns that race into ErrDuplicateNumber
	// on save, which the caller retries.
	NextInvoiceNumber(ctx context.Context, ownerID uuid.UUID, prefix string, date time.Time) (string, error)

	// Save persists an invoice (insert or update)
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock persists an invoice with an optimistic version check
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}
