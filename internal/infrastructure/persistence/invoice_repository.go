package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindByID finds an invoice by ID within an owner scope
func (r *GormInvoiceRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, ownerID uuid.UUID, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND invoice_number = ?", ownerID, number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOutstandingByCustomer returns the customer's invoices with a positive
// balance, oldest issue date first. This ordering is what makes settlement
// FIFO.
func (r *GormInvoiceRepository) FindOutstandingByCustomer(ctx context.Context, ownerID, customerID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND customer_id = ? AND balance_remaining > 0", ownerID, customerID).
		Order("issue_date ASC, created_at ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindByDateRange returns the owner's invoices issued in [from, to]
func (r *GormInvoiceRepository) FindByDateRange(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND issue_date >= ? AND issue_date <= ?", ownerID, from, to).
		Order("issue_date ASC, invoice_number ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// List returns the owner's invoices with pagination
func (r *GormInvoiceRepository) List(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Invoice], error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("owner_id = ?", ownerID)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number ILIKE ? OR customer_name ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	query = applyOrdering(query, filter, InvoiceSortFields, "issue_date DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var invoiceModels []models.InvoiceModel
	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}

	result := shared.NewPaginated(invoices, total, filter.Page, filter.PageSize)
	return &result, nil
}

// NextInvoiceNumber issues the next number for the day by reading the
// greatest existing number sharing the day's prefix. The read is racy on
// purpose: the unique index on (owner_id, invoice_number) catches the
// duplicate on save and the caller retries.
func (r *GormInvoiceRepository) NextInvoiceNumber(ctx context.Context, ownerID uuid.UUID, prefix string, date time.Time) (string, error) {
	dayPrefix := billing.InvoiceDayPrefix(prefix, date)

	// Ordering by length first keeps the sort numeric once a day's
	// sequence outgrows the three-digit padding ("-1000" after "-999").
	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("invoice_number").
		Where("owner_id = ? AND invoice_number LIKE ?", ownerID, dayPrefix+"%").
		Order("length(invoice_number) DESC, invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &maxNumber).Error; err != nil {
		return "", err
	}

	next := billing.ParseInvoiceSequence(maxNumber) + 1
	return billing.FormatInvoiceNumber(prefix, date, next), nil
}

// Save creates or updates an invoice. A duplicate invoice number surfaces
// as shared.ErrDuplicateNumber so the sale transaction can retry with a
// fresh number.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return shared.ErrDuplicateNumber
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// isDuplicateKeyError detects a unique-constraint violation across the
// postgres and sqlite drivers
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// applyOrdering applies the filter's ordering, restricted to the given
// field whitelist, with a fallback default
func applyOrdering(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool, defaultOrder string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowedFields, "")
	if field == "" {
		return query.Order(defaultOrder)
	}
	dir := "ASC"
	if strings.ToLower(filter.OrderDir) == "desc" {
		dir = "DESC"
	}
	return query.Order(field + " " + dir)
}

// Ensure GormInvoiceRepository implements billing.InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
