package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrDuplicateSubmission is returned when a sale with the same idempotency
// key was already recorded within the idempotency window.
var ErrDuplicateSubmission = shared.NewDomainError("DUPLICATE_REQUEST", "A sale with this idempotency key was already recorded")

// SaleServiceConfig carries the tunable parts of sale recording
type SaleServiceConfig struct {
	// InvoicePrefix is the fixed tag in front of every invoice number
	InvoicePrefix string
	// NumberRetryAttempts bounds how often a sale is retried after an
	// invoice number collision or an optimistic lock conflict
	NumberRetryAttempts int
	// LeftoverPolicy decides what happens to payment left after all dues
	LeftoverPolicy billing.LeftoverPolicy
	// IdempotencyTTL is how long a processed idempotency key is remembered
	IdempotencyTTL time.Duration
}

// DefaultSaleServiceConfig returns the default sale service configuration
func DefaultSaleServiceConfig() SaleServiceConfig {
	return SaleServiceConfig{
		InvoicePrefix:       billing.DefaultInvoicePrefix,
		NumberRetryAttempts: 3,
		LeftoverPolicy:      billing.LeftoverPolicyIgnore,
		IdempotencyTTL:      24 * time.Hour,
	}
}

// SaleService records sales: it resolves the customer, numbers the invoice,
// settles the incoming payment against outstanding dues and persists the
// whole outcome as one transaction.
type SaleService struct {
	txScope      TransactionScope
	invoiceRepo  billing.InvoiceRepository
	customerRepo billing.CustomerRepository
	idempotency  shared.IdempotencyStore
	storage      DocumentStorage
	events       shared.EventPublisher
	metrics      *telemetry.BillingMetrics
	logger       *zap.Logger
	cfg          SaleServiceConfig
}

// NewSaleService creates a new SaleService
func NewSaleService(
	txScope TransactionScope,
	invoiceRepo billing.InvoiceRepository,
	customerRepo billing.CustomerRepository,
	cfg SaleServiceConfig,
	logger *zap.Logger,
) *SaleService {
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = billing.DefaultInvoicePrefix
	}
	if cfg.NumberRetryAttempts < 1 {
		cfg.NumberRetryAttempts = 1
	}
	if !cfg.LeftoverPolicy.IsValid() {
		cfg.LeftoverPolicy = billing.LeftoverPolicyIgnore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleService{
		txScope:      txScope,
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetIdempotencyStore enables duplicate submission detection
func (s *SaleService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetDocumentStorage enables invoice document upload and download
func (s *SaleService) SetDocumentStorage(storage DocumentStorage) {
	s.storage = storage
}

// SetEventPublisher enables domain event publication after a sale commits
func (s *SaleService) SetEventPublisher(events shared.EventPublisher) {
	s.events = events
}

// SetMetrics enables billing metrics recording
func (s *SaleService) SetMetrics(metrics *telemetry.BillingMetrics) {
	s.metrics = metrics
}

// CreateSale records a sale for the owner. The incoming payment is settled
// against the customer's outstanding invoices oldest-first, the new invoice
// derives its status from its own totals, and everything is persisted in a
// single transaction. Invoice number collisions and optimistic lock conflicts
// retry the whole transaction a bounded number of times.
func (s *SaleService) CreateSale(ctx context.Context, ownerID uuid.UUID, req CreateSaleRequest) (*CreateSaleResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	if err := validateCreateSale(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		processed, err := s.idempotency.IsProcessed(ctx, s.idempotencyKey(ownerID, req.IdempotencyKey))
		if err != nil {
			s.logger.Warn("idempotency check failed, continuing without it",
				zap.String("owner_id", ownerID.String()), zap.Error(err))
		} else if processed {
			return nil, ErrDuplicateSubmission
		}
	}

	started := time.Now()
	var result *CreateSaleResult
	var events []shared.DomainEvent
	var err error
	for attempt := 1; ; attempt++ {
		result, events, err = s.createSaleOnce(ctx, ownerID, req)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrDuplicateNumber) && !errors.Is(err, shared.ErrConcurrencyConflict) {
			telemetry.RecordError(span, err)
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.RecordNumberCollision(ctx, ownerID)
		}
		if attempt >= s.cfg.NumberRetryAttempts {
			s.logger.Warn("sale conflicted on every attempt",
				zap.String("owner_id", ownerID.String()),
				zap.Int("attempts", attempt),
				zap.Error(err))
			telemetry.RecordError(span, shared.ErrConcurrencyConflict)
			return nil, shared.ErrConcurrencyConflict
		}
		s.logger.Info("retrying sale after conflict",
			zap.String("owner_id", ownerID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if _, err := s.idempotency.MarkProcessed(ctx, s.idempotencyKey(ownerID, req.IdempotencyKey), s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("failed to mark sale idempotency key",
				zap.String("owner_id", ownerID.String()), zap.Error(err))
		}
	}

	if s.metrics != nil {
		kind := telemetry.SaleKindRegistered
		if req.Anonymous {
			kind = telemetry.SaleKindWalkIn
		}
		s.metrics.RecordInvoiceWithAmount(ctx, ownerID, kind, result.Invoice.Status, result.Invoice.SuperTotal)
		if result.AllocatedAmount.GreaterThan(decimal.Zero) {
			s.metrics.RecordPaymentApplied(ctx, ownerID, result.AllocatedAmount)
		}
		s.metrics.RecordSettlementDuration(ctx, ownerID, time.Since(started))
	}

	if s.events != nil && len(events) > 0 {
		if err := s.events.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish sale events",
				zap.String("owner_id", ownerID.String()), zap.Error(err))
		}
	}

	s.logger.Info("sale recorded",
		zap.String("owner_id", ownerID.String()),
		zap.String("invoice_number", result.Invoice.InvoiceNumber),
		zap.String("status", result.Invoice.Status),
		zap.Bool("anonymous", req.Anonymous))

	return result, nil
}

// createSaleOnce runs a single attempt of the sale transaction. Events raised
// by the touched aggregates are returned for publication once the transaction
// has committed; a rolled-back sale must not announce anything.
func (s *SaleService) createSaleOnce(ctx context.Context, ownerID uuid.UUID, req CreateSaleRequest) (*CreateSaleResult, []shared.DomainEvent, error) {
	var result *CreateSaleResult
	var events []shared.DomainEvent

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		customers := repos.CustomerRepo()
		invoices := repos.InvoiceRepo()

		customer, err := s.resolveCustomer(ctx, customers, ownerID, req)
		if err != nil {
			return err
		}

		issueDate := time.Now()
		if req.IssueDate != nil && !req.IssueDate.IsZero() {
			issueDate = *req.IssueDate
		}

		number, err := invoices.NextInvoiceNumber(ctx, ownerID, s.cfg.InvoicePrefix, issueDate)
		if err != nil {
			return err
		}

		previousDue := decimal.Zero
		settlement := &billing.SettlementResult{
			Allocations: []billing.Allocation{},
			Remaining:   req.AmountPaid,
		}
		var outstanding []billing.Invoice
		if !req.Anonymous {
			outstanding, err = invoices.FindOutstandingByCustomer(ctx, ownerID, customer.ID)
			if err != nil {
				return err
			}
			dues := make([]billing.DueInvoice, 0, len(outstanding))
			for i := range outstanding {
				dues = append(dues, outstanding[i].AsDue())
				previousDue = previousDue.Add(outstanding[i].BalanceRemaining)
			}
			settlement, err = billing.SettleDues(req.AmountPaid, dues)
			if err != nil {
				return err
			}
		}

		// Under the credit policy only payment beyond the dues and the new
		// invoice's own total becomes a refund; up to SuperTotal the new
		// invoice absorbs the remainder itself.
		refund := decimal.Zero
		if s.cfg.LeftoverPolicy == billing.LeftoverPolicyCredit {
			if excess := settlement.Remaining.Sub(req.SuperTotal); excess.GreaterThan(decimal.Zero) {
				refund = excess
			}
		}

		invoice, err := billing.NewInvoice(billing.NewInvoiceParams{
			OwnerID:       ownerID,
			InvoiceNumber: number,
			CustomerID:    customer.ID,
			CustomerName:  customer.Name,
			IssueDate:     issueDate,
			LineItems:     toLineItems(req.LineItems),
			GrossTotal:    req.GrossTotal,
			TaxTotal:      req.TaxTotal,
			SuperTotal:    req.SuperTotal,
			PreviousDue:   previousDue,
			AmountPaid:    req.AmountPaid,
			Refund:        refund,
			GoodsReturn:   req.GoodsReturn,
			Salesperson:   req.Salesperson,
			Anonymous:     req.Anonymous,
		})
		if err != nil {
			return err
		}

		if err := invoices.Save(ctx, invoice); err != nil {
			return err
		}

		allocations := make([]AllocationResponse, 0, len(settlement.Allocations))
		byID := make(map[uuid.UUID]*billing.Invoice, len(outstanding))
		for i := range outstanding {
			byID[outstanding[i].ID] = &outstanding[i]
		}
		for _, alloc := range settlement.Allocations {
			target, ok := byID[alloc.InvoiceID]
			if !ok {
				return fmt.Errorf("allocation targets unknown invoice %s", alloc.InvoiceID)
			}
			if err := target.ApplyAllocation(alloc); err != nil {
				return err
			}
			if err := invoices.SaveWithLock(ctx, target); err != nil {
				return err
			}
			allocations = append(allocations, AllocationResponse{
				InvoiceID:        alloc.InvoiceID,
				InvoiceNumber:    alloc.InvoiceNumber,
				Amount:           alloc.Amount,
				BalanceRemaining: alloc.NewBalanceRemaining,
				Status:           alloc.NewStatus.String(),
			})
		}

		if !req.Anonymous {
			if err := customer.SetBalance(invoice.BalanceRemaining); err != nil {
				return err
			}
			if err := customers.SaveWithLock(ctx, customer); err != nil {
				return err
			}
		}

		events = append(events, drainEvents(invoice)...)
		for _, alloc := range settlement.Allocations {
			events = append(events, drainEvents(byID[alloc.InvoiceID])...)
		}
		events = append(events, drainEvents(customer)...)

		result = &CreateSaleResult{
			Invoice:           ToInvoiceResponse(invoice),
			CustomerID:        customer.ID,
			CustomerBalance:   customer.Balance,
			Allocations:       allocations,
			AllocatedAmount:   settlement.TotalAllocated,
			UnallocatedAmount: settlement.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// drainEvents takes the pending events off an aggregate
func drainEvents(agg shared.AggregateRoot) []shared.DomainEvent {
	if agg == nil {
		return nil
	}
	pending := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	return pending
}

// resolveCustomer finds or creates the customer the sale is recorded against.
// Anonymous sales share the owner's singleton walk-in customer.
func (s *SaleService) resolveCustomer(
	ctx context.Context,
	customers billing.CustomerRepository,
	ownerID uuid.UUID,
	req CreateSaleRequest,
) (*billing.Customer, error) {
	if req.Anonymous {
		customer, err := customers.FindWalkIn(ctx, ownerID)
		if err == nil {
			return customer, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		customer, err = billing.NewWalkInCustomer(ownerID)
		if err != nil {
			return nil, err
		}
		if err := customers.Save(ctx, customer); err != nil {
			return nil, err
		}
		return customer, nil
	}

	customer, err := customers.FindByIdentity(ctx, ownerID, req.CustomerName, req.CustomerPhone)
	if err == nil {
		if req.CustomerAddress != "" && req.CustomerAddress != customer.Address {
			customer.UpdateAddress(req.CustomerAddress)
		}
		return customer, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	customer, err = billing.NewCustomer(ownerID, req.CustomerName, req.CustomerPhone, req.CustomerAddress)
	if err != nil {
		return nil, err
	}
	if err := customers.Save(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// GetInvoice returns a settled invoice read view
func (s *SaleService) GetInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(invoice)
	return &response, nil
}

// GetInvoiceByNumber returns an invoice by its invoice number
func (s *SaleService) GetInvoiceByNumber(ctx context.Context, ownerID uuid.UUID, number string) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByNumber(ctx, ownerID, number)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(invoice)
	return &response, nil
}

// ListInvoices retrieves the owner's invoices with pagination
func (s *SaleService) ListInvoices(ctx context.Context, ownerID uuid.UUID, filter InvoiceListFilter) (*shared.Paginated[InvoiceResponse], error) {
	if filter.From != nil && filter.To != nil {
		invoices, err := s.invoiceRepo.FindByDateRange(ctx, ownerID, *filter.From, *filter.To)
		if err != nil {
			return nil, err
		}
		items := make([]InvoiceResponse, 0, len(invoices))
		for i := range invoices {
			items = append(items, ToInvoiceResponse(&invoices[i]))
		}
		page := shared.NewPaginated(items, int64(len(items)), 1, max(len(items), 1))
		return &page, nil
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 {
		domainFilter.PageSize = 20
	}

	result, err := s.invoiceRepo.List(ctx, ownerID, domainFilter)
	if err != nil {
		return nil, err
	}
	items := make([]InvoiceResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, ToInvoiceResponse(&result.Items[i]))
	}
	page := shared.NewPaginated(items, result.Total, result.Page, result.PageSize)
	return &page, nil
}

// AttachDocument stores a rendered invoice document and records its key
func (s *SaleService) AttachDocument(ctx context.Context, ownerID, invoiceID uuid.UUID, document []byte, contentType string) (string, error) {
	if s.storage == nil {
		return "", shared.NewDomainError("STORAGE_DISABLED", "Document storage is not configured")
	}
	if len(document) == 0 {
		return "", shared.NewDomainError("INVALID_INPUT", "Document is empty")
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, ownerID, invoiceID)
	if err != nil {
		return "", err
	}

	key := documentKey(ownerID, invoice.InvoiceNumber)
	if err := s.storage.Upload(ctx, key, document, contentType); err != nil {
		return "", fmt.Errorf("failed to store invoice document: %w", err)
	}

	if err := invoice.AttachDocument(key); err != nil {
		return "", err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
		return "", err
	}

	s.logger.Info("invoice document attached",
		zap.String("owner_id", ownerID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("document_key", key))

	return key, nil
}

// GetInvoiceDocument returns a presigned download URL for the stored document
func (s *SaleService) GetInvoiceDocument(ctx context.Context, ownerID, invoiceID uuid.UUID, expiresIn time.Duration) (string, time.Time, error) {
	if s.storage == nil {
		return "", time.Time{}, shared.NewDomainError("STORAGE_DISABLED", "Document storage is not configured")
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, ownerID, invoiceID)
	if err != nil {
		return "", time.Time{}, err
	}
	if invoice.DocumentKey == "" {
		return "", time.Time{}, shared.ErrNotFound
	}

	return s.storage.GenerateDownloadURL(ctx, invoice.DocumentKey, expiresIn)
}

func (s *SaleService) idempotencyKey(ownerID uuid.UUID, key string) string {
	return ownerID.String() + ":" + key
}

// documentKey builds the per-owner object storage key for an invoice document
func documentKey(ownerID uuid.UUID, invoiceNumber string) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", ownerID.String(), invoiceNumber)
}

func toLineItems(inputs []LineItemInput) billing.LineItems {
	items := make(billing.LineItems, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, billing.LineItem{
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Amount:    in.Amount,
		})
	}
	return items
}

// validateCreateSale rejects invalid monetary and identification fields
// before any storage work happens
func validateCreateSale(req CreateSaleRequest) error {
	if !req.Anonymous {
		if req.CustomerName == "" {
			return shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name is required")
		}
		if req.CustomerPhone == "" {
			return shared.NewDomainError("INVALID_PHONE", "Customer phone is required")
		}
	}
	if req.SuperTotal.IsNegative() || req.GrossTotal.IsNegative() || req.TaxTotal.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Sale totals cannot be negative")
	}
	if req.AmountPaid.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Paid amount cannot be negative")
	}
	if req.GoodsReturn.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Goods return cannot be negative")
	}
	for _, item := range req.LineItems {
		if item.Name == "" {
			return shared.NewDomainError("INVALID_INPUT", "Line item name is required")
		}
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() || item.Amount.IsNegative() {
			return shared.NewDomainError("INVALID_AMOUNT", "Line item amounts cannot be negative")
		}
	}
	return nil
}
