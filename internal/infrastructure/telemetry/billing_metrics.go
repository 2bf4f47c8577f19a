// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics tracks invoice creation, payment settlement and the
// health of outstanding receivables.
type BillingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceCreatedTotal  *Counter
	invoiceAmountTotal   *Counter
	paymentAppliedTotal  *Counter
	numberCollisionTotal *Counter

	// Histogram metrics
	settlementDuration *Histogram

	// Gauge metrics (point-in-time values)
	outstandingBalance *Gauge
	openInvoiceCount   *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	receivablesProvider ReceivablesMetricsProvider
}

// ReceivablesMetricsProvider provides receivables data for periodic metrics
// collection. The interface keeps the telemetry layer off the billing domain.
type ReceivablesMetricsProvider interface {
	// GetOutstandingBalance returns the sum of unsettled invoice balances for an owner
	GetOutstandingBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)

	// GetOpenInvoiceCount returns the number of invoices still carrying a balance for an owner
	GetOpenInvoiceCount(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter               metric.Meter
	Logger              *zap.Logger
	CollectInterval     time.Duration // Default: 5 minutes
	ReceivablesProvider ReceivablesMetricsProvider
}

// NewBillingMetrics creates a new BillingMetrics instance.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		meter:               cfg.Meter,
		logger:              logger,
		stopChan:            make(chan struct{}),
		receivablesProvider: cfg.ReceivablesProvider,
	}

	var err error

	bm.invoiceCreatedTotal, err = NewCounter(
		cfg.Meter,
		"billing_invoice_created_total",
		"Total number of invoices created",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceAmountTotal, err = NewCounter(
		cfg.Meter,
		"billing_invoice_amount_total",
		"Total invoiced amount in the smallest currency unit",
		"{paise}",
	)
	if err != nil {
		return nil, err
	}

	bm.paymentAppliedTotal, err = NewCounter(
		cfg.Meter,
		"billing_payment_applied_total",
		"Total amount applied to outstanding invoices in the smallest currency unit",
		"{paise}",
	)
	if err != nil {
		return nil, err
	}

	bm.numberCollisionTotal, err = NewCounter(
		cfg.Meter,
		"billing_invoice_number_collision_total",
		"Number of invoice number collisions that forced a retry",
		"{collisions}",
	)
	if err != nil {
		return nil, err
	}

	bm.settlementDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billing_settlement_duration_seconds",
		Description: "Duration of the sale settlement transaction",
		Unit:        "s",
	})
	if err != nil {
		return nil, err
	}

	bm.outstandingBalance, err = NewGauge(
		cfg.Meter,
		"billing_outstanding_balance",
		"Sum of unsettled invoice balances in the smallest currency unit",
		"{paise}",
	)
	if err != nil {
		return nil, err
	}

	bm.openInvoiceCount, err = NewGauge(
		cfg.Meter,
		"billing_open_invoice_count",
		"Number of invoices still carrying a balance",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// SaleKind labels an invoice by how the customer was identified.
type SaleKind string

const (
	SaleKindRegistered SaleKind = "registered"
	SaleKindWalkIn     SaleKind = "walk_in"
)

// RecordInvoiceCreated records an invoice creation event.
func (bm *BillingMetrics) RecordInvoiceCreated(ctx context.Context, ownerID uuid.UUID, kind SaleKind, status string) {
	bm.invoiceCreatedTotal.Inc(ctx,
		AttrOwnerID.String(ownerID.String()),
		AttrSaleKind.String(string(kind)),
		AttrInvoiceStatus.String(status),
	)
}

// RecordInvoiceAmount records the invoiced amount in the smallest currency unit.
func (bm *BillingMetrics) RecordInvoiceAmount(ctx context.Context, ownerID uuid.UUID, kind SaleKind, amount decimal.Decimal) {
	paise := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.invoiceAmountTotal.Add(ctx, paise,
		AttrOwnerID.String(ownerID.String()),
		AttrSaleKind.String(string(kind)),
	)
}

// RecordInvoiceWithAmount records both the invoice count and its amount.
func (bm *BillingMetrics) RecordInvoiceWithAmount(ctx context.Context, ownerID uuid.UUID, kind SaleKind, status string, amount decimal.Decimal) {
	bm.RecordInvoiceCreated(ctx, ownerID, kind, status)
	bm.RecordInvoiceAmount(ctx, ownerID, kind, amount)
}

// RecordPaymentApplied records an amount allocated to outstanding invoices.
func (bm *BillingMetrics) RecordPaymentApplied(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal) {
	paise := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.paymentAppliedTotal.Add(ctx, paise,
		AttrOwnerID.String(ownerID.String()),
	)
}

// RecordNumberCollision records an invoice number collision that forced a retry.
func (bm *BillingMetrics) RecordNumberCollision(ctx context.Context, ownerID uuid.UUID) {
	bm.numberCollisionTotal.Inc(ctx,
		AttrOwnerID.String(ownerID.String()),
	)
}

// RecordSettlementDuration records how long a sale settlement transaction took.
func (bm *BillingMetrics) RecordSettlementDuration(ctx context.Context, ownerID uuid.UUID, d time.Duration) {
	bm.settlementDuration.RecordDuration(ctx, d,
		AttrOwnerID.String(ownerID.String()),
	)
}

// RecordOutstandingBalance records the owner's current total outstanding balance.
func (bm *BillingMetrics) RecordOutstandingBalance(ctx context.Context, ownerID uuid.UUID, balance decimal.Decimal) {
	paise := balance.Mul(decimal.NewFromInt(100)).IntPart()
	bm.outstandingBalance.Record(ctx, paise,
		AttrOwnerID.String(ownerID.String()),
	)
}

// RecordOpenInvoiceCount records the owner's current number of open invoices.
func (bm *BillingMetrics) RecordOpenInvoiceCount(ctx context.Context, ownerID uuid.UUID, count int64) {
	bm.openInvoiceCount.Record(ctx, count,
		AttrOwnerID.String(ownerID.String()),
	)
}

// OwnerProvider provides owner IDs for periodic metrics collection.
type OwnerProvider interface {
	GetActiveOwnerIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// Non-blocking; use Stop() to stop collection.
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, ownerProvider OwnerProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, ownerProvider, interval)
	})
}

func (bm *BillingMetrics) runPeriodicCollection(ctx context.Context, ownerProvider OwnerProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectReceivablesMetrics(ctx, ownerProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic billing metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic billing metrics collection")
			return
		case <-ticker.C:
			bm.collectReceivablesMetrics(ctx, ownerProvider)
		}
	}
}

func (bm *BillingMetrics) collectReceivablesMetrics(ctx context.Context, ownerProvider OwnerProvider) {
	if bm.receivablesProvider == nil {
		bm.logger.Debug("No receivables provider configured, skipping receivables metrics collection")
		return
	}

	ownerIDs, err := ownerProvider.GetActiveOwnerIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get owner IDs for metrics collection", zap.Error(err))
		return
	}

	for _, ownerID := range ownerIDs {
		bm.collectOwnerReceivablesMetrics(ctx, ownerID)
	}
}

func (bm *BillingMetrics) collectOwnerReceivablesMetrics(ctx context.Context, ownerID uuid.UUID) {
	balance, err := bm.receivablesProvider.GetOutstandingBalance(ctx, ownerID)
	if err != nil {
		bm.logger.Warn("Failed to get outstanding balance for owner",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordOutstandingBalance(ctx, ownerID, balance)
	}

	count, err := bm.receivablesProvider.GetOpenInvoiceCount(ctx, ownerID)
	if err != nil {
		bm.logger.Warn("Failed to get open invoice count for owner",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordOpenInvoiceCount(ctx, ownerID, count)
	}
}

// Stop stops the periodic collection.
func (bm *BillingMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
