// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReceivablesMetricsProvider implements ReceivablesMetricsProvider using GORM.
// It queries the invoices table directly for aggregated metrics.
type GormReceivablesMetricsProvider struct {
	db *gorm.DB
}

// NewGormReceivablesMetricsProvider creates a new GormReceivablesMetricsProvider.
func NewGormReceivablesMetricsProvider(db *gorm.DB) *GormReceivablesMetricsProvider {
	return &GormReceivablesMetricsProvider{db: db}
}

// GetOutstandingBalance returns the sum of unsettled invoice balances for an owner.
func (p *GormReceivablesMetricsProvider) GetOutstandingBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.db.WithContext(ctx).
		Table("invoices").
		Select("COALESCE(SUM(balance_remaining), 0)").
		Where("owner_id = ? AND balance_remaining > 0", ownerID).
		Scan(&balance).Error

	return balance, err
}

// GetOpenInvoiceCount returns the number of invoices still carrying a balance for an owner.
func (p *GormReceivablesMetricsProvider) GetOpenInvoiceCount(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("invoices").
		Where("owner_id = ? AND balance_remaining > 0", ownerID).
		Count(&count).Error

	return count, err
}

// GormOwnerProvider implements OwnerProvider using GORM.
type GormOwnerProvider struct {
	db *gorm.DB
}

// NewGormOwnerProvider creates a new GormOwnerProvider.
func NewGormOwnerProvider(db *gorm.DB) *GormOwnerProvider {
	return &GormOwnerProvider{db: db}
}

// GetActiveOwnerIDs returns the IDs of users whose accounts are active.
func (p *GormOwnerProvider) GetActiveOwnerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("users").
		Select("id").
		Where("status = ?", "active").
		Find(&ids).Error

	return ids, err
}
