package billing

import (
	"context"
	"sort"
	"time"

	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExportService builds the grouped invoice export view
type ExportService struct {
	invoiceRepo billing.InvoiceRepository
}

// NewExportService creates a new ExportService
func NewExportService(invoiceRepo billing.InvoiceRepository) *ExportService {
	return &ExportService{invoiceRepo: invoiceRepo}
}

// ExportInvoices returns the owner's invoices in [from, to] grouped by
// customer, with per-customer subtotals and grand totals. Groups are ordered
// by customer name, rows by issue date within each group.
func (s *ExportService) ExportInvoices(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (*ExportInvoicesResult, error) {
	if to.Before(from) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Export range end must not be before its start")
	}

	invoices, err := s.invoiceRepo.FindByDateRange(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}

	groupIndex := make(map[uuid.UUID]*ExportCustomerGroup)
	order := make([]uuid.UUID, 0)
	for i := range invoices {
		inv := &invoices[i]
		group, ok := groupIndex[inv.CustomerID]
		if !ok {
			group = &ExportCustomerGroup{
				CustomerID:      inv.CustomerID,
				CustomerName:    inv.CustomerName,
				Rows:            make([]ExportInvoiceRow, 0, 4),
				SubtotalAmount:  decimal.Zero,
				SubtotalPaid:    decimal.Zero,
				SubtotalBalance: decimal.Zero,
			}
			groupIndex[inv.CustomerID] = group
			order = append(order, inv.CustomerID)
		}

		group.Rows = append(group.Rows, ExportInvoiceRow{
			InvoiceNumber:    inv.InvoiceNumber,
			IssueDate:        inv.IssueDate,
			SuperTotal:       inv.SuperTotal,
			AmountPaid:       inv.AmountPaid,
			BalanceRemaining: inv.BalanceRemaining,
			Status:           inv.Status.String(),
		})
		group.SubtotalAmount = group.SubtotalAmount.Add(inv.SuperTotal)
		group.SubtotalPaid = group.SubtotalPaid.Add(inv.AmountPaid)
		group.SubtotalBalance = group.SubtotalBalance.Add(inv.BalanceRemaining)
	}

	result := &ExportInvoicesResult{
		From:         from,
		To:           to,
		Groups:       make([]ExportCustomerGroup, 0, len(order)),
		TotalAmount:  decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalBalance: decimal.Zero,
		InvoiceCount: len(invoices),
	}
	for _, id := range order {
		group := groupIndex[id]
		result.Groups = append(result.Groups, *group)
		result.TotalAmount = result.TotalAmount.Add(group.SubtotalAmount)
		result.TotalPaid = result.TotalPaid.Add(group.SubtotalPaid)
		result.TotalBalance = result.TotalBalance.Add(group.SubtotalBalance)
	}
	sort.SliceStable(result.Groups, func(i, j int) bool {
		return result.Groups[i].CustomerName < result.Groups[j].CustomerName
	})

	return result, nil
}
