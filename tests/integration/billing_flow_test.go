package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	billingapp "github.com/billing/backend/internal/application/billing"
	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newSaleService wires a SaleService against the test database the same
// way cmd/server does, minus telemetry and idempotency storage.
func newSaleService(testDB *TestDB) (*billingapp.SaleService, *persistence.GormCustomerRepository, *persistence.GormInvoiceRepository) {
	customerRepo := persistence.NewGormCustomerRepository(testDB.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(testDB.DB)
	txScope := persistence.NewGormTransactionScope(testDB.DB)
	svc := billingapp.NewSaleService(txScope, invoiceRepo, customerRepo, billingapp.DefaultSaleServiceConfig(), zap.NewNop())
	return svc, customerRepo, invoiceRepo
}

func saleOn(day time.Time, superTotal, amountPaid int64) billingapp.CreateSaleRequest {
	return billingapp.CreateSaleRequest{
		CustomerName:  "Sharma Traders",
		CustomerPhone: "9876543210",
		LineItems: []billingapp.LineItemInput{
			{Name: "Cement bag", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(superTotal), Amount: decimal.NewFromInt(superTotal)},
		},
		GrossTotal: decimal.NewFromInt(superTotal),
		SuperTotal: decimal.NewFromInt(superTotal),
		AmountPaid: decimal.NewFromInt(amountPaid),
		IssueDate:  &day,
	}
}

// TestSaleSettlement_Integration drives the full sale flow against a real
// PostgreSQL database: credit sales build up dues, a later payment clears
// them oldest first, and the persisted rows reflect the settlement.
func TestSaleSettlement_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc, customerRepo, invoiceRepo := newSaleService(testDB)
	ctx := context.Background()
	ownerID := uuid.New()

	day10 := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)
	day20 := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	day31 := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	// First credit sale creates the customer and leaves the full amount due.
	first, err := svc.CreateSale(ctx, ownerID, saleOn(day10, 500, 0))
	require.NoError(t, err)
	assert.Equal(t, "KSC-20260810-001", first.Invoice.InvoiceNumber)
	assert.Equal(t, "due", first.Invoice.Status)
	assert.True(t, first.Invoice.BalanceRemaining.Equal(decimal.NewFromInt(500)))
	assert.Empty(t, first.Allocations)

	customer, err := customerRepo.FindByIdentity(ctx, ownerID, "Sharma Traders", "9876543210")
	require.NoError(t, err)
	assert.Equal(t, first.CustomerID, customer.ID)
	assert.True(t, customer.Balance.Equal(decimal.NewFromInt(500)))

	// Second credit sale carries the first invoice's due forward.
	second, err := svc.CreateSale(ctx, ownerID, saleOn(day20, 300, 0))
	require.NoError(t, err)
	assert.Equal(t, "KSC-20260820-001", second.Invoice.InvoiceNumber)
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.True(t, second.Invoice.PreviousDue.Equal(decimal.NewFromInt(500)))
	assert.True(t, second.Invoice.BalanceRemaining.Equal(decimal.NewFromInt(300)))

	// A payment of 600 alongside the third sale clears the oldest invoice
	// in full and the next one partially.
	third, err := svc.CreateSale(ctx, ownerID, saleOn(day31, 1000, 600))
	require.NoError(t, err)
	assert.True(t, third.Invoice.PreviousDue.Equal(decimal.NewFromInt(800)))
	assert.True(t, third.Invoice.BalanceRemaining.Equal(decimal.NewFromInt(400)))
	assert.True(t, third.AllocatedAmount.Equal(decimal.NewFromInt(600)))
	assert.True(t, third.UnallocatedAmount.IsZero())

	require.Len(t, third.Allocations, 2)
	assert.Equal(t, "KSC-20260810-001", third.Allocations[0].InvoiceNumber)
	assert.True(t, third.Allocations[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "paid", third.Allocations[0].Status)
	assert.Equal(t, "KSC-20260820-001", third.Allocations[1].InvoiceNumber)
	assert.True(t, third.Allocations[1].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "due", third.Allocations[1].Status)

	// The settlement must be persisted, not just reported.
	settled, err := invoiceRepo.FindByNumber(ctx, ownerID, "KSC-20260810-001")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPaid, settled.Status)
	assert.True(t, settled.BalanceRemaining.IsZero())

	partial, err := invoiceRepo.FindByNumber(ctx, ownerID, "KSC-20260820-001")
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusDue, partial.Status)
	assert.True(t, partial.BalanceRemaining.Equal(decimal.NewFromInt(200)))

	outstanding, err := invoiceRepo.FindOutstandingByCustomer(ctx, ownerID, customer.ID)
	require.NoError(t, err)
	require.Len(t, outstanding, 2)
	assert.Equal(t, "KSC-20260820-001", outstanding[0].InvoiceNumber)
	assert.Equal(t, third.Invoice.InvoiceNumber, outstanding[1].InvoiceNumber)

	customer, err = customerRepo.FindByID(ctx, ownerID, customer.ID)
	require.NoError(t, err)
	assert.True(t, customer.Balance.Equal(decimal.NewFromInt(400)))

	// Another owner never sees these rows.
	_, err = invoiceRepo.FindByNumber(ctx, uuid.New(), "KSC-20260810-001")
	assert.Error(t, err)
}

// TestInvoiceNumbering_Integration verifies the per-day sequence restarts
// each day and stays dense within a day.
func TestInvoiceNumbering_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc, _, invoiceRepo := newSaleService(testDB)
	ctx := context.Background()
	ownerID := uuid.New()

	day := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		req := saleOn(day, 100, 100)
		req.Anonymous = true
		result, err := svc.CreateSale(ctx, ownerID, req)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("KSC-20260815-%03d", i), result.Invoice.InvoiceNumber)
	}

	nextDay := day.AddDate(0, 0, 1)
	req := saleOn(nextDay, 100, 100)
	req.Anonymous = true
	result, err := svc.CreateSale(ctx, ownerID, req)
	require.NoError(t, err)
	assert.Equal(t, "KSC-20260816-001", result.Invoice.InvoiceNumber)

	// Independent owners keep independent sequences for the same day.
	otherOwner := uuid.New()
	req = saleOn(day, 100, 100)
	req.Anonymous = true
	result, err = svc.CreateSale(ctx, otherOwner, req)
	require.NoError(t, err)
	assert.Equal(t, "KSC-20260815-001", result.Invoice.InvoiceNumber)

	number, err := invoiceRepo.NextInvoiceNumber(ctx, ownerID, "KSC", day)
	require.NoError(t, err)
	assert.Equal(t, "KSC-20260815-004", number)
}

// TestWalkInCustomer_Integration checks that anonymous sales share the
// owner's single walk-in customer and are always recorded fully paid.
func TestWalkInCustomer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc, customerRepo, _ := newSaleService(testDB)
	ctx := context.Background()
	ownerID := uuid.New()

	day := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)

	req := saleOn(day, 250, 0)
	req.Anonymous = true
	first, err := svc.CreateSale(ctx, ownerID, req)
	require.NoError(t, err)
	assert.Equal(t, "paid", first.Invoice.Status)
	assert.True(t, first.Invoice.BalanceRemaining.IsZero())
	assert.True(t, first.Invoice.AmountPaid.Equal(decimal.NewFromInt(250)))

	req = saleOn(day, 120, 0)
	req.Anonymous = true
	second, err := svc.CreateSale(ctx, ownerID, req)
	require.NoError(t, err)
	assert.Equal(t, first.CustomerID, second.CustomerID)

	walkIn, err := customerRepo.FindWalkIn(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, first.CustomerID, walkIn.ID)
	assert.True(t, walkIn.WalkIn)
	assert.Equal(t, billing.WalkInName, walkIn.Name)
	assert.Equal(t, billing.WalkInPhone, walkIn.Phone)

	// The walk-in sentinel identity in a named request resolves to the
	// same shared customer instead of creating a lookalike.
	req = saleOn(day, 80, 80)
	req.CustomerName = billing.WalkInName
	req.CustomerPhone = billing.WalkInPhone
	req.Anonymous = true
	third, err := svc.CreateSale(ctx, ownerID, req)
	require.NoError(t, err)
	assert.Equal(t, walkIn.ID, third.CustomerID)
}

// TestExportInvoices_Integration seeds sales for two customers and checks
// the grouped export totals computed over real rows.
func TestExportInvoices_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc, _, invoiceRepo := newSaleService(testDB)
	exportSvc := billingapp.NewExportService(invoiceRepo)
	ctx := context.Background()
	ownerID := uuid.New()

	day5 := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	day12 := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)
	day20 := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	_, err := svc.CreateSale(ctx, ownerID, saleOn(day5, 500, 500))
	require.NoError(t, err)

	guptaSale := saleOn(day12, 300, 0)
	guptaSale.CustomerName = "Gupta Hardware"
	guptaSale.CustomerPhone = "9811112222"
	_, err = svc.CreateSale(ctx, ownerID, guptaSale)
	require.NoError(t, err)

	_, err = svc.CreateSale(ctx, ownerID, saleOn(day20, 200, 200))
	require.NoError(t, err)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	result, err := exportSvc.ExportInvoices(ctx, ownerID, from, to)
	require.NoError(t, err)

	assert.Equal(t, 3, result.InvoiceCount)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(1000)))
	require.Len(t, result.Groups, 2)

	// Groups come back sorted by customer name.
	assert.Equal(t, "Gupta Hardware", result.Groups[0].CustomerName)
	assert.True(t, result.Groups[0].SubtotalAmount.Equal(decimal.NewFromInt(300)))
	assert.True(t, result.Groups[0].SubtotalBalance.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, "Sharma Traders", result.Groups[1].CustomerName)
	require.Len(t, result.Groups[1].Rows, 2)
	assert.True(t, result.Groups[1].SubtotalAmount.Equal(decimal.NewFromInt(500+200)))
	assert.True(t, result.Groups[1].SubtotalPaid.Equal(decimal.NewFromInt(700)))

	// A window past the data comes back empty rather than erroring.
	empty, err := exportSvc.ExportInvoices(ctx, ownerID, to.AddDate(0, 1, 0), to.AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Zero(t, empty.InvoiceCount)
	assert.Empty(t, empty.Groups)
}
