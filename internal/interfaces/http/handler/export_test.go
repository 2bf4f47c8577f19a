package handler

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	billingapp "github.com/billing/backend/internal/application/billing"
	"github.com/billing/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newExportTestStack(t *testing.T) (*ExportHandler, *MockInvoiceRepository) {
	t.Helper()
	invoiceRepo := new(MockInvoiceRepository)
	return NewExportHandler(billingapp.NewExportService(invoiceRepo)), invoiceRepo
}

func exportFixture(t *testing.T, ownerID uuid.UUID) []billing.Invoice {
	t.Helper()
	sharma := uuid.New()
	gupta := uuid.New()

	mkInvoice := func(customerID uuid.UUID, name, number string, total int64, day int) billing.Invoice {
		inv, err := billing.NewInvoice(billing.NewInvoiceParams{
			OwnerID:       ownerID,
			InvoiceNumber: number,
			CustomerID:    customerID,
			CustomerName:  name,
			IssueDate:     time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
			SuperTotal:    decimal.NewFromInt(total),
			GrossTotal:    decimal.NewFromInt(total),
		})
		require.NoError(t, err)
		return *inv
	}

	return []billing.Invoice{
		mkInvoice(sharma, "Sharma Traders", "KSC-20260805-001", 500, 5),
		mkInvoice(gupta, "Gupta Hardware", "KSC-20260812-001", 300, 12),
		mkInvoice(sharma, "Sharma Traders", "KSC-20260820-002", 200, 20),
	}
}

func TestExportHandler_ExportInvoices_JSON(t *testing.T) {
	ownerID := uuid.New()
	handler, invoiceRepo := newExportTestStack(t)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	invoiceRepo.On("FindByDateRange", mock.Anything, ownerID, from, to).
		Return(exportFixture(t, ownerID), nil)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/export/invoices", handler.ExportInvoices) })

	req := httptest.NewRequest(http.MethodGet, "/export/invoices?from=2026-08-01&to=2026-08-31", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data billingapp.ExportInvoicesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// Groups are ordered by customer name, rows by issue date
	require.Len(t, resp.Data.Groups, 2)
	assert.Equal(t, "Gupta Hardware", resp.Data.Groups[0].CustomerName)
	assert.Equal(t, "Sharma Traders", resp.Data.Groups[1].CustomerName)
	require.Len(t, resp.Data.Groups[1].Rows, 2)
	assert.Equal(t, "KSC-20260805-001", resp.Data.Groups[1].Rows[0].InvoiceNumber)
	assert.True(t, resp.Data.Groups[1].SubtotalAmount.Equal(decimal.NewFromInt(700)))
	assert.True(t, resp.Data.TotalAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 3, resp.Data.InvoiceCount)
}

func TestExportHandler_ExportInvoices_CSV(t *testing.T) {
	ownerID := uuid.New()
	handler, invoiceRepo := newExportTestStack(t)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	invoiceRepo.On("FindByDateRange", mock.Anything, ownerID, from, to).
		Return(exportFixture(t, ownerID), nil)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/export/invoices", handler.ExportInvoices) })

	req := httptest.NewRequest(http.MethodGet,
		"/export/invoices?from=2026-08-01&to=2026-08-31&format=csv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoices_20260801_20260831.csv")

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)

	// header + 3 invoices + 2 subtotals + grand total
	require.Len(t, rows, 7)
	assert.Equal(t, []string{
		"customer_name", "invoice_number", "issue_date",
		"super_total", "amount_paid", "balance_remaining", "status",
	}, rows[0])
	assert.Equal(t, "Gupta Hardware", rows[1][0])
	assert.Equal(t, "KSC-20260812-001", rows[1][1])
	assert.Equal(t, "subtotal", rows[2][1])
	assert.Equal(t, "300", rows[2][3])
	assert.Equal(t, "subtotal", rows[5][1])
	assert.Equal(t, "700", rows[5][3])
	assert.Equal(t, "total", rows[6][1])
	assert.Equal(t, "1000", rows[6][3])
}

func TestExportHandler_ExportInvoices_IncludesEndDate(t *testing.T) {
	ownerID := uuid.New()
	handler, invoiceRepo := newExportTestStack(t)

	lastDay, err := billing.NewInvoice(billing.NewInvoiceParams{
		OwnerID:       ownerID,
		InvoiceNumber: "KSC-20260820-009",
		CustomerID:    uuid.New(),
		CustomerName:  "Sharma Traders",
		IssueDate:     time.Date(2026, 8, 20, 18, 4, 0, 0, time.UTC),
		SuperTotal:    decimal.NewFromInt(150),
		GrossTotal:    decimal.NewFromInt(150),
	})
	require.NoError(t, err)

	// An invoice issued during the afternoon of the "to" day must fall
	// inside the queried range.
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 20, 23, 59, 59, 0, time.UTC)
	invoiceRepo.On("FindByDateRange", mock.Anything, ownerID, from, to).
		Return([]billing.Invoice{*lastDay}, nil)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/export/invoices", handler.ExportInvoices) })

	req := httptest.NewRequest(http.MethodGet, "/export/invoices?from=2026-08-01&to=2026-08-20", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data billingapp.ExportInvoicesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.InvoiceCount)
	invoiceRepo.AssertExpectations(t)
}

func TestExportHandler_ExportInvoices_BadRange(t *testing.T) {
	ownerID := uuid.New()
	handler, invoiceRepo := newExportTestStack(t)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/export/invoices", handler.ExportInvoices) })

	for _, query := range []string{
		"",
		"from=2026-08-01",
		"from=2026-08-01&to=bad",
		"from=2026-08-31&to=2026-08-01",
		"from=2026-08-01&to=2026-08-31&format=xml",
	} {
		req := httptest.NewRequest(http.MethodGet, "/export/invoices?"+query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
	invoiceRepo.AssertNotCalled(t, "FindByDateRange", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
