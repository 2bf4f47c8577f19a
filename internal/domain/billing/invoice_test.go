package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInvoiceParams() NewInvoiceParams {
	return NewInvoiceParams{
		OwnerID:       uuid.New(),
		InvoiceNumber: "KSC-20260310-001",
		CustomerID:    uuid.New(),
		CustomerName:  "Sharma Traders",
		IssueDate:     time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
		LineItems: LineItems{
			{Name: "Cement bag", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(90), Amount: decimal.NewFromInt(900)},
		},
		GrossTotal: decimal.NewFromInt(900),
		TaxTotal:   decimal.NewFromInt(100),
		SuperTotal: decimal.NewFromInt(1000),
		AmountPaid: decimal.NewFromInt(400),
	}
}

func TestNewInvoice(t *testing.T) {
	t.Run("partial payment leaves a due invoice", func(t *testing.T) {
		inv, err := NewInvoice(validInvoiceParams())
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusDue, inv.Status)
		assert.True(t, inv.BalanceRemaining.Equal(decimal.NewFromInt(600)))
		assert.True(t, inv.AmountPaid.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, 1, inv.Version)
		assert.Len(t, inv.GetDomainEvents(), 1)
	})

	t.Run("full payment is recorded as paid", func(t *testing.T) {
		p := validInvoiceParams()
		p.AmountPaid = decimal.NewFromInt(1000)
		inv, err := NewInvoice(p)
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.BalanceRemaining.IsZero())
	})

	t.Run("overpayment leaves no balance and no due", func(t *testing.T) {
		p := validInvoiceParams()
		p.AmountPaid = decimal.NewFromInt(1200)
		inv, err := NewInvoice(p)
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.BalanceRemaining.IsZero())
	})

	t.Run("anonymous sale ignores the supplied paid amount", func(t *testing.T) {
		p := validInvoiceParams()
		p.Anonymous = true
		p.AmountPaid = decimal.NewFromInt(400)
		p.PreviousDue = decimal.NewFromInt(750)
		p.Refund = decimal.NewFromInt(20)
		inv, err := NewInvoice(p)
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.AmountPaid.Equal(decimal.NewFromInt(1000)))
		assert.True(t, inv.BalanceRemaining.IsZero())
		assert.True(t, inv.PreviousDue.IsZero())
		assert.True(t, inv.Refund.IsZero())
	})

	t.Run("empty invoice number is rejected", func(t *testing.T) {
		p := validInvoiceParams()
		p.InvoiceNumber = ""
		_, err := NewInvoice(p)
		assert.Error(t, err)
	})

	t.Run("negative paid amount is rejected", func(t *testing.T) {
		p := validInvoiceParams()
		p.AmountPaid = decimal.NewFromInt(-5)
		_, err := NewInvoice(p)
		assert.Error(t, err)
	})

	t.Run("negative totals are rejected", func(t *testing.T) {
		p := validInvoiceParams()
		p.SuperTotal = decimal.NewFromInt(-1000)
		_, err := NewInvoice(p)
		assert.Error(t, err)
	})

	t.Run("missing issue date defaults to now", func(t *testing.T) {
		p := validInvoiceParams()
		p.IssueDate = time.Time{}
		inv, err := NewInvoice(p)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), inv.IssueDate, time.Minute)
	})
}

func TestInvoiceApplyPayment(t *testing.T) {
	newDueInvoice := func(t *testing.T) *Invoice {
		t.Helper()
		inv, err := NewInvoice(validInvoiceParams())
		require.NoError(t, err)
		inv.ClearDomainEvents()
		return inv
	}

	t.Run("partial payment keeps the invoice due", func(t *testing.T) {
		inv := newDueInvoice(t)
		err := inv.ApplyPayment(decimal.NewFromInt(100))
		require.NoError(t, err)

		assert.True(t, inv.AmountPaid.Equal(decimal.NewFromInt(500)))
		assert.True(t, inv.BalanceRemaining.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, InvoiceStatusDue, inv.Status)
		assert.Equal(t, 2, inv.Version)
		require.Len(t, inv.GetDomainEvents(), 1)
		assert.Equal(t, "InvoicePartiallyPaid", inv.GetDomainEvents()[0].EventType())
	})

	t.Run("clearing payment marks the invoice paid", func(t *testing.T) {
		inv := newDueInvoice(t)
		err := inv.ApplyPayment(decimal.NewFromInt(600))
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.BalanceRemaining.IsZero())
		require.Len(t, inv.GetDomainEvents(), 1)
		assert.Equal(t, "InvoicePaid", inv.GetDomainEvents()[0].EventType())
	})

	t.Run("payment above the balance is rejected", func(t *testing.T) {
		inv := newDueInvoice(t)
		err := inv.ApplyPayment(decimal.NewFromInt(601))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds remaining balance")
	})

	t.Run("zero payment is rejected", func(t *testing.T) {
		inv := newDueInvoice(t)
		err := inv.ApplyPayment(decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("paid invoice accepts no further payment", func(t *testing.T) {
		inv := newDueInvoice(t)
		require.NoError(t, inv.ApplyPayment(decimal.NewFromInt(600)))
		err := inv.ApplyPayment(decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("ApplyAllocation rejects a mismatched invoice", func(t *testing.T) {
		inv := newDueInvoice(t)
		err := inv.ApplyAllocation(Allocation{InvoiceID: uuid.New(), Amount: decimal.NewFromInt(10)})
		assert.Error(t, err)
	})

	t.Run("ApplyAllocation applies the allocator output", func(t *testing.T) {
		inv := newDueInvoice(t)
		result, err := SettleDues(decimal.NewFromInt(600), []DueInvoice{inv.AsDue()})
		require.NoError(t, err)
		require.Len(t, result.Allocations, 1)

		require.NoError(t, inv.ApplyAllocation(result.Allocations[0]))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.BalanceRemaining.IsZero())
	})
}

func TestInvoiceAttachDocument(t *testing.T) {
	t.Run("records the storage key", func(t *testing.T) {
		inv, err := NewInvoice(validInvoiceParams())
		require.NoError(t, err)

		require.NoError(t, inv.AttachDocument("invoices/owner/KSC-20260310-001.pdf"))
		assert.Equal(t, "invoices/owner/KSC-20260310-001.pdf", inv.DocumentKey)
		assert.Equal(t, 2, inv.Version)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		inv, err := NewInvoice(validInvoiceParams())
		require.NoError(t, err)
		assert.Error(t, inv.AttachDocument(""))
	})
}

func TestInvoiceStatus(t *testing.T) {
	t.Run("IsValid accepts the two statuses", func(t *testing.T) {
		assert.True(t, InvoiceStatusPaid.IsValid())
		assert.True(t, InvoiceStatusDue.IsValid())
		assert.False(t, InvoiceStatus("pending").IsValid())
	})
}
