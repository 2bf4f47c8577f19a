package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/billing/backend/tests/testutil"
)

// invoiceRow is a minimal owner-scoped table for exercising WithOwner.
type invoiceRow struct {
	ID            uint
	OwnerID       string
	InvoiceNumber string
}

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	m := testutil.NewMockDB(t)
	return &Database{DB: m.DB}, m.Mock
}

func TestDatabase_WithOwner(t *testing.T) {
	t.Run("every query is filtered to the owner", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		ownerID := "550e8400-e29b-41d4-a716-446655440000"

		mock.ExpectQuery(`SELECT \* FROM "invoice_rows" WHERE owner_id = \$1`).
			WithArgs(ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "invoice_number"}).
				AddRow(1, ownerID, "KSC-20260831-001"))

		var rows []invoiceRow
		require.NoError(t, db.WithOwner(ownerID).Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.Equal(t, "KSC-20260831-001", rows[0].InvoiceNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("the base handle stays unscoped", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		base := db.DB

		scoped := db.WithOwner("owner-1")

		assert.NotEqual(t, base, scoped)
		assert.Equal(t, base, db.DB)
	})

	t.Run("an empty owner id is a programming error", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		assert.Panics(t, func() { db.WithOwner("") })
	})

	t.Run("a hostile owner id stays a bind parameter", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		ownerID := "owner'; DROP TABLE invoices; --"

		mock.ExpectQuery(`SELECT \* FROM "invoice_rows" WHERE owner_id = \$1`).
			WithArgs(ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "invoice_number"}))

		var rows []invoiceRow
		require.NoError(t, db.WithOwner(ownerID).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner filter composes with further clauses", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		ownerID := "owner-compose"

		mock.ExpectQuery(`SELECT \* FROM "invoice_rows" WHERE owner_id = \$1 AND invoice_number LIKE \$2 ORDER BY invoice_number ASC LIMIT \$3`).
			WithArgs(ownerID, "KSC-20260831-%", 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "invoice_number"}).
				AddRow(1, ownerID, "KSC-20260831-001").
				AddRow(2, ownerID, "KSC-20260831-002"))

		var rows []invoiceRow
		err := db.WithOwner(ownerID).
			Where("invoice_number LIKE ?", "KSC-20260831-%").
			Order("invoice_number ASC").
			Limit(10).
			Find(&rows).Error
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scopes for different owners are independent", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		assert.NotEqual(t, db.WithOwner("owner-1"), db.WithOwner("owner-2"))
	})
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits when the closure succeeds", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectBegin()
		// postgres INSERTs run as queries because of the RETURNING clause
		mock.ExpectQuery(`INSERT INTO "invoice_rows"`).
			WithArgs("owner-1", "KSC-20260831-003").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&invoiceRow{OwnerID: "owner-1", InvoiceNumber: "KSC-20260831-003"}).Error
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the closure fails", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _ := newMockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	// sqlmock reports a live pool, so the counters are merely sane
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Ping(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	// gorm pings once while opening
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectPing()
	db := &Database{DB: gormDB}
	require.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectClose()
	db := &Database{DB: gormDB}
	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
