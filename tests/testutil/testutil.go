// Package testutil holds the test helpers shared across the billing
// backend's packages: a sqlmock-backed GORM handle for repository tests
// and stub domain events for event bus tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a GORM handle backed by sqlmock instead of a real database.
// Repository tests use it to pin down the SQL a query builds without
// needing Postgres.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a mocked GORM connection with the Postgres dialector.
// The connection is closed automatically when the test finishes.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "failed to open gorm over sqlmock")

	t.Cleanup(func() { _ = sqlDB.Close() })

	return &MockDB{
		DB:    gormDB,
		Mock:  mock,
		SqlDB: sqlDB,
	}
}

// ExpectationsWereMet fails the test when expected queries never ran
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}

// NewTestUUID derives a stable UUID from a seed so fixtures can be
// asserted by value across test runs
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestOwnerID is the shop owner used by fixtures that don't care which
func TestOwnerID() uuid.UUID {
	return NewTestUUID("test-owner")
}

// TestUserID is the user used by fixtures that don't care which
func TestUserID() uuid.UUID {
	return NewTestUUID("test-user")
}
