package billing

import (
	"context"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerRepository defines the persistence interface for customers.
// All lookups are owner-scoped; a customer is never visible outside the
// shop user that created it.
type CustomerRepository interface {
	// FindByID finds a customer by ID within an owner scope
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*Customer, error)

	// FindByIdentity finds a customer by the exact (name, phone) pair
	FindByIdentity(ctx context.Context, ownerID uuid.UUID, name, phone string) (*Customer, error)

	// FindWalkIn finds the owner's singleton walk-in customer
	FindWalkIn(ctx context.Context, ownerID uuid.UUID) (*Customer, error)

	// Exists reports whether a customer with the identity pair exists
	Exists(ctx context.Context, ownerID uuid.UUID, name, phone string) (bool, error)

	// List returns the owner's customers with pagination
	List(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (*shared.Paginated[Customer], error)

	// Save persists a customer (insert or update)
	Save(ctx context.Context, customer *Customer) error

	// SaveWithLock persists a customer with an optimistic version check
	SaveWithLock(ctx context.Context, customer *Customer) error
}
