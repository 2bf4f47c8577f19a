package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists shop-owner accounts. Username lookups are
// case-insensitive; implementations return shared.ErrNotFound for misses
// and shared.ErrAlreadyExists for username collisions.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}
