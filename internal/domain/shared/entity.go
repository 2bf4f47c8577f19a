// Package shared holds the domain building blocks common to all billing
// aggregates: entities, aggregate roots, domain errors and events.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything with an identity and a lifetime. Invoices, customers
// and users all satisfy it through BaseEntity.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity and timestamps every aggregate embeds.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity mints a fresh identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch advances UpdatedAt; mutating methods on the aggregates call it.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}
