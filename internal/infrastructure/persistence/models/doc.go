// Package models holds the GORM table mappings for the billing schema.
// The domain aggregates stay free of ORM tags; each model here carries the
// column definitions and a pair of mappers to and from its domain type.
// base.go has the embedded building blocks, identity.go the shop user, and
// billing.go the customer and invoice tables.
package models
