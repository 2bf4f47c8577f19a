// Package billing is the core domain of the service: customers, invoices,
// invoice numbering and the settlement of incoming payments against
// outstanding dues.
package billing

import (
	"regexp"
	"strings"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Walk-in sentinel identity. Requests carrying this pair are resolved to the
// owner's singleton walk-in customer at the boundary; nothing below the
// boundary compares these strings again.
const (
	WalkInName  = "NA"
	WalkInPhone = "0000000000"
)

// WalkInIdentity is the sentinel name/phone pair checked at the boundary.
// Deployments may override the stock pair through configuration.
type WalkInIdentity struct {
	Name  string
	Phone string
}

// DefaultWalkInIdentity returns the stock sentinel pair
func DefaultWalkInIdentity() WalkInIdentity {
	return WalkInIdentity{Name: WalkInName, Phone: WalkInPhone}
}

// Matches reports whether the name/phone pair denotes an anonymous
// walk-in sale
func (w WalkInIdentity) Matches(name, phone string) bool {
	return strings.EqualFold(strings.TrimSpace(name), w.Name) &&
		strings.TrimSpace(phone) == w.Phone
}

// IsWalkInIdentity reports whether the pair matches the stock sentinel
func IsWalkInIdentity(name, phone string) bool {
	return DefaultWalkInIdentity().Matches(name, phone)
}

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{7,20}$`)

// Customer represents a buyer the shop has sold to at least once.
// A customer is identified by the (owner, name, phone) triple and is
// created lazily on the first sale to that identity; never deleted.
// Balance carries the due remaining on the customer's latest invoice.
type Customer struct {
	shared.OwnedAggregateRoot
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
	WalkIn  bool            `json:"walk_in"`
}

// NewCustomer creates a new identified customer with zero balance
func NewCustomer(ownerID uuid.UUID, name, phone, address string) (*Customer, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if err := validateCustomerName(name); err != nil {
		return nil, err
	}
	if err := validatePhone(phone); err != nil {
		return nil, err
	}

	c := &Customer{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(ownerID),
		Name:               strings.TrimSpace(name),
		Phone:              strings.TrimSpace(phone),
		Address:            strings.TrimSpace(address),
		Balance:            decimal.Zero,
	}

	c.AddDomainEvent(NewCustomerCreatedEvent(c))

	return c, nil
}

// NewWalkInCustomer creates the owner's singleton walk-in customer.
// Exactly one exists per owner; it absorbs all anonymous sales and its
// balance stays zero because anonymous sales are always fully paid.
func NewWalkInCustomer(ownerID uuid.UUID) (*Customer, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}

	c := &Customer{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(ownerID),
		Name:               WalkInName,
		Phone:              WalkInPhone,
		Balance:            decimal.Zero,
		WalkIn:             true,
	}

	c.AddDomainEvent(NewCustomerCreatedEvent(c))

	return c, nil
}

// SetBalance records the customer's current outstanding balance.
// Called only inside the sale transaction after settlement.
func (c *Customer) SetBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Customer balance cannot be negative")
	}
	if c.WalkIn && balance.GreaterThan(decimal.Zero) {
		return shared.NewDomainError("INVALID_STATE", "Walk-in customer cannot carry a balance")
	}

	old := c.Balance
	c.Balance = balance
	c.IncrementVersion()
	c.Touch()
	if !old.Equal(balance) {
		c.AddDomainEvent(NewCustomerBalanceChangedEvent(c, old))
	}

	return nil
}

// UpdateAddress replaces the customer's address
func (c *Customer) UpdateAddress(address string) {
	c.Address = strings.TrimSpace(address)
	c.Touch()
}

// MatchesIdentity reports whether the customer is the exact (name, phone) match
func (c *Customer) MatchesIdentity(name, phone string) bool {
	return c.Name == strings.TrimSpace(name) && c.Phone == strings.TrimSpace(phone)
}

// IsWalkIn returns true for the owner's anonymous walk-in customer
func (c *Customer) IsWalkIn() bool {
	return c.WalkIn
}

// HasBalance returns true if the customer carries an outstanding due
func (c *Customer) HasBalance() bool {
	return c.Balance.GreaterThan(decimal.Zero)
}

func validateCustomerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot exceed 200 characters")
	}
	return nil
}

func validatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return shared.NewDomainError("INVALID_PHONE", "Customer phone cannot be empty")
	}
	if !phonePattern.MatchString(phone) {
		return shared.NewDomainError("INVALID_PHONE", "Customer phone format is invalid")
	}
	return nil
}
