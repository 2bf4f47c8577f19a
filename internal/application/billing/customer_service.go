package billing

import (
	"context"

	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerService handles customer read operations
type CustomerService struct {
	customerRepo billing.CustomerRepository
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo billing.CustomerRepository) *CustomerService {
	return &CustomerService{customerRepo: customerRepo}
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, ownerID, customerID uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, ownerID, customerID)
	if err != nil {
		return nil, err
	}
	response := ToCustomerResponse(customer)
	return &response, nil
}

// Exists reports whether a customer with the exact (name, phone) identity
// already exists for the owner
func (s *CustomerService) Exists(ctx context.Context, ownerID uuid.UUID, name, phone string) (bool, error) {
	if name == "" || phone == "" {
		return false, shared.NewDomainError("INVALID_INPUT", "Name and phone are required")
	}
	return s.customerRepo.Exists(ctx, ownerID, name, phone)
}

// List retrieves the owner's customers with pagination and optional search
func (s *CustomerService) List(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (*shared.Paginated[CustomerResponse], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	result, err := s.customerRepo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]CustomerResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, ToCustomerResponse(&result.Items[i]))
	}
	page := shared.NewPaginated(items, result.Total, result.Page, result.PageSize)
	return &page, nil
}
