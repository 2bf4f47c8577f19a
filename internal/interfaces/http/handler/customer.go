package handler

import (
	"strings"

	billingapp "github.com/billing/backend/internal/application/billing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CustomerHandler handles customer queries
type CustomerHandler struct {
	BaseHandler
	customerService *billingapp.CustomerService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customerService *billingapp.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// GetByID returns a customer by ID
// @ID getCustomer
// @Summary Get customer by ID
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} APIResponse[billingapp.CustomerResponse]
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /customers/{id} [get]
func (h *CustomerHandler) GetByID(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	customer, err := h.customerService.GetByID(c.Request.Context(), ownerID, customerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, customer)
}

// CustomerExistsResponse reports whether a customer identity is already known
type CustomerExistsResponse struct {
	Exists bool `json:"exists" example:"true"`
}

// Exists reports whether a customer with the given name and phone exists
// @ID customerExists
// @Summary Check customer existence
// @Description Reports whether a customer with the exact name and phone pair already exists for the owner.
// @Tags customers
// @Produce json
// @Param name query string true "Customer name"
// @Param phone query string true "Customer phone"
// @Success 200 {object} APIResponse[CustomerExistsResponse]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /customers/exists [get]
func (h *CustomerHandler) Exists(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	name := strings.TrimSpace(c.Query("name"))
	phone := strings.TrimSpace(c.Query("phone"))
	if name == "" || phone == "" {
		h.BadRequest(c, "name and phone are required")
		return
	}

	exists, err := h.customerService.Exists(c.Request.Context(), ownerID, name, phone)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, CustomerExistsResponse{Exists: exists})
}

// ListCustomersRequest represents the customer list query parameters
type ListCustomersRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=name phone balance created_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search" binding:"omitempty,max=200"`
}

// List returns customers for the owner
// @ID listCustomers
// @Summary List customers
// @Tags customers
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param search query string false "Match against customer name or phone"
// @Success 200 {object} APIResponse[[]billingapp.CustomerResponse]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	var req ListCustomersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	result, err := h.customerService.List(c.Request.Context(), ownerID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
