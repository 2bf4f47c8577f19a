package handler

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	billingapp "github.com/billing/backend/internal/application/billing"
	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxDocumentSize bounds an uploaded invoice document to 10 MiB
const maxDocumentSize = 10 << 20

var errDocumentTooLarge = errors.New("document exceeds the 10 MiB size limit")

// InvoiceHandler handles sale recording and invoice queries
type InvoiceHandler struct {
	BaseHandler
	saleService *billingapp.SaleService
	walkIn      billing.WalkInIdentity
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(saleService *billingapp.SaleService) *InvoiceHandler {
	return &InvoiceHandler{
		saleService: saleService,
		walkIn:      billing.DefaultWalkInIdentity(),
	}
}

// SetWalkInIdentity overrides the sentinel pair that marks a walk-in sale
func (h *InvoiceHandler) SetWalkInIdentity(identity billing.WalkInIdentity) {
	h.walkIn = identity
}

// CreateSaleRequest represents a request to record a sale
type CreateSaleRequest struct {
	CustomerName    string             `json:"customer_name" binding:"max=200" example:"Ramesh Kumar"`
	CustomerPhone   string             `json:"customer_phone" binding:"max=20" example:"9876543210"`
	CustomerAddress string             `json:"customer_address" binding:"max=500" example:"Market Road, Sector 4"`
	Anonymous       bool               `json:"anonymous" example:"false"`
	LineItems       []LineItemRequest  `json:"line_items"`
	GrossTotal      float64            `json:"gross_total" binding:"gte=0" example:"1180.00"`
	TaxTotal        float64            `json:"tax_total" binding:"gte=0" example:"180.00"`
	SuperTotal      float64            `json:"super_total" binding:"required,gt=0" example:"1180.00"`
	AmountPaid      float64            `json:"amount_paid" binding:"gte=0" example:"1000.00"`
	GoodsReturn     float64            `json:"goods_return" binding:"gte=0" example:"0"`
	Salesperson     string             `json:"salesperson" binding:"max=100" example:"Suresh"`
	IssueDate       *time.Time         `json:"issue_date"`
	IdempotencyKey  string             `json:"idempotency_key" binding:"max=128" example:"a3f8c1d2"`
}

// LineItemRequest represents one line item on a sale
type LineItemRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=200" example:"Cement 50kg"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0" example:"10"`
	UnitPrice float64 `json:"unit_price" binding:"gte=0" example:"118.00"`
	Amount    float64 `json:"amount" binding:"gte=0" example:"1180.00"`
}

// CreateSale records a sale
// @ID createSale
// @Summary Record a sale
// @Description Records a sale for the authenticated owner. The incoming payment first clears the customer's outstanding invoices oldest-first; the new invoice derives its own status from its totals. The walk-in sentinel identity (name "NA", phone "0000000000") or the anonymous flag makes the sale anonymous.
// @Tags invoices
// @Accept json
// @Produce json
// @Param request body CreateSaleRequest true "Sale details"
// @Success 201 {object} APIResponse[billingapp.CreateSaleResult]
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /invoices [post]
func (h *InvoiceHandler) CreateSale(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// The walk-in sentinel pair counts the same as the explicit flag.
	anonymous := req.Anonymous || h.walkIn.Matches(req.CustomerName, req.CustomerPhone)
	if !anonymous {
		if strings.TrimSpace(req.CustomerName) == "" {
			h.BadRequest(c, "customer_name is required for non-anonymous sales")
			return
		}
		if strings.TrimSpace(req.CustomerPhone) == "" {
			h.BadRequest(c, "customer_phone is required for non-anonymous sales")
			return
		}
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = c.GetHeader("X-Idempotency-Key")
	}

	items := make([]billingapp.LineItemInput, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, billingapp.LineItemInput{
			Name:      item.Name,
			Quantity:  toDecimal(item.Quantity),
			UnitPrice: toDecimal(item.UnitPrice),
			Amount:    toDecimal(item.Amount),
		})
	}

	result, err := h.saleService.CreateSale(c.Request.Context(), ownerID, billingapp.CreateSaleRequest{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Anonymous:       anonymous,
		LineItems:       items,
		GrossTotal:      toDecimal(req.GrossTotal),
		TaxTotal:        toDecimal(req.TaxTotal),
		SuperTotal:      toDecimal(req.SuperTotal),
		AmountPaid:      toDecimal(req.AmountPaid),
		GoodsReturn:     toDecimal(req.GoodsReturn),
		Salesperson:     req.Salesperson,
		IssueDate:       req.IssueDate,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// GetByID returns an invoice by ID
// @ID getInvoice
// @Summary Get invoice by ID
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} APIResponse[billingapp.InvoiceResponse]
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.saleService.GetInvoice(c.Request.Context(), ownerID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// GetByNumber returns an invoice by its invoice number
// @ID getInvoiceByNumber
// @Summary Get invoice by number
// @Tags invoices
// @Produce json
// @Param number path string true "Invoice number" example(KSC-20260115-001)
// @Success 200 {object} APIResponse[billingapp.InvoiceResponse]
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /invoices/number/{number} [get]
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		h.BadRequest(c, "Invoice number is required")
		return
	}

	invoice, err := h.saleService.GetInvoiceByNumber(c.Request.Context(), ownerID, number)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// ListInvoicesRequest represents the invoice list query parameters
type ListInvoicesRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=issue_date invoice_number super_total balance_remaining created_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search" binding:"omitempty,max=200"`
	From     string `form:"from" binding:"omitempty" example:"2026-01-01"`
	To       string `form:"to" binding:"omitempty" example:"2026-01-31"`
}

// List returns invoices for the owner, optionally bounded by issue date
// @ID listInvoices
// @Summary List invoices
// @Tags invoices
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param search query string false "Match against invoice number or customer name"
// @Param from query string false "Issue date lower bound (YYYY-MM-DD)"
// @Param to query string false "Issue date upper bound (YYYY-MM-DD)"
// @Success 200 {object} APIResponse[[]billingapp.InvoiceResponse]
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billingapp.InvoiceListFilter{
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

	if req.From != "" {
		from, err := parseDateParam(req.From)
		if err != nil {
			h.BadRequest(c, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := parseDateParam(req.To)
		if err != nil {
			h.BadRequest(c, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		to = endOfDay(to)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		h.BadRequest(c, "to must not be before from")
		return
	}

	result, err := h.saleService.ListInvoices(c.Request.Context(), ownerID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// DocumentResponse reports the stored document key after an upload
type DocumentResponse struct {
	DocumentKey string `json:"document_key" example:"invoices/KSC-20260115-001.pdf"`
}

// UploadDocument attaches a PDF document to an invoice
// @ID uploadInvoiceDocument
// @Summary Upload invoice document
// @Description Attaches a generated invoice PDF to the invoice. Accepts a multipart "file" field or a raw request body.
// @Tags invoices
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Invoice ID"
// @Param file formData file true "Invoice document"
// @Success 200 {object} APIResponse[DocumentResponse]
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /invoices/{id}/document [put]
func (h *InvoiceHandler) UploadDocument(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	data, contentType, err := readDocument(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if len(data) == 0 {
		h.BadRequest(c, "Document is empty")
		return
	}

	key, err := h.saleService.AttachDocument(c.Request.Context(), ownerID, invoiceID, data, contentType)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, DocumentResponse{DocumentKey: key})
}

// DocumentURLResponse carries a presigned download URL for an invoice document
type DocumentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetDocument returns a presigned download URL for the invoice document
// @ID getInvoiceDocument
// @Summary Get invoice document download URL
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Param expires_in query int false "URL lifetime in seconds" default(900)
// @Success 200 {object} APIResponse[DocumentURLResponse]
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /invoices/{id}/document [get]
func (h *InvoiceHandler) GetDocument(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var expiresIn time.Duration
	if raw := c.Query("expires_in"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			h.BadRequest(c, "expires_in must be a positive number of seconds")
			return
		}
		expiresIn = time.Duration(seconds) * time.Second
	}

	url, expiresAt, err := h.saleService.GetInvoiceDocument(c.Request.Context(), ownerID, invoiceID, expiresIn)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, DocumentURLResponse{URL: url, ExpiresAt: expiresAt})
}

// readDocument extracts the uploaded document bytes from a multipart form
// or, failing that, from the raw request body.
func readDocument(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("file"); err == nil {
		if file.Size > maxDocumentSize {
			return nil, "", errDocumentTooLarge
		}
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize+1))
		if err != nil {
			return nil, "", err
		}
		if len(data) > maxDocumentSize {
			return nil, "", errDocumentTooLarge
		}
		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/pdf"
		}
		return data, contentType, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxDocumentSize {
		return nil, "", errDocumentTooLarge
	}
	contentType := c.ContentType()
	if contentType == "" || strings.HasPrefix(contentType, "multipart/") {
		contentType = "application/pdf"
	}
	return data, contentType, nil
}

// parseDateParam parses a YYYY-MM-DD query parameter
func parseDateParam(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}

// endOfDay moves a parsed date to the last second of its calendar day so a
// closed [from, to] range keeps invoices issued during the final day.
func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Second)
}

// toDecimal converts a JSON-bound amount to its decimal representation
func toDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
