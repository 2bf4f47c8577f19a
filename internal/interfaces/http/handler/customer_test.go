package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	billingapp "github.com/billing/backend/internal/application/billing"
	"github.com/billing/backend/internal/domain/billing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCustomerTestStack(t *testing.T) (*CustomerHandler, *MockCustomerRepository) {
	t.Helper()
	customerRepo := new(MockCustomerRepository)
	return NewCustomerHandler(billingapp.NewCustomerService(customerRepo)), customerRepo
}

func TestCustomerHandler_GetByID(t *testing.T) {
	ownerID := uuid.New()
	handler, customerRepo := newCustomerTestStack(t)

	customer := newOwnedCustomer(t, ownerID, "Gupta Hardware", "9812345678")

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/customers/:id", handler.GetByID) })

	t.Run("found", func(t *testing.T) {
		customerRepo.On("FindByID", mock.Anything, ownerID, customer.ID).Return(customer, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers/"+customer.ID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Data billingapp.CustomerResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Gupta Hardware", resp.Data.Name)
		assert.Equal(t, "9812345678", resp.Data.Phone)
		assert.False(t, resp.Data.WalkIn)
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		customerRepo.On("FindByID", mock.Anything, ownerID, missing).Return(nil, shared.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers/"+missing.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/abc", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCustomerHandler_Exists(t *testing.T) {
	ownerID := uuid.New()
	handler, customerRepo := newCustomerTestStack(t)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/customers/exists", handler.Exists) })

	t.Run("exists", func(t *testing.T) {
		customerRepo.On("Exists", mock.Anything, ownerID, "Gupta Hardware", "9812345678").Return(true, nil).Once()

		req := httptest.NewRequest(http.MethodGet,
			"/customers/exists?name=Gupta+Hardware&phone=9812345678", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data CustomerExistsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Data.Exists)
	})

	t.Run("unknown identity", func(t *testing.T) {
		customerRepo.On("Exists", mock.Anything, ownerID, "Nobody", "0123456789").Return(false, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/customers/exists?name=Nobody&phone=0123456789", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data CustomerExistsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Exists)
	})

	t.Run("missing phone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/exists?name=Gupta+Hardware", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		customerRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, "Gupta Hardware", "")
	})
}

func TestCustomerHandler_List(t *testing.T) {
	ownerID := uuid.New()
	handler, customerRepo := newCustomerTestStack(t)

	first := newOwnedCustomer(t, ownerID, "Gupta Hardware", "9812345678")
	second := newOwnedCustomer(t, ownerID, "Sharma Traders", "9876543210")
	page := shared.NewPaginated([]billing.Customer{*first, *second}, 2, 1, 20)
	customerRepo.On("List", mock.Anything, ownerID, shared.Filter{Page: 1, PageSize: 20}).Return(&page, nil)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/customers", handler.List) })

	req := httptest.NewRequest(http.MethodGet, "/customers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data []billingapp.CustomerResponse `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, "Gupta Hardware", resp.Data[0].Name)
}

func TestCustomerHandler_List_InvalidOrderBy(t *testing.T) {
	ownerID := uuid.New()
	handler, _ := newCustomerTestStack(t)

	r := ownedRouter(ownerID, func(r *gin.Engine) { r.GET("/customers", handler.List) })

	req := httptest.NewRequest(http.MethodGet, "/customers?order_by=password", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
