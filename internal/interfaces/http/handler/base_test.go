package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setJWTContext simulates an authenticated request without a real token
func setJWTContext(c *gin.Context, ownerID, userID uuid.UUID) {
	c.Set("jwt_owner_id", ownerID.String())
	c.Set("jwt_user_id", userID.String())
}

func newHandlerContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetOwnerID(t *testing.T) {
	t.Run("reads the jwt claim", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		ownerID := uuid.New()
		setJWTContext(c, ownerID, uuid.New())

		got, err := getOwnerID(c)
		require.NoError(t, err)
		assert.Equal(t, ownerID, got)
	})

	t.Run("errors when unauthenticated", func(t *testing.T) {
		c, _ := newHandlerContext(t)

		_, err := getOwnerID(c)
		assert.Error(t, err)
	})

	t.Run("a client-sent header is not a scope", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		c.Request.Header.Set("X-Owner-ID", uuid.New().String())

		_, err := getOwnerID(c)
		assert.Error(t, err, "only the validated token may decide whose invoices are visible")
	})
}

func TestGetUserID(t *testing.T) {
	t.Run("reads the jwt claim", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		userID := uuid.New()
		setJWTContext(c, uuid.New(), userID)

		got, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("ignores the spoofable header", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		c.Request.Header.Set("X-User-ID", uuid.New().String())

		_, err := getUserID(c)
		assert.Error(t, err)
	})
}

func TestGetRequestID(t *testing.T) {
	t.Run("context value wins over header", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		c.Set(RequestIDKey, "ctx-id")
		c.Request.Header.Set(RequestIDKey, "header-id")

		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("falls back to the header", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		c.Request.Header.Set(RequestIDKey, "header-id")

		assert.Equal(t, "header-id", getRequestID(c))
	})

	t.Run("empty when absent", func(t *testing.T) {
		c, _ := newHandlerContext(t)
		assert.Empty(t, getRequestID(c))
	})
}

func TestBaseHandlerSuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success wraps data", func(t *testing.T) {
		c, w := newHandlerContext(t)
		h.Success(c, map[string]string{"invoice_number": "KSC-20260831-001"})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.NotNil(t, resp.Data)
	})

	t.Run("SuccessWithMeta carries pagination", func(t *testing.T) {
		c, w := newHandlerContext(t)
		h.SuccessWithMeta(c, []string{"a", "b"}, 42, 2, 10)

		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(42), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
	})

	t.Run("Created returns 201", func(t *testing.T) {
		c, w := newHandlerContext(t)
		h.Created(c, map[string]string{"id": uuid.NewString()})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decodeResponse(t, w).Success)
	})

	t.Run("NoContent returns an empty 204", func(t *testing.T) {
		h := &BaseHandler{}
		router := gin.New()
		router.DELETE("/invoices/:id/document", func(c *gin.Context) { h.NoContent(c) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/invoices/42/document", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})
}

func TestBaseHandlerErrorResponses(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name     string
		respond  func(*gin.Context)
		wantCode int
		wantErr  string
	}{
		{"BadRequest", func(c *gin.Context) { h.BadRequest(c, "bad payload") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(c *gin.Context) { h.NotFound(c, "no such invoice") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Unauthorized", func(c *gin.Context) { h.Unauthorized(c, "login required") }, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"Forbidden", func(c *gin.Context) { h.Forbidden(c, "not your shop") }, http.StatusForbidden, dto.ErrCodeForbidden},
		{"Conflict", func(c *gin.Context) { h.Conflict(c, "number taken") }, http.StatusConflict, dto.ErrCodeConflict},
		{"InternalError", func(c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"TooManyRequests", func(c *gin.Context) { h.TooManyRequests(c, "slow down") }, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newHandlerContext(t)
			tt.respond(c)

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}

	t.Run("request id is echoed back", func(t *testing.T) {
		c, w := newHandlerContext(t)
		c.Set(RequestIDKey, "req-314")

		h.BadRequest(c, "bad payload")

		assert.Equal(t, "req-314", decodeResponse(t, w).Error.RequestID)
	})

	t.Run("ErrorWithCode derives the status", func(t *testing.T) {
		c, w := newHandlerContext(t)

		h.ErrorWithCode(c, dto.ErrCodeDuplicateNumber, "Invoice number already taken")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeDuplicateNumber, decodeResponse(t, w).Error.Code)
	})

	t.Run("UnprocessableEntity keeps the given code", func(t *testing.T) {
		c, w := newHandlerContext(t)

		h.UnprocessableEntity(c, dto.ErrCodeBusinessRule, "Walk-in customers cannot carry dues")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeBusinessRule, decodeResponse(t, w).Error.Code)
	})
}

func TestBaseHandlerValidationError(t *testing.T) {
	h := &BaseHandler{}
	c, w := newHandlerContext(t)
	c.Set(RequestIDKey, "req-77")

	h.ValidationError(c, []dto.ValidationDetail{
		{Field: "customer_phone", Message: "Required"},
		{Field: "super_total", Message: "Must be greater than 0"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-77", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
}

func TestBaseHandlerHandleError(t *testing.T) {
	h := &BaseHandler{}

	t.Run("nil writes nothing", func(t *testing.T) {
		c, w := newHandlerContext(t)
		h.HandleError(c, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})

	t.Run("maps domain error codes to statuses", func(t *testing.T) {
		tests := []struct {
			err      error
			wantCode int
			wantErr  string
		}{
			{shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
			{shared.ErrAlreadyExists, http.StatusConflict, dto.ErrCodeAlreadyExists},
			{shared.ErrInvalidInput, http.StatusBadRequest, dto.ErrCodeInvalidInput},
			{shared.ErrUnauthorized, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
			{shared.ErrForbidden, http.StatusForbidden, dto.ErrCodeForbidden},
			{shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
			{shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
			{shared.ErrDuplicateNumber, http.StatusConflict, dto.ErrCodeDuplicateNumber},
			{shared.NewDomainError("DUPLICATE_REQUEST", "already recorded"), http.StatusConflict, dto.ErrCodeDuplicateRequest},
		}

		for _, tt := range tests {
			c, w := newHandlerContext(t)
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantCode, w.Code, "error %v", tt.err)
			assert.Equal(t, tt.wantErr, decodeResponse(t, w).Error.Code)
		}
	})

	t.Run("wrapped domain errors unwrap", func(t *testing.T) {
		c, w := newHandlerContext(t)

		h.HandleError(c, fmt.Errorf("loading invoice: %w", shared.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
	})

	t.Run("unknown errors become an opaque 500", func(t *testing.T) {
		c, w := newHandlerContext(t)

		h.HandleError(c, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	})

	t.Run("request id survives the mapping", func(t *testing.T) {
		c, w := newHandlerContext(t)
		c.Set(RequestIDKey, "req-900")

		h.HandleDomainError(c, shared.ErrNotFound)

		assert.Equal(t, "req-900", decodeResponse(t, w).Error.RequestID)
	})
}
