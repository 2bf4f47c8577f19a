package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

// requestSpan finds the server span otelgin named after the route.
func requestSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

func spanStringAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestTracingWithConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("disabled passes requests through", func(t *testing.T) {
		r := gin.New()
		r.Use(TracingWithConfig(TracingConfig{Enabled: false}))
		r.GET("/api/v1/invoices", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("enabled records a span per request", func(t *testing.T) {
		sr := setupTestTracer(t)

		r := gin.New()
		r.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "billing-backend"}))
		r.GET("/api/v1/invoices", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))

		require.Equal(t, http.StatusOK, w.Code)
		requestSpan(t, sr, "GET /api/v1/invoices")
	})

	t.Run("request id attached as attribute", func(t *testing.T) {
		sr := setupTestTracer(t)

		r := gin.New()
		r.Use(RequestID())
		r.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "billing-backend"}))
		r.Use(TracingAttributeInjector())
		r.GET("/api/v1/invoices", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set("X-Request-ID", "req-trace-123")
		r.ServeHTTP(httptest.NewRecorder(), req)

		span := requestSpan(t, sr, "GET /api/v1/invoices")
		got, ok := spanStringAttr(span, "request_id")
		require.True(t, ok)
		assert.Equal(t, "req-trace-123", got)
	})

	t.Run("jwt claims attached after auth", func(t *testing.T) {
		sr := setupTestTracer(t)

		r := gin.New()
		r.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "billing-backend"}))
		r.Use(func(c *gin.Context) {
			c.Set(JWTUserIDKey, "user-123")
			c.Set(JWTOwnerIDKey, "owner-456")
			c.Next()
		})
		r.Use(TracingAttributeInjector())
		r.POST("/api/v1/payments", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{})
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil))

		span := requestSpan(t, sr, "POST /api/v1/payments")
		userID, _ := spanStringAttr(span, "user_id")
		ownerID, _ := spanStringAttr(span, "owner_id")
		assert.Equal(t, "user-123", userID)
		assert.Equal(t, "owner-456", ownerID)
	})

	t.Run("owner header never attributed", func(t *testing.T) {
		sr := setupTestTracer(t)

		r := gin.New()
		r.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "billing-backend"}))
		r.Use(TracingAttributeInjector())
		r.GET("/api/v1/invoices", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
		req.Header.Set("X-Owner-ID", "12345678-1234-1234-1234-123456789abc")
		r.ServeHTTP(httptest.NewRecorder(), req)

		span := requestSpan(t, sr, "GET /api/v1/invoices")
		_, ok := spanStringAttr(span, "owner_id")
		assert.False(t, ok, "owner attribution must come from the token, not a request header")
	})
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.Equal(t, "billing-backend", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}

func TestSpanErrorMarker(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(t *testing.T, status int) (*tracetest.SpanRecorder, *httptest.ResponseRecorder) {
		sr := setupTestTracer(t)
		r := gin.New()
		r.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "billing-backend"}))
		r.Use(SpanErrorMarker())
		r.GET("/api/v1/invoices/:id", func(c *gin.Context) {
			c.JSON(status, gin.H{})
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/inv-1", nil))
		return sr, w
	}

	cases := []struct {
		name        string
		status      int
		description string
	}{
		{"not found", http.StatusNotFound, "Not Found"},
		{"unauthorized", http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", http.StatusForbidden, "Forbidden"},
		{"generic client error", http.StatusBadRequest, "Client Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sr, w := serve(t, tc.status)
			require.Equal(t, tc.status, w.Code)

			span := requestSpan(t, sr, "GET /api/v1/invoices/:id")
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tc.description, span.Status().Description)
		})
	}

	t.Run("server error", func(t *testing.T) {
		sr, w := serve(t, http.StatusInternalServerError)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		// otelgin may set its own description first; the code is what matters.
		assert.Equal(t, codes.Error, requestSpan(t, sr, "GET /api/v1/invoices/:id").Status().Code)
	})

	t.Run("success left unset", func(t *testing.T) {
		sr, w := serve(t, http.StatusOK)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEqual(t, codes.Error, requestSpan(t, sr, "GET /api/v1/invoices/:id").Status().Code)
	})

	t.Run("no recording span is harmless", func(t *testing.T) {
		otel.SetTracerProvider(noop.NewTracerProvider())

		r := gin.New()
		r.Use(SpanErrorMarker())
		r.GET("/api/v1/invoices", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{})
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestTracingAttributeInjector_NoSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(TracingAttributeInjector())
	r.GET("/api/v1/invoices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(setup func(*gin.Context), header string) string {
		var got string
		r := gin.New()
		r.GET("/test", func(c *gin.Context) {
			if setup != nil {
				setup(c)
			}
			got = getRequestID(c)
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	t.Run("context value preferred", func(t *testing.T) {
		got := run(func(c *gin.Context) { c.Set("request_id", "from-context") }, "from-header")
		assert.Equal(t, "from-context", got)
	})

	t.Run("header fallback", func(t *testing.T) {
		assert.Equal(t, "from-header", run(nil, "from-header"))
	})

	t.Run("oversized header truncated", func(t *testing.T) {
		got := run(nil, strings.Repeat("x", 300))
		assert.Len(t, got, MaxRequestIDLength)
	})
}

func TestGetOwnerID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(setup func(*gin.Context), header string) string {
		var got string
		r := gin.New()
		r.GET("/test", func(c *gin.Context) {
			if setup != nil {
				setup(c)
			}
			got = getOwnerID(c)
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set("X-Owner-ID", header)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	t.Run("jwt claim used", func(t *testing.T) {
		got := run(func(c *gin.Context) { c.Set(JWTOwnerIDKey, "owner-from-jwt") }, "12345678-1234-1234-1234-123456789abc")
		assert.Equal(t, "owner-from-jwt", got)
	})

	t.Run("header alone yields nothing", func(t *testing.T) {
		assert.Empty(t, run(nil, "12345678-1234-1234-1234-123456789abc"))
	})

	t.Run("unauthenticated request yields nothing", func(t *testing.T) {
		assert.Empty(t, run(nil, ""))
	})
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got string
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(JWTUserIDKey, "user-from-jwt")
		c.Next()
	})
	r.GET("/test", func(c *gin.Context) {
		got = getUserID(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, "user-from-jwt", got)

	r2 := gin.New()
	r2.GET("/test", func(c *gin.Context) {
		got = getUserID(c)
		c.Status(http.StatusOK)
	})
	r2.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Empty(t, got)
}
