package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/billing/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
	assert.Contains(t, cfg.SkipPathPrefixes, "/swagger")
}

func TestProfilingWithConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(cfg ProfilingConfig, target string) (*httptest.ResponseRecorder, *bool) {
		called := false
		r := gin.New()
		r.Use(ProfilingWithConfig(cfg))
		r.GET(target, func(c *gin.Context) {
			called = true
			c.Status(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec, &called
	}

	t.Run("disabled passes through", func(t *testing.T) {
		rec, called := serve(ProfilingConfig{Enabled: false}, "/api/v1/invoices")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *called)
	})

	t.Run("enabled passes through", func(t *testing.T) {
		rec, called := serve(DefaultProfilingConfig(), "/api/v1/invoices")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *called)
	})

	t.Run("skipped paths still served", func(t *testing.T) {
		for _, path := range []string{"/health", "/metrics", "/swagger/index.html"} {
			rec, called := serve(DefaultProfilingConfig(), path)
			assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
			assert.True(t, *called)
		}
	})

	t.Run("gin context values survive the label wrap", func(t *testing.T) {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set("shop_name", "Kirana Street Corner")
			c.Next()
		})
		r.Use(Profiling())
		r.GET("/api/v1/invoices", func(c *gin.Context) {
			value, exists := c.Get("shop_name")
			assert.True(t, exists)
			assert.Equal(t, "Kirana Street Corner", value)
			c.Status(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestProfilingLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	collect := func(setOwner any, useParam bool) map[string]string {
		var labels map[string]string
		r := gin.New()
		if setOwner != nil {
			r.Use(func(c *gin.Context) {
				c.Set(JWTOwnerIDKey, setOwner)
				c.Next()
			})
		}
		route, target := "/api/v1/invoices", "/api/v1/invoices"
		if useParam {
			route, target = "/api/v1/invoices/:id", "/api/v1/invoices/inv-9"
		}
		r.GET(route, func(c *gin.Context) {
			labels = profilingLabels(c)
			c.Status(http.StatusOK)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
		return labels
	}

	t.Run("route and controller", func(t *testing.T) {
		labels := collect(nil, true)
		assert.Equal(t, "GET", labels[telemetry.ProfilingLabelMethod])
		// The pattern, not the concrete invoice path.
		assert.Equal(t, "/api/v1/invoices/:id", labels[telemetry.ProfilingLabelRoute])
		assert.Equal(t, "invoices", labels[telemetry.ProfilingLabelController])
		assert.NotContains(t, labels, telemetry.ProfilingLabelOwnerID)
	})

	t.Run("owner from jwt claim", func(t *testing.T) {
		labels := collect("owner-123", false)
		assert.Equal(t, "owner-123", labels[telemetry.ProfilingLabelOwnerID])
	})

	t.Run("non-string owner dropped", func(t *testing.T) {
		labels := collect(12345, false)
		assert.NotContains(t, labels, telemetry.ProfilingLabelOwnerID)
	})
}

func TestControllerFromRoute(t *testing.T) {
	cases := map[string]string{
		"/api/v1/invoices":           "invoices",
		"/api/v1/invoices/:id":       "invoices",
		"/api/v1/customers/:id/dues": "customers",
		"/api/v2/payments":           "payments",
		"/v1/export":                 "export",
		"/api/export":                "export",
		"/api/v1/:id":                "",
		"":                           "",
	}

	for route, want := range cases {
		assert.Equal(t, want, controllerFromRoute(route), "route %q", route)
	}
}

func TestIsVersionSegment(t *testing.T) {
	cases := map[string]bool{
		"v1":       true,
		"v10":      true,
		"V2":       true,
		"v":        false,
		"version":  false,
		"invoices": false,
		"1":        false,
	}

	for segment, want := range cases {
		assert.Equal(t, want, isVersionSegment(segment), "segment %q", segment)
	}
}
