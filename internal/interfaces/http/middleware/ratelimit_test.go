package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRequest(router *gin.Engine, method, target, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows up to the limit", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("shop-1"), "request %d should pass", i+1)
		}
		assert.False(t, limiter.Allow("shop-1"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)

		limiter.Allow("shop-a")
		limiter.Allow("shop-a")
		assert.False(t, limiter.Allow("shop-a"))
		assert.True(t, limiter.Allow("shop-b"))
	})

	t.Run("window rollover refills", func(t *testing.T) {
		limiter := NewRateLimiter(1, 50*time.Millisecond)

		assert.True(t, limiter.Allow("shop-1"))
		assert.False(t, limiter.Allow("shop-1"))

		time.Sleep(60 * time.Millisecond)
		assert.True(t, limiter.Allow("shop-1"))
	})

	t.Run("remaining tracks consumption", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		assert.Equal(t, 5, limiter.Remaining("shop-1"))
		limiter.Allow("shop-1")
		limiter.Allow("shop-1")
		assert.Equal(t, 3, limiter.Remaining("shop-1"))
	})

	t.Run("concurrent access admits exactly the limit", func(t *testing.T) {
		limiter := NewRateLimiter(100, time.Minute)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("shop-1") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 100, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limiter *RateLimiter) *gin.Engine {
		router := gin.New()
		router.Use(RateLimit(limiter))
		router.GET("/api/v1/invoices", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"invoices": []string{}})
		})
		return router
	}

	t.Run("within limit", func(t *testing.T) {
		router := newRouter(NewRateLimiter(3, time.Minute))
		for i := 0; i < 3; i++ {
			rec := limitedRequest(router, http.MethodGet, "/api/v1/invoices", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("over limit answers 429", func(t *testing.T) {
		router := newRouter(NewRateLimiter(2, time.Minute))
		limitedRequest(router, http.MethodGet, "/api/v1/invoices", "")
		limitedRequest(router, http.MethodGet, "/api/v1/invoices", "")

		rec := limitedRequest(router, http.MethodGet, "/api/v1/invoices", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("authenticated requests keyed per owner", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		router := gin.New()
		asOwner := func(id string) gin.HandlerFunc {
			return func(c *gin.Context) {
				c.Set(JWTOwnerIDKey, id)
				c.Next()
			}
		}
		router.GET("/a/invoices", asOwner("owner-1"), RateLimit(limiter), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		router.GET("/b/invoices", asOwner("owner-2"), RateLimit(limiter), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		assert.Equal(t, http.StatusOK, limitedRequest(router, http.MethodGet, "/a/invoices", "").Code)
		assert.Equal(t, http.StatusTooManyRequests, limitedRequest(router, http.MethodGet, "/a/invoices", "").Code)
		// A different shop owner from the same address keeps their own budget.
		assert.Equal(t, http.StatusOK, limitedRequest(router, http.MethodGet, "/b/invoices", "").Code)
	})
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(1, time.Minute)
	router := gin.New()
	router.Use(RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.Query("till")
	}))
	router.GET("/api/v1/sales", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, limitedRequest(router, http.MethodGet, "/api/v1/sales?till=1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(router, http.MethodGet, "/api/v1/sales?till=1", "").Code)
	assert.Equal(t, http.StatusOK, limitedRequest(router, http.MethodGet, "/api/v1/sales?till=2", "").Code)
}

func TestAuthRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(limiter *RateLimiter) *gin.Engine {
		router := gin.New()
		router.Use(AuthRateLimit(limiter))
		router.POST("/api/v1/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true})
		})
		return router
	}

	t.Run("within limit carries quota headers", func(t *testing.T) {
		router := newRouter(NewRateLimiter(5, time.Minute))

		rec := limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.100:12345")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("blocked with auth code and Retry-After", func(t *testing.T) {
		router := newRouter(NewRateLimiter(1, time.Minute))
		limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.100:12345")

		rec := limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.100:12345")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "AUTH_RATE_LIMIT_EXCEEDED")
		assert.Contains(t, rec.Body.String(), "Too many authentication attempts")
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	})

	t.Run("per address", func(t *testing.T) {
		router := newRouter(NewRateLimiter(1, time.Minute))
		limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.1:12345")

		assert.Equal(t, http.StatusTooManyRequests,
			limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.1:12345").Code)
		assert.Equal(t, http.StatusOK,
			limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.2:12345").Code)
	})

	t.Run("auth prefix isolates budgets on a shared limiter", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		router := gin.New()
		router.POST("/api/v1/auth/login", AuthRateLimit(limiter), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		router.GET("/api/v1/invoices", RateLimit(limiter), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.100:12345")
		assert.Equal(t, http.StatusTooManyRequests,
			limitedRequest(router, http.MethodPost, "/api/v1/auth/login", "192.168.1.100:12345").Code)
		// The exhausted login budget leaves the API budget untouched.
		assert.Equal(t, http.StatusOK,
			limitedRequest(router, http.MethodGet, "/api/v1/invoices", "192.168.1.100:12345").Code)
	})
}
