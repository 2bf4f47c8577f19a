package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appidentity "github.com/billing/backend/internal/application/identity"
	"github.com/billing/backend/internal/domain/identity"
	"github.com/billing/backend/internal/infrastructure/auth"
	"github.com/billing/backend/internal/infrastructure/config"
	"github.com/billing/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testJWTConfig returns a default JWT config for tests
func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret-key-32-characters-long",
		RefreshSecret:          "refresh-secret-key-32-characters",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
	}
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// newAuthTestStack wires a real auth service over a mocked repository
func newAuthTestStack(t *testing.T) (*AuthHandler, *MockUserRepository, *auth.JWTService) {
	t.Helper()

	userRepo := new(MockUserRepository)
	jwtService := auth.NewJWTService(testJWTConfig())
	blacklist := auth.NewInMemoryTokenBlacklist()
	t.Cleanup(func() { blacklist.Close() })

	authService := appidentity.NewAuthService(
		userRepo, jwtService, blacklist, appidentity.DefaultAuthServiceConfig(), zap.NewNop())
	userService := appidentity.NewUserService(userRepo, zap.NewNop())

	return NewAuthHandler(authService, userService), userRepo, jwtService
}

func newTestUser(t *testing.T, username, password string) *identity.User {
	t.Helper()
	user, err := identity.NewUser(username, password, "Krishna Stores")
	require.NoError(t, err)
	return user
}

func postJSON(t *testing.T, handlerFn gin.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	router := gin.New()
	router.POST(path, handlerFn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("success returns token pair and user", func(t *testing.T) {
		h, userRepo, _ := newAuthTestStack(t)
		user := newTestUser(t, "shopkeeper", "Passw0rd123")
		userRepo.On("FindByUsername", mock.Anything, "shopkeeper").Return(user, nil)
		userRepo.On("Update", mock.Anything, mock.AnythingOfType("*identity.User")).Return(nil)

		w := postJSON(t, h.Login, "/auth/login", LoginRequest{
			Username: "shopkeeper",
			Password: "Passw0rd123",
		})

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool          `json:"success"`
			Data    LoginResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Data.Token.AccessToken)
		assert.NotEmpty(t, resp.Data.Token.RefreshToken)
		assert.Equal(t, "Bearer", resp.Data.Token.TokenType)
		assert.Equal(t, "shopkeeper", resp.Data.User.Username)
		assert.Equal(t, "Krishna Stores", resp.Data.User.ShopName)
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		h, userRepo, _ := newAuthTestStack(t)
		user := newTestUser(t, "shopkeeper", "Passw0rd123")
		userRepo.On("FindByUsername", mock.Anything, "shopkeeper").Return(user, nil)
		userRepo.On("Update", mock.Anything, mock.AnythingOfType("*identity.User")).Return(nil)

		w := postJSON(t, h.Login, "/auth/login", LoginRequest{
			Username: "shopkeeper",
			Password: "WrongPass99",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		h, _, _ := newAuthTestStack(t)

		w := postJSON(t, h.Login, "/auth/login", map[string]string{
			"username": "ab",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("creates shop account", func(t *testing.T) {
		h, userRepo, _ := newAuthTestStack(t)
		userRepo.On("ExistsByUsername", mock.Anything, "newshop").Return(false, nil)
		userRepo.On("Create", mock.Anything, mock.AnythingOfType("*identity.User")).Return(nil)

		w := postJSON(t, h.Register, "/auth/register", RegisterRequest{
			Username: "newshop",
			Password: "Passw0rd123",
			ShopName: "New Shop",
		})

		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Success bool             `json:"success"`
			Data    AuthUserResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "newshop", resp.Data.Username)
		assert.Equal(t, "New Shop", resp.Data.ShopName)
	})

	t.Run("taken username returns conflict", func(t *testing.T) {
		h, userRepo, _ := newAuthTestStack(t)
		userRepo.On("ExistsByUsername", mock.Anything, "taken").Return(true, nil)

		w := postJSON(t, h.Register, "/auth/register", RegisterRequest{
			Username: "taken",
			Password: "Passw0rd123",
			ShopName: "Other Shop",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("valid refresh token returns new pair", func(t *testing.T) {
		h, userRepo, jwtService := newAuthTestStack(t)
		user := newTestUser(t, "shopkeeper", "Passw0rd123")
		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
			OwnerID:  user.ID,
			UserID:   user.ID,
			Username: user.Username,
			ShopName: user.ShopName,
		})
		require.NoError(t, err)

		w := postJSON(t, h.RefreshToken, "/auth/refresh", RefreshTokenRequest{
			RefreshToken: pair.RefreshToken,
		})

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool                 `json:"success"`
			Data    RefreshTokenResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Data.Token.AccessToken)
		assert.NotEmpty(t, resp.Data.Token.RefreshToken)
	})

	t.Run("garbage token returns 401", func(t *testing.T) {
		h, _, _ := newAuthTestStack(t)

		w := postJSON(t, h.RefreshToken, "/auth/refresh", RefreshTokenRequest{
			RefreshToken: "not-a-token",
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("blacklists current token", func(t *testing.T) {
		h, userRepo, jwtService := newAuthTestStack(t)
		user := newTestUser(t, "shopkeeper", "Passw0rd123")
		userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
			OwnerID:  user.ID,
			UserID:   user.ID,
			Username: user.Username,
			ShopName: user.ShopName,
		})
		require.NoError(t, err)

		claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)

		router := gin.New()
		router.POST("/auth/logout", func(c *gin.Context) {
			c.Set(middleware.JWTClaimsKey, claims)
			h.Logout(c)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool           `json:"success"`
			Data    LogoutResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Logged out successfully", resp.Data.Message)
	})

	t.Run("without claims returns 401", func(t *testing.T) {
		h, _, _ := newAuthTestStack(t)

		w := postJSON(t, h.Logout, "/auth/logout", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h, userRepo, jwtService := newAuthTestStack(t)
	user := newTestUser(t, "shopkeeper", "Passw0rd123")
	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		OwnerID:  user.ID,
		UserID:   user.ID,
		Username: user.Username,
		ShopName: user.ShopName,
	})
	require.NoError(t, err)

	claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/auth/me", func(c *gin.Context) {
		c.Set(middleware.JWTClaimsKey, claims)
		h.GetCurrentUser(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Data    AuthUserResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.ID, resp.Data.ID)
	assert.Equal(t, "shopkeeper", resp.Data.Username)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h, userRepo, jwtService := newAuthTestStack(t)
	user := newTestUser(t, "shopkeeper", "Passw0rd123")
	userRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	userRepo.On("Update", mock.Anything, mock.AnythingOfType("*identity.User")).Return(nil)

	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		OwnerID:  user.ID,
		UserID:   user.ID,
		Username: user.Username,
		ShopName: user.ShopName,
	})
	require.NoError(t, err)

	claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	payload, err := json.Marshal(ChangePasswordRequest{
		OldPassword: "Passw0rd123",
		NewPassword: "NewPassw0rd456",
	})
	require.NoError(t, err)

	router := gin.New()
	router.PUT("/auth/password", func(c *gin.Context) {
		c.Set(middleware.JWTClaimsKey, claims)
		h.ChangePassword(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/auth/password", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, user.VerifyPassword("NewPassw0rd456"))
}
