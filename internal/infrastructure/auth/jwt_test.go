package auth

import (
	"testing"
	"time"

	"github.com/billing/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	cfg := config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
	}
	return NewJWTService(cfg)
}

func newTestInput() GenerateTokenInput {
	return GenerateTokenInput{
		OwnerID:  uuid.New(),
		UserID:   uuid.New(),
		Username: "shopkeeper",
		ShopName: "Krishna Stores",
	}
}

func TestNewJWTService(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:                 "test-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
	}

	svc := NewJWTService(cfg)

	assert.NotNil(t, svc)
	assert.Equal(t, []byte(cfg.Secret), svc.accessSecret)
	assert.Equal(t, cfg.AccessTokenExpiration, svc.accessExpiration)
	assert.Equal(t, cfg.RefreshTokenExpiration, svc.refreshExpiration)
	assert.Equal(t, cfg.Issuer, svc.issuer)
}

func TestNewJWTService_UsesSecretForRefreshIfNotProvided(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:        "test-secret",
		RefreshSecret: "",
	}

	svc := NewJWTService(cfg)
	assert.Equal(t, []byte(cfg.Secret), svc.refreshSecret)
}

func TestGenerateTokenPair(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()

	t.Run("generates valid token pair", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.True(t, pair.AccessTokenExpiresAt.Before(pair.RefreshTokenExpiresAt))
	})

	t.Run("access token carries identity claims", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)

		assert.Equal(t, input.OwnerID.String(), claims.OwnerID)
		assert.Equal(t, input.UserID.String(), claims.UserID)
		assert.Equal(t, input.Username, claims.Username)
		assert.Equal(t, input.ShopName, claims.ShopName)
		assert.Equal(t, TokenTypeAccess, claims.TokenType)
	})

	t.Run("refresh token carries minimal claims", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		claims, err := svc.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)

		assert.Equal(t, input.OwnerID.String(), claims.OwnerID)
		assert.Equal(t, input.UserID.String(), claims.UserID)
		assert.Empty(t, claims.Username)
		assert.Equal(t, TokenTypeRefresh, claims.TokenType)
	})
}

func TestValidateAccessToken(t *testing.T) {
	svc := newTestJWTService()

	t.Run("rejects garbage token", func(t *testing.T) {
		claims, err := svc.ValidateAccessToken("not.a.token")
		assert.Nil(t, claims)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("rejects refresh token used as access token", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(pair.RefreshToken)
		assert.Nil(t, claims)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("rejects access token used as refresh token", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		claims, err := svc.ValidateRefreshToken(pair.AccessToken)
		assert.Nil(t, claims)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("rejects token signed with a different secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret:                 "a-completely-different-secret-key",
			AccessTokenExpiration:  15 * time.Minute,
			RefreshTokenExpiration: 24 * time.Hour,
			Issuer:                 "test-issuer",
		})
		pair, err := other.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		assert.Nil(t, claims)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		short := NewJWTService(config.JWTConfig{
			Secret:                 "test-secret-key-at-least-32-chars",
			AccessTokenExpiration:  -time.Minute,
			RefreshTokenExpiration: 24 * time.Hour,
			Issuer:                 "test-issuer",
		})
		pair, err := short.GenerateTokenPair(newTestInput())
		require.NoError(t, err)

		claims, err := short.ValidateAccessToken(pair.AccessToken)
		assert.Nil(t, claims)
		assert.Equal(t, ErrExpiredToken, err)
	})
}

func TestRefreshTokenPair(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()

	t.Run("issues a fresh pair from a refresh token", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		newPair, err := svc.RefreshTokenPair(pair.RefreshToken, input.Username, input.ShopName)
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(newPair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, input.OwnerID.String(), claims.OwnerID)
		assert.Equal(t, input.Username, claims.Username)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(input)
		require.NoError(t, err)

		newPair, err := svc.RefreshTokenPair(pair.AccessToken, input.Username, input.ShopName)
		assert.Nil(t, newPair)
		assert.Error(t, err)
	})
}

func TestClaimsHelpers(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()

	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	t.Run("parses owner and user UUIDs", func(t *testing.T) {
		ownerID, err := claims.GetOwnerUUID()
		require.NoError(t, err)
		assert.Equal(t, input.OwnerID, ownerID)

		userID, err := claims.GetUserUUID()
		require.NoError(t, err)
		assert.Equal(t, input.UserID, userID)
	})

	t.Run("remaining TTL is positive for a live token", func(t *testing.T) {
		assert.Greater(t, claims.GetRemainingTTL(), time.Duration(0))
	})

	t.Run("issued at is recent", func(t *testing.T) {
		assert.WithinDuration(t, time.Now(), claims.GetIssuedAtTime(), time.Minute)
	})
}
