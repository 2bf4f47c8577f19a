package handler

import (
	"time"

	"github.com/billing/backend/internal/application/identity"
	"github.com/google/uuid"
)

// Request bodies for the /auth endpoints. Password length bounds match the
// bcrypt input limits enforced by the identity service.

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100" example:"shopkeeper"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100" example:"shopkeeper"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	ShopName string `json:"shop_name" binding:"required,min=1,max=200" example:"Krishna Stores"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// TokenResponse mirrors auth.TokenPair on the wire.
type TokenResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// AuthUserResponse is the public view of a shop account. The password hash
// and lockout counters never leave the identity layer.
type AuthUserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	ShopName    string     `json:"shop_name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func toAuthUserResponse(user identity.UserInfo) AuthUserResponse {
	return AuthUserResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		ShopName:    user.ShopName,
		LastLoginAt: user.LastLoginAt,
	}
}

type LoginResponse struct {
	Token TokenResponse    `json:"token"`
	User  AuthUserResponse `json:"user"`
}

type RefreshTokenResponse struct {
	Token TokenResponse `json:"token"`
}

type LogoutResponse struct {
	Message string `json:"message"`
}
