package identity

import (
	"time"

	"github.com/google/uuid"
)

// LoginInput carries the credentials plus the client IP used for the
// per-account lockout log.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// UserInfo is the shop user's public profile; the password hash stays inside
// the domain layer.
type UserInfo struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	ShopName    string     `json:"shop_name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TokenDetails is the freshly minted token pair both login and refresh hand
// back.
type TokenDetails struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// LoginResult is the successful login payload: tokens plus the profile the
// client shows after sign-in.
type LoginResult struct {
	TokenDetails
	User UserInfo `json:"user"`
}

type RefreshTokenInput struct {
	RefreshToken string
}

// RefreshTokenResult carries only the new token pair.
type RefreshTokenResult struct {
	TokenDetails
}

// LogoutInput retires the raw bearer token; it goes into the blacklist until
// its natural expiry.
type LogoutInput struct {
	UserID      uuid.UUID
	AccessToken string
}

type RegisterInput struct {
	Username string
	Password string
	ShopName string
}

type ChangePasswordInput struct {
	UserID      uuid.UUID
	OldPassword string
	NewPassword string
}
