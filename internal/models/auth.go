package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest holds the registration payload.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required"`
	Nickname string `json:"nickname" validate:"required,max=50"`
}

// LoginRequest holds credentials for authenticating a user. Client metadata
// is attached by the handler, never by the caller.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens, the session id and the user.
type LoginResponse struct {
	SessionID    string `json:"sessionId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

// RenewAccessTokenRequest exchanges a refresh token for a new access token.
type RenewAccessTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RenewAccessTokenResponse returns the renewed access token. The refresh
// token is deliberately not rotated.
type RenewAccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// UpdateUserRequest changes the caller's nickname.
type UpdateUserRequest struct {
	Nickname string `json:"nickname" validate:"required,max=50"`
}

// AccessClaims is the JWT payload of access tokens.
type AccessClaims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// RefreshClaims is the JWT payload of refresh tokens. SessionID keys the
// persisted session row; all revocation state lives there, not in the token.
type RefreshClaims struct {
	SessionID string `json:"sessionId"`
	UserID    int64  `json:"userId"`
	jwt.RegisteredClaims
}
