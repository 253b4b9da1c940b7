package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the JWT claims structure of browser session tokens
// issued by the external auth provider and verified against its JWKS.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SessionClaims) GetUserID() string {
	return c.Subject
}

// UserTokenClaims is the payload of the compact HMAC-signed user token the
// browser passes through the voice platform to the webhook.
type UserTokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}
