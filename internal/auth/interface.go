package auth

import "marketbrief/internal/domain/models"

// SessionVerifier defines the interface for browser session token
// verification. The implementation fetches public keys from the auth
// provider's JWKS endpoint; tests substitute a local verifier.
type SessionVerifier interface {
	// VerifyToken validates a session JWT and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.SessionClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
