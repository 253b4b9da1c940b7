package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"marketbrief/internal/domain/models"
)

// ErrInvalidUserToken covers every verification failure: bad structure, bad
// signature, expired, missing claims. Callers surface one opaque message so
// the voice channel never leaks which check failed.
var ErrInvalidUserToken = errors.New("invalid user token")

// UserTokenService signs and verifies the compact HMAC-SHA256 user tokens
// that identify the caller across the voice platform's webhook deliveries.
// The browser fetches a short-lived token and passes it through the
// platform's opaque metadata; the webhook verifies it on every call.
type UserTokenService struct {
	secret []byte
}

// NewUserTokenService creates a token service with the given signing secret.
func NewUserTokenService(secret string) *UserTokenService {
	return &UserTokenService{secret: []byte(secret)}
}

// Sign issues a token for userID valid for ttl.
func (s *UserTokenService) Sign(userID string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("user token secret not configured")
	}

	now := time.Now()
	claims := &models.UserTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the embedded user id.
func (s *UserTokenService) Verify(tokenString string) (string, error) {
	if len(s.secret) == 0 || tokenString == "" {
		return "", ErrInvalidUserToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.UserTokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidUserToken
	}

	claims, ok := token.Claims.(*models.UserTokenClaims)
	if !ok || claims.UserID == "" || claims.ExpiresAt == nil {
		return "", ErrInvalidUserToken
	}

	return claims.UserID, nil
}
