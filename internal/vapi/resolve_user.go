package vapi

import (
	"context"
	"log/slog"
	"net/http"

	"marketbrief/internal/auth"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// TokenExtraction is a user token plus where it was found. Precedence:
// arguments, then the x-mb-user-token header, then payload metadata, then
// (outside production) the query string.
type TokenExtraction struct {
	Token  string
	Source string // "arguments", "header", "metadata", "query" or "none"
}

// ExtractUserToken finds the signed user token for a webhook call.
func ExtractUserToken(r *http.Request, body, args models.JSONMap, allowQuery bool) TokenExtraction {
	if token := firstString(args["userToken"], args["user_token"], body["userToken"], body["user_token"]); token != "" {
		return TokenExtraction{Token: token, Source: "arguments"}
	}

	if token := r.Header.Get("x-mb-user-token"); token != "" {
		return TokenExtraction{Token: token, Source: "header"}
	}

	metadataSources := []interface{}{
		body["metadata"],
		body["meta"],
		digValue(body, "toolCall", "metadata"),
		digValue(body, "tool", "metadata"),
		digValue(body, "payload", "metadata"),
		digValue(body, "message", "metadata"),
		args["metadata"],
	}
	for _, source := range metadataSources {
		meta, ok := source.(map[string]interface{})
		if !ok {
			continue
		}
		if token := firstString(meta["userToken"], meta["user_token"]); token != "" {
			return TokenExtraction{Token: token, Source: "metadata"}
		}
	}

	if allowQuery {
		q := r.URL.Query()
		if token := firstString(q.Get("userToken"), q.Get("user_token")); token != "" {
			return TokenExtraction{Token: token, Source: "query"}
		}
	}

	return TokenExtraction{Source: "none"}
}

// ExtractUserHint finds a raw user id for local development, from the
// query string, dev headers or the arguments. Never honored in production.
func ExtractUserHint(r *http.Request, body, args models.JSONMap) string {
	if hint := firstString(args["userId"], args["user_id"], body["userId"], body["user_id"]); hint != "" {
		return hint
	}
	if hint := firstString(
		r.Header.Get("x-user-id"), r.Header.Get("x-userid"), r.Header.Get("x-user"),
	); hint != "" {
		return hint
	}
	q := r.URL.Query()
	return firstString(q.Get("userId"), q.Get("user_id"))
}

// Resolution is the outcome of resolving a webhook call to a user.
type Resolution struct {
	UserID string
	Source string // "token", "hint" or "demo-fallback"
	Err    string // speakable error when resolution failed
}

// UserResolver turns extracted credentials into a user id.
type UserResolver struct {
	tokens   *auth.UserTokenService
	userRepo repositories.UserRepository
	logger   *slog.Logger
}

// NewUserResolver creates a user resolver.
func NewUserResolver(tokens *auth.UserTokenService, userRepo repositories.UserRepository, logger *slog.Logger) *UserResolver {
	return &UserResolver{tokens: tokens, userRepo: userRepo, logger: logger}
}

// Resolve applies the resolution order: a signed token wins, then a dev
// hint, then the demo fallback. Browser-originated calls without a token
// are refused so a signed-out tab cannot ride the demo user.
func (r *UserResolver) Resolve(ctx context.Context, token, hint string, fromBrowser, allowDemo bool) Resolution {
	if token != "" {
		userID, err := r.tokens.Verify(token)
		if err != nil {
			return Resolution{Err: "Invalid user token"}
		}
		return Resolution{UserID: userID, Source: "token"}
	}
	if hint != "" {
		return Resolution{UserID: hint, Source: "hint"}
	}
	if fromBrowser {
		return Resolution{Err: "Missing user token"}
	}
	if allowDemo {
		demoID, err := r.userRepo.EnsureDemoUser(ctx)
		if err != nil {
			r.logger.Error("demo user lookup failed", "error", err)
			return Resolution{Err: "Missing user token"}
		}
		r.logger.Info("no token on webhook call, using demo user", "user_id", demoID)
		return Resolution{UserID: demoID, Source: "demo-fallback"}
	}
	return Resolution{Err: "Missing user token"}
}
