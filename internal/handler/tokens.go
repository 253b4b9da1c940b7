package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"marketbrief/internal/auth"
	"marketbrief/internal/config"
	"marketbrief/internal/httputil"
)

// UserTokenTTL bounds how long an issued webhook token stays valid. Voice
// sessions are short; a leaked token should be too.
const UserTokenTTL = 30 * time.Minute

const vapiCallURL = "https://api.vapi.ai/call"

// TokenHandler issues webhook user tokens and brokers voice call creation
// so the platform API key never reaches the browser.
type TokenHandler struct {
	tokens      *auth.UserTokenService
	apiKey      string
	assistantID string
	callURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(tokens *auth.UserTokenService, cfg *config.Config, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		tokens:      tokens,
		apiKey:      cfg.VapiAPIKey,
		assistantID: cfg.VapiAssistantID,
		callURL:     vapiCallURL,
		httpClient:  &http.Client{Timeout: 8 * time.Second},
		logger:      logger,
	}
}

// UserToken handles GET /vapi/user-token: a short-lived signed token the
// client passes into call metadata so webhook tool calls resolve to the
// signed-in user.
func (h *TokenHandler) UserToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	token, err := h.tokens.Sign(userID, UserTokenTTL)
	if err != nil {
		h.logger.Error("user token signing failed", "user_id", userID, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "error issuing token")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"userToken": token})
}

type vapiCallResponse struct {
	ID        string `json:"id"`
	ClientURL string `json:"clientUrl"`
}

// CallToken handles POST /vapi/call-token: creates a voice call upstream
// and returns the client join URL.
func (h *TokenHandler) CallToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	if h.apiKey == "" || h.assistantID == "" {
		httputil.RespondError(w, http.StatusInternalServerError, "voice platform credentials not configured")
		return
	}

	payload, err := json.Marshal(map[string]string{"assistantId": h.assistantID})
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "failed to build call request")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.callURL, bytes.NewReader(payload))
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "failed to build call request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Error("voice call creation failed", "error", err)
		httputil.RespondError(w, http.StatusBadGateway, "voice call creation failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		httputil.RespondError(w, http.StatusBadGateway, "voice call creation failed")
		return
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		h.logger.Error("voice call creation rejected", "status", resp.StatusCode, "body", string(body))
		httputil.RespondError(w, http.StatusBadGateway, "voice call creation failed")
		return
	}

	var call vapiCallResponse
	if err := json.Unmarshal(body, &call); err != nil || call.ClientURL == "" {
		h.logger.Error("voice call response missing clientUrl", "body", string(body))
		httputil.RespondError(w, http.StatusBadGateway, "voice call response missing clientUrl")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"clientUrl": call.ClientURL,
		"callId":    call.ID,
	})
}
