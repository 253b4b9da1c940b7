package handler

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/httputil"
	"marketbrief/internal/service"
)

// WatchlistHandler serves the watchlist REST endpoints.
type WatchlistHandler struct {
	watchlist *service.WatchlistService
	logger    *slog.Logger
}

// NewWatchlistHandler creates a watchlist handler.
func NewWatchlistHandler(watchlist *service.WatchlistService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist, logger: logger}
}

// List handles GET /watchlist.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	items, err := h.watchlist.List(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if items == nil {
		items = []models.WatchlistItem{}
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// AddWatchlistRequest is the POST /watchlist body.
type AddWatchlistRequest struct {
	Ticker string  `json:"ticker"`
	Reason *string `json:"reason"`
}

// Validate implements request validation.
func (req AddWatchlistRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Ticker, validation.Required, validation.Length(1, 20)),
		validation.Field(&req.Reason, validation.Length(0, 500)),
	)
}

// Add handles POST /watchlist.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req AddWatchlistRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.watchlist.Add(r.Context(), userID, req.Ticker, req.Reason)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]interface{}{"item": item})
}

// Remove handles DELETE /watchlist?ticker=X. Without a ticker it clears
// the whole list.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tickerParam := r.URL.Query().Get("ticker")
	if tickerParam == "" {
		count, err := h.watchlist.Clear(r.Context(), userID)
		if err != nil {
			handleError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"removed": count})
		return
	}

	removed, err := h.watchlist.Remove(r.Context(), userID, tickerParam)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}
