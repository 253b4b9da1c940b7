package vapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"marketbrief/internal/domain"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/market"
	"marketbrief/internal/service"
	"marketbrief/internal/ticker"
)

// Context identifies one tool invocation: who asked, via what, and in
// which conversation.
type Context struct {
	UserID         string
	Source         string
	ToolCallID     string
	ConversationID string
}

// Handler executes one canonical tool.
type Handler func(ctx context.Context, args models.JSONMap, call Context) Response

// Registry holds the canonical tool handlers.
type Registry struct {
	source        market.Source
	brief         *service.BriefService
	watchlist     *service.WatchlistService
	profiles      *service.ProfileService
	confirmations *ConfirmationStore
	logger        *slog.Logger

	handlers map[string]Handler
}

// NewRegistry wires the tool handlers to their collaborators.
func NewRegistry(
	source market.Source,
	brief *service.BriefService,
	watchlist *service.WatchlistService,
	profiles *service.ProfileService,
	confirmations *ConfirmationStore,
	logger *slog.Logger,
) *Registry {
	r := &Registry{
		source:        source,
		brief:         brief,
		watchlist:     watchlist,
		profiles:      profiles,
		confirmations: confirmations,
		logger:        logger,
	}
	r.handlers = map[string]Handler{
		"get_quote":             r.getQuote,
		"get_movers":            r.getMovers,
		"get_news":              r.getNews,
		"get_watchlist":         r.getWatchlist,
		"add_to_watchlist":      r.addToWatchlist,
		"remove_from_watchlist": r.removeFromWatchlist,
		"get_today_brief":       r.getTodayBrief,
		"get_user_profile":      r.getUserProfile,
	}
	return r
}

// Known reports whether name resolves to a canonical handler.
func (r *Registry) Known(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs the named tool. Unknown names get a speakable error.
func (r *Registry) Dispatch(ctx context.Context, name string, args models.JSONMap, call Context) Response {
	handler, ok := r.handlers[name]
	if !ok {
		return errorResponse("Unknown tool: " + name)
	}
	return handler(ctx, args, call)
}

func (r *Registry) getQuote(ctx context.Context, args models.JSONMap, call Context) Response {
	symbol := ticker.Coerce(argString(args, "ticker"))
	verdict := ticker.Decide(symbol, ticker.Options{
		Confirm: args["confirm"] == true,
		Action:  "get a quote for",
	})
	if resp, done := r.applyVerdict(ctx, verdict, "get_quote", args, call); done {
		return resp
	}

	result, err := r.source.Quote(ctx, verdict.Ticker)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errorResponse("Quote not found")
		}
		r.logger.Error("quote lookup failed", "ticker", verdict.Ticker, "error", err)
		return errorResponse("Quote fetch failed")
	}
	if result.Fallback {
		return Response{Err: result.Err, Data: QuotePayload{result.Quote}}
	}
	return Response{OK: true, Data: QuotePayload{result.Quote}}
}

func (r *Registry) getMovers(ctx context.Context, args models.JSONMap, call Context) Response {
	limit, ok := argLimit(args, 5)
	if !ok {
		return errorResponse("Limit must be a number.")
	}
	direction := "gainers"
	if argString(args, "direction") == "losers" {
		direction = "losers"
	}

	result, err := r.source.Movers(ctx, direction, limit)
	if err != nil {
		r.logger.Error("movers lookup failed", "direction", direction, "error", err)
		return errorResponse("Unable to fetch movers right now.")
	}
	payload := MoversPayload{Direction: result.Direction, Movers: result.Movers}
	if result.Fallback {
		return Response{Err: result.Err, Data: payload}
	}
	return Response{OK: true, Data: payload}
}

func (r *Registry) getNews(ctx context.Context, args models.JSONMap, call Context) Response {
	symbol := ticker.Coerce(argString(args, "ticker"))
	verdict := ticker.Decide(symbol, ticker.Options{
		Confirm:    args["confirm"] == true,
		AllowEmpty: true,
		Action:     "get news for",
	})
	if resp, done := r.applyVerdict(ctx, verdict, "get_news", args, call); done {
		return resp
	}

	limit, ok := argLimit(args, 3)
	if !ok {
		return errorResponse("Limit must be a number.")
	}

	result, err := r.source.News(ctx, verdict.Ticker, limit)
	if err != nil {
		r.logger.Error("news lookup failed", "ticker", verdict.Ticker, "error", err)
		return errorResponse("Unable to fetch news right now.")
	}
	payload := NewsPayload{Ticker: result.Ticker, Headlines: result.Headlines}
	if result.Fallback {
		return Response{Err: result.Err, Data: payload}
	}
	return Response{OK: true, Data: payload}
}

func (r *Registry) getWatchlist(ctx context.Context, args models.JSONMap, call Context) Response {
	items, err := r.watchlist.List(ctx, call.UserID)
	if err != nil {
		r.logger.Error("watchlist list failed", "user_id", call.UserID, "error", err)
		return errorResponse("Unable to read your watchlist right now.")
	}
	return Response{OK: true, Data: WatchlistPayload{Items: items}}
}

func (r *Registry) addToWatchlist(ctx context.Context, args models.JSONMap, call Context) Response {
	if call.UserID == "" {
		return errorResponse("I couldn't verify your session. Please sign in and try again.")
	}

	symbol := ticker.Coerce(argString(args, "ticker"))
	verdict := ticker.Decide(symbol, ticker.Options{
		Confirm:        args["confirm"] == true,
		RequireConfirm: true,
		Action:         "add",
	})
	if resp, done := r.applyVerdict(ctx, verdict, "add_to_watchlist", args, call); done {
		return resp
	}

	var reason *string
	if s := argString(args, "reason"); s != "" {
		reason = &s
	}
	item, err := r.watchlist.Add(ctx, call.UserID, verdict.Ticker, reason)
	if err != nil {
		r.logger.Error("watchlist add failed", "user_id", call.UserID, "ticker", verdict.Ticker, "error", err)
		return errorResponse("Unable to add to watchlist right now.")
	}
	return Response{OK: true, Data: MutationPayload{Added: item.Ticker}}
}

// removeAllSynonyms are free-text phrases meaning "empty the whole list".
var removeAllSynonyms = map[string]struct{}{
	"all": {}, "clear all": {}, "clear": {}, "*": {}, "everything": {}, "remove all": {},
}

func (r *Registry) removeFromWatchlist(ctx context.Context, args models.JSONMap, call Context) Response {
	raw := ticker.Coerce(argString(args, "ticker"))

	wantsAll := args["all"] == true || args["clear"] == true
	if !wantsAll {
		_, wantsAll = removeAllSynonyms[strings.ToLower(raw)]
	}
	if wantsAll || raw == "" {
		count, err := r.watchlist.Clear(ctx, call.UserID)
		if err != nil {
			r.logger.Error("watchlist clear failed", "user_id", call.UserID, "error", err)
			return errorResponse("Unable to remove from watchlist right now.")
		}
		removed := "none"
		if count > 0 {
			removed = "all"
		}
		return Response{OK: true, Data: MutationPayload{Removed: removed}}
	}

	verdict := ticker.Decide(raw, ticker.Options{
		Confirm:        args["confirm"] == true,
		RequireConfirm: true,
		Action:         "remove",
	})
	if resp, done := r.applyVerdict(ctx, verdict, "remove_from_watchlist", args, call); done {
		return resp
	}

	removed, err := r.watchlist.Remove(ctx, call.UserID, verdict.Ticker)
	if err != nil {
		r.logger.Error("watchlist remove failed", "user_id", call.UserID, "ticker", verdict.Ticker, "error", err)
		return errorResponse("Unable to remove from watchlist right now.")
	}
	if !removed {
		return errorResponse(verdict.Ticker + " is not on your watchlist.")
	}
	return Response{OK: true, Data: MutationPayload{Removed: verdict.Ticker}}
}

func (r *Registry) getTodayBrief(ctx context.Context, args models.JSONMap, call Context) Response {
	limit, ok := argLimit(args, 3)
	if !ok {
		return errorResponse("Limit must be a number.")
	}
	if limit > 10 {
		limit = 10
	}

	data, err := r.brief.Build(ctx, call.UserID, service.BriefOptions{NewsLimit: limit, MoversLimit: 5})
	if err != nil {
		r.logger.Error("brief build failed", "user_id", call.UserID, "error", err)
		return errorResponse("Unable to build your brief right now.")
	}

	payload := BriefPayload{
		Summary:    service.FormatBrief(data.Profile, data),
		TopGainers: capMovers(data.TopGainers, 5),
		TopLosers:  capMovers(data.TopLosers, 5),
		Headlines:  data.Headlines,
		Profile:    data.Profile,
		Watchlist:  data.Watchlist,
	}
	if len(data.Errors) > 0 {
		return Response{Err: "Unable to build brief from live data", Data: payload}
	}
	return Response{OK: true, Data: payload}
}

func (r *Registry) getUserProfile(ctx context.Context, args models.JSONMap, call Context) Response {
	profile, err := r.profiles.GetOrDefault(ctx, call.UserID)
	if err != nil {
		r.logger.Error("profile read failed", "user_id", call.UserID, "error", err)
		return errorResponse("Unable to read your profile right now.")
	}
	return Response{OK: true, Data: ProfilePayload{profile}}
}

// applyVerdict converts a non-ok ticker verdict into a response, parking
// a pending confirmation for the needs-confirm case. done is false when
// dispatch should continue with verdict.Ticker.
func (r *Registry) applyVerdict(ctx context.Context, verdict ticker.Verdict, toolName string, args models.JSONMap, call Context) (Response, bool) {
	switch verdict.Status {
	case ticker.StatusInvalid:
		return errorResponse(verdict.Prompt), true
	case ticker.StatusNeedsConfirm:
		r.confirmations.Park(ctx, call.ConversationID, toolName, verdict.Ticker, call.UserID, args)
		return errorResponse(verdict.Prompt), true
	default:
		return Response{}, false
	}
}

func argString(args models.JSONMap, key string) string {
	s, _ := args[key].(string)
	return s
}

// argLimit reads a numeric limit argument. Absent means the default;
// any non-numeric value is rejected.
func argLimit(args models.JSONMap, def int) (int, bool) {
	v, present := args["limit"]
	if !present || v == nil {
		return def, true
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func capMovers(movers []models.Mover, max int) []models.Mover {
	if len(movers) > max {
		return movers[:max]
	}
	return movers
}
