package vapi

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
	"marketbrief/pkg/metrics"
)

// affirmatives are exact utterances that count as a yes for a pending
// confirmation. Matching is deliberately strict; "yes please do that other
// thing" should not fire a stored side effect.
var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "sure": {},
	"ok": {}, "okay": {}, "confirm": {}, "correct": {}, "right": {},
}

// IsAffirmative reports whether text is an exact yes.
func IsAffirmative(text string) bool {
	_, ok := affirmatives[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

var confirmWords = []string{
	"yes", "y", "yeah", "yep", "sure", "ok", "okay", "confirm",
	"correct", "right", "proceed", "go ahead", "do it",
}

var denyWords = []string{
	"no", "n", "nope", "cancel", "stop", "don't", "dont", "never", "abort",
}

// ExtractConfirmFlag classifies a looser utterance as yes, no or neither.
// A word matches at the start or end of the text, not mid-sentence.
// Returns nil when the text decides nothing.
func ExtractConfirmFlag(text string) *bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}
	matches := func(word string) bool {
		return normalized == word ||
			strings.HasPrefix(normalized, word+" ") ||
			strings.HasSuffix(normalized, " "+word)
	}
	for _, word := range confirmWords {
		if matches(word) {
			yes := true
			return &yes
		}
	}
	for _, word := range denyWords {
		if matches(word) {
			no := false
			return &no
		}
	}
	return nil
}

// tickerTools are the tools that park pending confirmations, in replay
// probe order.
var tickerTools = []string{"get_quote", "get_news", "add_to_watchlist", "remove_from_watchlist"}

// ConfirmationStore parks and replays confirm-before-run tool calls.
type ConfirmationStore struct {
	repo   repositories.PendingConfirmationRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewConfirmationStore creates a confirmation store.
func NewConfirmationStore(repo repositories.PendingConfirmationRepository, logger *slog.Logger) *ConfirmationStore {
	return &ConfirmationStore{repo: repo, logger: logger, now: time.Now}
}

// Park stores a pending confirmation with a fresh TTL. Calls without a
// conversation id have nowhere to park; they are silently skipped and the
// user will simply be asked again.
func (s *ConfirmationStore) Park(ctx context.Context, conversationID, toolName, tickerSym, userID string, args models.JSONMap) {
	if conversationID == "" || tickerSym == "" {
		return
	}
	pending := &models.PendingConfirmation{
		ConversationID: conversationID,
		ToolName:       toolName,
		Ticker:         tickerSym,
		Args:           args,
		UserID:         userID,
		ExpiresAt:      s.now().Add(models.ConfirmationTTL),
	}
	if err := s.repo.Upsert(ctx, pending); err != nil {
		s.logger.Error("failed to park confirmation", "tool", toolName, "ticker", tickerSym, "error", err)
		return
	}
	metrics.ConfirmationsTotal.WithLabelValues("parked").Inc()
}

// Replay checks whether this turn settles a parked confirmation. A yes
// re-dispatches the stored call with confirm set; a no clears the parked
// call and acknowledges the cancellation. The yes side is strict
// (IsAffirmative), the no side accepts looser phrasing like "no thanks"
// via ExtractConfirmFlag. Returns nil when nothing is settled and normal
// dispatch should continue. Pending records belonging to another user
// never replay or cancel.
func (s *ConfirmationStore) Replay(ctx context.Context, registry *Registry, call Context, args models.JSONMap, userText string) *Response {
	if call.ConversationID == "" {
		return nil
	}
	confirmed := args["confirm"] == true || IsAffirmative(userText)
	denied := false
	if !confirmed {
		if args["confirm"] == false {
			denied = true
		} else if flag := ExtractConfirmFlag(userText); flag != nil && !*flag {
			denied = true
		}
	}
	if !confirmed && !denied {
		return nil
	}

	for _, toolName := range tickerTools {
		pending, err := s.repo.Get(ctx, call.ConversationID, toolName, "")
		if err != nil {
			s.logger.Error("pending confirmation lookup failed", "tool", toolName, "error", err)
			continue
		}
		if pending == nil || pending.UserID != call.UserID {
			continue
		}

		if err := s.repo.Clear(ctx, pending.ConversationID, pending.ToolName, pending.Ticker); err != nil {
			s.logger.Warn("failed to clear settled confirmation", "tool", toolName, "error", err)
		}

		if denied {
			metrics.ConfirmationsTotal.WithLabelValues("cancelled").Inc()
			s.logger.Info("cancelled parked tool call",
				"tool", toolName, "ticker", pending.Ticker, "conversation_id", call.ConversationID)
			return &Response{OK: true, Data: MessagePayload{Text: "Okay, cancelled."}}
		}

		confirmedArgs := models.JSONMap{}
		for k, v := range pending.Args {
			confirmedArgs[k] = v
		}
		confirmedArgs["confirm"] = true
		confirmedArgs["ticker"] = pending.Ticker

		metrics.ConfirmationsTotal.WithLabelValues("replayed").Inc()
		s.logger.Info("replaying confirmed tool call",
			"tool", toolName, "ticker", pending.Ticker, "conversation_id", call.ConversationID)

		resp := registry.Dispatch(ctx, toolName, confirmedArgs, call)
		return &resp
	}
	return nil
}
