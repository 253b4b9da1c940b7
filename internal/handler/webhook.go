package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"marketbrief/internal/config"
	"marketbrief/internal/domain/models"
	"marketbrief/internal/httputil"
	"marketbrief/internal/vapi"
	"marketbrief/pkg/metrics"
)

// missingNameMessage explains the most common integration mistake: a tool
// configured upstream without a function name.
const missingNameMessage = "Error: Missing tool name. Please verify the tool is configured with a valid name " +
	"(e.g., get_movers or get_quote) and resend the request with the name field set."

// WebhookHandler is the voice-platform tool dispatch endpoint. Everything
// user-facing goes out in-band as results[0].result; the platform does not
// surface non-200 bodies to the caller.
type WebhookHandler struct {
	registry      *vapi.Registry
	resolver      *vapi.UserResolver
	confirmations *vapi.ConfirmationStore
	ledger        *vapi.Ledger
	secret        string
	isProduction  bool
	allowDemo     bool
	logger        *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(
	registry *vapi.Registry,
	resolver *vapi.UserResolver,
	confirmations *vapi.ConfirmationStore,
	ledger *vapi.Ledger,
	cfg *config.Config,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		registry:      registry,
		resolver:      resolver,
		confirmations: confirmations,
		ledger:        ledger,
		secret:        cfg.WebhookSecret,
		isProduction:  cfg.IsProduction(),
		allowDemo:     cfg.AllowDemoUser,
		logger:        logger,
	}
}

// Liveness answers GET /webhook so platform-side connectivity checks pass.
func (h *WebhookHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"message": "webhook alive"})
}

// Handle processes POST /webhook.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		httputil.RespondJSON(w, http.StatusBadRequest,
			vapi.WrapText(vapi.UnknownToolCallID, "Invalid content-type. Expect application/json."))
		return
	}

	if h.secret != "" && r.Header.Get("x-webhook-secret") != h.secret {
		httputil.RespondJSON(w, http.StatusUnauthorized,
			vapi.WrapText(vapi.UnknownToolCallID, "Unauthorized"))
		return
	}

	// A malformed body degrades to an empty one; the missing-name
	// diagnostic below then explains what is wrong.
	var body models.JSONMap
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		body = models.JSONMap{}
	}

	call := vapi.ExtractToolCall(body)
	args := vapi.NormalizeArgs(call.Args)
	toolCallID := call.ToolCallID
	if toolCallID == "" {
		toolCallID = vapi.UnknownToolCallID
	}
	conversationID := vapi.ConversationID(body)
	userText := vapi.UserText(body, args)

	name := call.Name
	if name == "" {
		name = vapi.InferName(args)
	}
	if name == "" {
		h.logMissingName(body, args, toolCallID)
		httputil.RespondJSON(w, http.StatusBadRequest, vapi.WrapText(toolCallID, missingNameMessage))
		return
	}
	toolName := vapi.CanonicalName(name)

	ctx := r.Context()
	fromBrowser := r.Header.Get("x-from-browser") == "1"
	allowDemo := h.allowDemo && r.Header.Get("x-allow-demo") == "1"
	token := vapi.ExtractUserToken(r, body, args, !h.isProduction)
	hint := ""
	if !h.isProduction {
		hint = vapi.ExtractUserHint(r, body, args)
	}

	resolution := h.resolver.Resolve(ctx, token.Token, hint, fromBrowser, allowDemo)
	if resolution.Err != "" {
		h.logger.Warn("webhook user resolution failed",
			"tool", toolName, "token_source", token.Source, "error", resolution.Err)
		httputil.RespondJSON(w, http.StatusOK, vapi.WrapText(toolCallID, resolution.Err))
		return
	}

	if replay, err := h.ledger.Gate(ctx, toolCallID, vapi.LedgerMeta{
		ConversationID: conversationID,
		UserID:         resolution.UserID,
		ToolName:       toolName,
	}); err != nil {
		// Idempotency degrades before availability does.
		h.logger.Error("ledger gate failed", "tool_call_id", toolCallID, "error", err)
	} else if replay != nil {
		httputil.RespondJSON(w, http.StatusOK, *replay)
		return
	}

	callCtx := vapi.Context{
		UserID:         resolution.UserID,
		Source:         resolution.Source,
		ToolCallID:     toolCallID,
		ConversationID: conversationID,
	}

	if resp := h.confirmations.Replay(ctx, h.registry, callCtx, args, userText); resp != nil {
		env := vapi.Wrap(toolCallID, *resp)
		h.ledger.Record(ctx, toolCallID, resp.OK, env)
		httputil.RespondJSON(w, http.StatusOK, env)
		return
	}

	if !h.registry.Known(toolName) {
		env := vapi.WrapText(toolCallID, "Unknown tool: "+toolName)
		h.ledger.Record(ctx, toolCallID, false, env)
		httputil.RespondJSON(w, http.StatusOK, env)
		return
	}

	start := time.Now()
	resp := h.dispatch(ctx, toolName, args, callCtx)
	outcome := "error"
	if resp.OK {
		outcome = "ok"
	}
	metrics.RecordToolDispatch(toolName, outcome, time.Since(start).Seconds())

	env := vapi.Wrap(toolCallID, resp)
	h.ledger.Record(ctx, toolCallID, resp.OK, env)
	httputil.RespondJSON(w, http.StatusOK, env)
}

// dispatch runs one tool and converts a panic into a generic in-band
// error so infrastructure failures stay speakable.
func (h *WebhookHandler) dispatch(ctx context.Context, toolName string, args models.JSONMap, call vapi.Context) (resp vapi.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("tool dispatch panicked",
				"tool", toolName, "user_id", call.UserID, "tool_call_id", call.ToolCallID, "panic", rec)
			resp = vapi.Response{Err: "An error occurred"}
		}
	}()
	return h.registry.Dispatch(ctx, toolName, args, call)
}

// logMissingName records enough about an unrecognized payload to debug
// upstream drift without dumping user tokens.
func (h *WebhookHandler) logMissingName(body, args models.JSONMap, toolCallID string) {
	bodyKeys := make([]string, 0, len(body))
	for k := range body {
		bodyKeys = append(bodyKeys, k)
	}
	sort.Strings(bodyKeys)
	argKeys := make([]string, 0, len(args))
	for k := range args {
		argKeys = append(argKeys, k)
	}
	sort.Strings(argKeys)
	h.logger.Error("webhook payload missing tool name",
		"tool_call_id", toolCallID, "body_keys", bodyKeys, "arg_keys", argKeys)
}
