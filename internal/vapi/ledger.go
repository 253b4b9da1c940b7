package vapi

import (
	"context"
	"log/slog"
	"time"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// StillProcessingMessage is the deterministic reply for a duplicate
// delivery that lands while the first is still executing.
const StillProcessingMessage = "I'm still working on that request."

// Ledger gates tool dispatch on the idempotency ledger. The voice platform
// delivers at-least-once; a replayed toolCallId must observe the recorded
// response instead of executing the side effect twice.
type Ledger struct {
	repo   repositories.ProcessedToolCallRepository
	logger *slog.Logger
}

// NewLedger creates a ledger service.
func NewLedger(repo repositories.ProcessedToolCallRepository, logger *slog.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// LedgerMeta is the diagnostic context stored with a ledger row.
type LedgerMeta struct {
	ConversationID string
	UserID         string
	ToolName       string
}

// Gate checks the ledger before dispatch. A replayed id returns the stored
// envelope (or the still-processing reply); a fresh id is claimed as
// processing and returns nil so dispatch proceeds. The claim is a
// conditional insert, so two deliveries racing on the same id resolve to
// exactly one dispatch even when both read the ledger before either
// wrote it. The "unknown" id is not unique and bypasses the ledger
// entirely.
func (l *Ledger) Gate(ctx context.Context, toolCallID string, meta LedgerMeta) (*ResultEnvelope, error) {
	if toolCallID == "" || toolCallID == UnknownToolCallID {
		return nil, nil
	}

	existing, err := l.repo.Get(ctx, toolCallID)
	if err != nil {
		return nil, err
	}
	if env := l.replay(toolCallID, existing); env != nil {
		return env, nil
	}
	if existing != nil {
		// Terminal row without a readable envelope: re-dispatch rather
		// than answer with nothing. The status guard on the terminal
		// writes keeps the recorded row intact.
		return nil, nil
	}

	call := &models.ProcessedToolCall{
		ToolCallID: toolCallID,
		Status:     models.ToolCallProcessing,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if meta.ConversationID != "" {
		call.ConversationID = &meta.ConversationID
	}
	if meta.UserID != "" {
		call.UserID = &meta.UserID
	}
	if meta.ToolName != "" {
		call.ToolName = &meta.ToolName
	}
	claimed, err := l.repo.Start(ctx, call)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}

	// Lost the claim race: a duplicate delivery inserted the row between
	// our read and our write. Answer from its row.
	existing, err = l.repo.Get(ctx, toolCallID)
	if err != nil {
		return nil, err
	}
	if env := l.replay(toolCallID, existing); env != nil {
		return env, nil
	}
	env := WrapText(toolCallID, StillProcessingMessage)
	return &env, nil
}

// replay maps an existing ledger row to the envelope a duplicate delivery
// should receive, or nil when dispatch should proceed.
func (l *Ledger) replay(toolCallID string, existing *models.ProcessedToolCall) *ResultEnvelope {
	if existing == nil {
		return nil
	}
	switch existing.Status {
	case models.ToolCallProcessing:
		l.logger.Info("duplicate delivery while processing", "tool_call_id", toolCallID)
		env := WrapText(toolCallID, StillProcessingMessage)
		return &env
	case models.ToolCallSucceeded:
		if env, ok := EnvelopeFromMap(existing.ResultJSON); ok {
			l.logger.Info("replaying recorded result", "tool_call_id", toolCallID)
			return &env
		}
	case models.ToolCallFailed:
		if env, ok := EnvelopeFromMap(existing.ErrorJSON); ok {
			l.logger.Info("replaying recorded failure", "tool_call_id", toolCallID)
			return &env
		}
	}
	return nil
}

// Record writes the terminal envelope for a dispatched call. ok selects
// the succeeded or failed column. Best-effort: a write failure is logged
// and the response still goes out.
func (l *Ledger) Record(ctx context.Context, toolCallID string, ok bool, env ResultEnvelope) {
	if toolCallID == "" || toolCallID == UnknownToolCallID {
		return
	}
	stored := EnvelopeMap(env)
	var err error
	if ok {
		err = l.repo.Succeed(ctx, toolCallID, stored)
	} else {
		err = l.repo.Fail(ctx, toolCallID, stored)
	}
	if err != nil {
		l.logger.Error("ledger terminal write failed", "tool_call_id", toolCallID, "error", err)
	}
}
