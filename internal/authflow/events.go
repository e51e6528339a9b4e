package authflow

import (
	"context"
	"log/slog"
)

// Stage names the callback state machine positions
type Stage string

const (
	StageReceived   Stage = "received"
	StageValidating Stage = "validating"
	StageExchanging Stage = "exchanging"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Event records one state machine transition. Payloads carry enough context
// to diagnose a failure but never tokens, codes, or verifiers.
type Event struct {
	Stage    Stage
	Reason   FailureReason // Set when Stage is StageFailed
	HadState bool          // Whether the callback carried a state parameter
	Err      error
}

// Sink consumes flow events. Implementations must not block; the flow emits
// inline with request handling.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NopSink discards all events
type NopSink struct{}

// Emit discards the event
func (NopSink) Emit(ctx context.Context, event Event) {}

// SlogSink logs events through a structured logger
type SlogSink struct {
	Logger *slog.Logger
}

// Emit logs the transition; failures log at Warn, the rest at Debug
func (s SlogSink) Emit(ctx context.Context, event Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"stage", string(event.Stage), "had_state", event.HadState}
	if event.Reason != "" {
		attrs = append(attrs, "reason", string(event.Reason))
	}
	if event.Err != nil {
		attrs = append(attrs, "error", event.Err.Error())
	}

	if event.Stage == StageFailed {
		logger.WarnContext(ctx, "authorization callback failed", attrs...)
		return
	}
	logger.DebugContext(ctx, "authorization callback transition", attrs...)
}
