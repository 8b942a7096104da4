// Package audithook bridges engine lifecycle events to a structured audit
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time; the engine's own flat-file
// trail keeps running independently.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creditkit/creditkit/plugin"
	"github.com/creditkit/creditkit/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnAccountCreated  = (*Extension)(nil)
	_ plugin.OnLogin           = (*Extension)(nil)
	_ plugin.OnMint            = (*Extension)(nil)
	_ plugin.OnFounderRewarded = (*Extension)(nil)
	_ plugin.OnReward          = (*Extension)(nil)
	_ plugin.OnPointsLocked    = (*Extension)(nil)
	_ plugin.OnPointsUnlocked  = (*Extension)(nil)
	_ plugin.OnTransfer        = (*Extension)(nil)
	_ plugin.OnConfiscated     = (*Extension)(nil)
	_ plugin.OnOrderMatched    = (*Extension)(nil)
	_ plugin.OnCacheFlushed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so the package does not import a backend directly —
// callers inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, objectType, objectID string) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, objectID, CategoryAccount, nil,
		"object_type", objectType,
	)
}

// OnLogin implements plugin.OnLogin.
func (e *Extension) OnLogin(ctx context.Context, userID, state, reason string) error {
	action := ActionLoginSucceeded
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if state != "SUCCESS" {
		action = ActionLoginFailed
		outcome = OutcomeFailure
		severity = SeverityWarning
	}
	return e.record(ctx, action, severity, outcome,
		ResourceAccount, userID, CategoryAccess, nil,
		"state", state,
		"reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Supply hooks
// ──────────────────────────────────────────────────

// OnMint implements plugin.OnMint.
func (e *Extension) OnMint(ctx context.Context, amount types.Points) error {
	return e.record(ctx, ActionMint, SeverityCritical, OutcomeSuccess,
		ResourceSupply, "", CategorySystem, nil,
		"amount", amount.String(),
	)
}

// OnFounderRewarded implements plugin.OnFounderRewarded.
func (e *Extension) OnFounderRewarded(ctx context.Context, userID string, amount types.Points) error {
	return e.record(ctx, ActionFounderRewarded, SeverityCritical, OutcomeSuccess,
		ResourceSupply, userID, CategorySystem, nil,
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnReward implements plugin.OnReward.
func (e *Extension) OnReward(ctx context.Context, userID string, amount types.Points, reason string) error {
	return e.record(ctx, ActionReward, SeverityInfo, OutcomeSuccess,
		ResourceBalance, userID, CategoryLedger, nil,
		"amount", amount.String(),
		"reason", reason,
	)
}

// OnPointsLocked implements plugin.OnPointsLocked.
func (e *Extension) OnPointsLocked(ctx context.Context, objectID string, amount types.Points, reason string) error {
	return e.record(ctx, ActionPointsLocked, SeverityInfo, OutcomeSuccess,
		ResourceBalance, objectID, CategoryLedger, nil,
		"amount", amount.String(),
		"reason", reason,
	)
}

// OnPointsUnlocked implements plugin.OnPointsUnlocked.
func (e *Extension) OnPointsUnlocked(ctx context.Context, objectID string, amount types.Points, reason string) error {
	return e.record(ctx, ActionPointsUnlocked, SeverityInfo, OutcomeSuccess,
		ResourceBalance, objectID, CategoryLedger, nil,
		"amount", amount.String(),
		"reason", reason,
	)
}

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, fromID, toID string, amount types.Points) error {
	return e.record(ctx, ActionTransfer, SeverityInfo, OutcomeSuccess,
		ResourceBalance, fromID, CategoryLedger, nil,
		"from", fromID,
		"to", toID,
		"amount", amount.String(),
	)
}

// OnConfiscated implements plugin.OnConfiscated.
func (e *Extension) OnConfiscated(ctx context.Context, objectID string, amount types.Points, reason string) error {
	return e.record(ctx, ActionConfiscated, SeverityWarning, OutcomeSuccess,
		ResourceBalance, objectID, CategoryLedger, nil,
		"amount", amount.String(),
		"reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Exchange and infrastructure hooks
// ──────────────────────────────────────────────────

// OnOrderMatched implements plugin.OnOrderMatched.
func (e *Extension) OnOrderMatched(ctx context.Context, account string, matched, price types.Points) error {
	return e.record(ctx, ActionOrderMatched, SeverityInfo, OutcomeSuccess,
		ResourceExchange, account, CategoryExchange, nil,
		"matched", matched.String(),
		"price", price.String(),
	)
}

// OnCacheFlushed implements plugin.OnCacheFlushed.
func (e *Extension) OnCacheFlushed(ctx context.Context, elapsed time.Duration) error {
	return e.record(ctx, ActionCacheFlushed, SeverityInfo, OutcomeSuccess,
		ResourceCache, "", CategorySystem, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
