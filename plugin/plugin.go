// Package plugin provides an extensible plugin system for the engine.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/creditkit/creditkit/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnTick is called on every engine housekeeping tick.
type OnTick interface {
	Plugin
	OnTick(ctx context.Context, at time.Time) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a new account object is created.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, objectType, objectID string) error
}

// OnLogin is called when a login attempt is recorded.
type OnLogin interface {
	Plugin
	OnLogin(ctx context.Context, userID, state, reason string) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnMint is called when the initial point supply is minted.
type OnMint interface {
	Plugin
	OnMint(ctx context.Context, amount types.Points) error
}

// OnReward is called when points are rewarded to an account.
type OnReward interface {
	Plugin
	OnReward(ctx context.Context, userID string, amount types.Points, reason string) error
}

// OnFounderRewarded is called when the one-time founders reward is paid.
type OnFounderRewarded interface {
	Plugin
	OnFounderRewarded(ctx context.Context, userID string, amount types.Points) error
}

// OnPointsLocked is called when points move to an account's locked balance.
type OnPointsLocked interface {
	Plugin
	OnPointsLocked(ctx context.Context, objectID string, amount types.Points, reason string) error
}

// OnPointsUnlocked is called when locked points are released.
type OnPointsUnlocked interface {
	Plugin
	OnPointsUnlocked(ctx context.Context, objectID string, amount types.Points, reason string) error
}

// OnTransfer is called when available points move between accounts.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, fromID, toID string, amount types.Points) error
}

// OnConfiscated is called when locked points are confiscated back to the
// system account.
type OnConfiscated interface {
	Plugin
	OnConfiscated(ctx context.Context, objectID string, amount types.Points, reason string) error
}

// ──────────────────────────────────────────────────
// Infrastructure hooks
// ──────────────────────────────────────────────────

// OnCacheFlushed is called after dirty objects are written back.
type OnCacheFlushed interface {
	Plugin
	OnCacheFlushed(ctx context.Context, elapsed time.Duration) error
}

// OnOrderMatched is called when an exchange order matches pending volume.
type OnOrderMatched interface {
	Plugin
	OnOrderMatched(ctx context.Context, account string, matched types.Points, price types.Points) error
}

// OnStoreError is called when a write-back to the store fails. The flush
// retries on its own schedule; this hook exists for visibility.
type OnStoreError interface {
	Plugin
	OnStoreError(ctx context.Context, err error) error
}
