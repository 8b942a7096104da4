package extension

import (
	"time"

	creditkit "github.com/creditkit/creditkit"
	"github.com/creditkit/creditkit/plugin"
	"github.com/creditkit/creditkit/store"
)

// Option configures the Extension.
type Option func(*Extension)

// WithConfig sets the full configuration programmatically.
func WithConfig(cfg Config) Option {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithStore sets an explicit backing store, bypassing the default file store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithDataDir sets the directory for the default file store.
func WithDataDir(dir string) Option {
	return func(e *Extension) {
		e.config.DataDir = dir
	}
}

// WithLogsDir sets the directory for audit trail files.
func WithLogsDir(dir string) Option {
	return func(e *Extension) {
		e.config.LogsDir = dir
	}
}

// WithFlushInterval sets the cache write-back interval.
func WithFlushInterval(d time.Duration) Option {
	return func(e *Extension) {
		e.config.FlushInterval = d
	}
}

// WithAuditFlushInterval sets the audit trail flush interval.
func WithAuditFlushInterval(d time.Duration) Option {
	return func(e *Extension) {
		e.config.AuditFlushInterval = d
	}
}

// WithTickInterval sets the engine background tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(e *Extension) {
		e.config.TickInterval = d
	}
}

// WithNewUserRewards sets the new-user reward tiers as "threshold:amount" entries.
func WithNewUserRewards(entries ...string) Option {
	return func(e *Extension) {
		e.config.NewUserRewards = entries
	}
}

// WithInvitationRewards sets the inviter reward tiers as "threshold:amount" entries.
func WithInvitationRewards(entries ...string) Option {
	return func(e *Extension) {
		e.config.InvitationRewards = entries
	}
}

// WithPlugin registers a plugin with the engine.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, creditkit.WithPlugin(p))
	}
}

// WithEngineOption appends a raw engine option.
// Use this for engine settings that have no config equivalent.
func WithEngineOption(opt creditkit.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithDisableStart prevents the extension from starting the engine's
// background workers. The caller becomes responsible for calling
// Engine().Start and Engine().Stop.
func WithDisableStart() Option {
	return func(e *Extension) {
		e.config.DisableStart = true
	}
}

// WithRequireConfig makes Register fail if no configuration is found
// in the application's config files.
func WithRequireConfig() Option {
	return func(e *Extension) {
		e.config.RequireConfig = true
	}
}
