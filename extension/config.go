package extension

import "time"

// Config holds the CreditKit extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.creditkit" or "creditkit" keys).
type Config struct {
	// DataDir is where the file store keeps object JSON files.
	// Ignored when a store is provided programmatically (default: "./data/").
	DataDir string `json:"data_dir" mapstructure:"data_dir" yaml:"data_dir"`

	// LogsDir is where audit log files are written (default: "./logs/").
	LogsDir string `json:"logs_dir" mapstructure:"logs_dir" yaml:"logs_dir"`

	// FlushInterval is the write-back period of the object cache
	// (default: 10s).
	FlushInterval time.Duration `json:"flush_interval" mapstructure:"flush_interval" yaml:"flush_interval"`

	// AuditFlushInterval is the buffered write-out period of the audit
	// trail (default: 1s).
	AuditFlushInterval time.Duration `json:"audit_flush_interval" mapstructure:"audit_flush_interval" yaml:"audit_flush_interval"`

	// TickInterval is the engine housekeeping tick period (default: 1h).
	TickInterval time.Duration `json:"tick_interval" mapstructure:"tick_interval" yaml:"tick_interval"`

	// NewUserRewards are "threshold:value" tiers paying new users by
	// signup order. Mandatory: Register fails without them.
	NewUserRewards []string `json:"new_user_rewards" mapstructure:"new_user_rewards" yaml:"new_user_rewards"`

	// InvitationRewards are "threshold:value" tiers paying inviters.
	// Mandatory: Register fails without them.
	InvitationRewards []string `json:"invitation_rewards" mapstructure:"invitation_rewards" yaml:"invitation_rewards"`

	// DefaultReward is paid when no tier matches (default: 0.001).
	DefaultReward float64 `json:"default_reward" mapstructure:"default_reward" yaml:"default_reward"`

	// UnlockedPoints is the spendable share of each reward (default: 0.001).
	UnlockedPoints float64 `json:"unlocked_points" mapstructure:"unlocked_points" yaml:"unlocked_points"`

	// InitialTokenPrice is the base token price (default: 1).
	InitialTokenPrice float64 `json:"initial_token_price" mapstructure:"initial_token_price" yaml:"initial_token_price"`

	// DisableStart prevents the engine from starting its workers on
	// extension start; the caller starts it manually.
	DisableStart bool `json:"disable_start" mapstructure:"disable_start" yaml:"disable_start"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:            "./data/",
		LogsDir:            "./logs/",
		FlushInterval:      10 * time.Second,
		AuditFlushInterval: time.Second,
		TickInterval:       time.Hour,
		DefaultReward:      0.001,
		UnlockedPoints:     0.001,
		InitialTokenPrice:  1,
	}
}
