// Package extension provides the Forge extension adapter for CreditKit.
//
// It implements the forge.Extension interface to integrate the point
// ledger engine into a Forge application with DI registration and
// lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.creditkit" or
// "creditkit" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	creditkit "github.com/creditkit/creditkit"
	"github.com/creditkit/creditkit/audit"
	"github.com/creditkit/creditkit/cache"
	"github.com/creditkit/creditkit/ledger"
	"github.com/creditkit/creditkit/store"
	"github.com/creditkit/creditkit/store/file"
	"github.com/creditkit/creditkit/tier"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "creditkit"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Embeddable point and credit ledger engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts CreditKit as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *creditkit.Engine
	store      store.Store
	engineOpts []creditkit.Option
}

// New creates a new CreditKit Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine instance.
// This is nil until Register is called.
func (e *Extension) Engine() *creditkit.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use the file store if no store was provided programmatically.
	if e.store == nil {
		e.store = file.New(e.config.DataDir)
	}

	trail, err := audit.New(e.config.LogsDir,
		audit.WithFlushInterval(e.config.AuditFlushInterval))
	if err != nil {
		return err
	}

	led := ledger.New(
		cache.New(e.store, cache.WithFlushInterval(e.config.FlushInterval)),
		trail,
		creditkit.Schema(),
	)

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}
	e.engine, err = creditkit.New(led, opts...)
	if err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*creditkit.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("creditkit: extension not initialized")
	}

	if !e.config.DisableStart {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil && !e.config.DisableStart {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("creditkit: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs creditkit.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]creditkit.Option, error) {
	opts := make([]creditkit.Option, 0, len(e.engineOpts)+6)

	if len(e.config.NewUserRewards) > 0 {
		table, err := tier.Parse(e.config.NewUserRewards)
		if err != nil {
			return nil, err
		}
		opts = append(opts, creditkit.WithNewUserRewards(table))
	}
	if len(e.config.InvitationRewards) > 0 {
		table, err := tier.Parse(e.config.InvitationRewards)
		if err != nil {
			return nil, err
		}
		opts = append(opts, creditkit.WithInvitationRewards(table))
	}

	if e.config.DefaultReward > 0 {
		opts = append(opts, creditkit.WithDefaultReward(creditkit.FromFloat(e.config.DefaultReward)))
	}
	if e.config.UnlockedPoints > 0 {
		opts = append(opts, creditkit.WithUnlockedPoints(creditkit.FromFloat(e.config.UnlockedPoints)))
	}
	if e.config.InitialTokenPrice > 0 {
		opts = append(opts, creditkit.WithInitialTokenPrice(e.config.InitialTokenPrice))
	}
	if e.config.TickInterval > 0 {
		opts = append(opts, creditkit.WithTickInterval(e.config.TickInterval))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("creditkit: configuration is required but not found in config files; " +
				"ensure 'extensions.creditkit' or 'creditkit' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("creditkit: configuration loaded",
		forge.F("data_dir", e.config.DataDir),
		forge.F("logs_dir", e.config.LogsDir),
		forge.F("flush_interval", e.config.FlushInterval),
		forge.F("tick_interval", e.config.TickInterval),
		forge.F("token_price", e.config.InitialTokenPrice),
		forge.F("disable_start", e.config.DisableStart),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.creditkit" first (namespaced pattern).
	if cm.IsSet("extensions.creditkit") {
		if err := cm.Bind("extensions.creditkit", &cfg); err == nil {
			e.Logger().Debug("creditkit: loaded config from file",
				forge.F("key", "extensions.creditkit"),
			)
			return cfg, true
		}
		e.Logger().Warn("creditkit: failed to bind extensions.creditkit config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "creditkit" key.
	if cm.IsSet("creditkit") {
		if err := cm.Bind("creditkit", &cfg); err == nil {
			e.Logger().Debug("creditkit: loaded config from file",
				forge.F("key", "creditkit"),
			)
			return cfg, true
		}
		e.Logger().Warn("creditkit: failed to bind creditkit config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = defaults.LogsDir
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.AuditFlushInterval == 0 {
		cfg.AuditFlushInterval = defaults.AuditFlushInterval
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.DefaultReward == 0 {
		cfg.DefaultReward = defaults.DefaultReward
	}
	if cfg.UnlockedPoints == 0 {
		cfg.UnlockedPoints = defaults.UnlockedPoints
	}
	if cfg.InitialTokenPrice == 0 {
		cfg.InitialTokenPrice = defaults.InitialTokenPrice
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableStart {
		yamlConfig.DisableStart = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.DataDir == "" && programmaticConfig.DataDir != "" {
		yamlConfig.DataDir = programmaticConfig.DataDir
	}
	if yamlConfig.LogsDir == "" && programmaticConfig.LogsDir != "" {
		yamlConfig.LogsDir = programmaticConfig.LogsDir
	}

	// Tier tables: YAML takes precedence, programmatic fills gaps.
	if len(yamlConfig.NewUserRewards) == 0 {
		yamlConfig.NewUserRewards = programmaticConfig.NewUserRewards
	}
	if len(yamlConfig.InvitationRewards) == 0 {
		yamlConfig.InvitationRewards = programmaticConfig.InvitationRewards
	}

	// Duration/number fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.FlushInterval == 0 && programmaticConfig.FlushInterval != 0 {
		yamlConfig.FlushInterval = programmaticConfig.FlushInterval
	}
	if yamlConfig.AuditFlushInterval == 0 && programmaticConfig.AuditFlushInterval != 0 {
		yamlConfig.AuditFlushInterval = programmaticConfig.AuditFlushInterval
	}
	if yamlConfig.TickInterval == 0 && programmaticConfig.TickInterval != 0 {
		yamlConfig.TickInterval = programmaticConfig.TickInterval
	}
	if yamlConfig.DefaultReward == 0 && programmaticConfig.DefaultReward != 0 {
		yamlConfig.DefaultReward = programmaticConfig.DefaultReward
	}
	if yamlConfig.UnlockedPoints == 0 && programmaticConfig.UnlockedPoints != 0 {
		yamlConfig.UnlockedPoints = programmaticConfig.UnlockedPoints
	}
	if yamlConfig.InitialTokenPrice == 0 && programmaticConfig.InitialTokenPrice != 0 {
		yamlConfig.InitialTokenPrice = programmaticConfig.InitialTokenPrice
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
