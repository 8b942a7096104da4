package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/creditkit/creditkit/types"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onTick            []OnTick
	onAccountCreated  []OnAccountCreated
	onLogin           []OnLogin
	onMint            []OnMint
	onReward          []OnReward
	onFounderRewarded []OnFounderRewarded
	onPointsLocked    []OnPointsLocked
	onPointsUnlocked  []OnPointsUnlocked
	onTransfer        []OnTransfer
	onConfiscated     []OnConfiscated
	onCacheFlushed    []OnCacheFlushed
	onOrderMatched    []OnOrderMatched
	onStoreError      []OnStoreError

	// failureFn observes hook dispatch failures, for error accounting.
	failureFn func(pluginName string, err error)
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTick); ok {
		r.onTick = append(r.onTick, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnLogin); ok {
		r.onLogin = append(r.onLogin, v)
	}
	if v, ok := p.(OnMint); ok {
		r.onMint = append(r.onMint, v)
	}
	if v, ok := p.(OnReward); ok {
		r.onReward = append(r.onReward, v)
	}
	if v, ok := p.(OnFounderRewarded); ok {
		r.onFounderRewarded = append(r.onFounderRewarded, v)
	}
	if v, ok := p.(OnPointsLocked); ok {
		r.onPointsLocked = append(r.onPointsLocked, v)
	}
	if v, ok := p.(OnPointsUnlocked); ok {
		r.onPointsUnlocked = append(r.onPointsUnlocked, v)
	}
	if v, ok := p.(OnTransfer); ok {
		r.onTransfer = append(r.onTransfer, v)
	}
	if v, ok := p.(OnConfiscated); ok {
		r.onConfiscated = append(r.onConfiscated, v)
	}
	if v, ok := p.(OnCacheFlushed); ok {
		r.onCacheFlushed = append(r.onCacheFlushed, v)
	}
	if v, ok := p.(OnOrderMatched); ok {
		r.onOrderMatched = append(r.onOrderMatched, v)
	}
	if v, ok := p.(OnStoreError); ok {
		r.onStoreError = append(r.onStoreError, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnTick)(nil)).Elem(), "OnTick")
	checkInterface(reflect.TypeOf((*OnAccountCreated)(nil)).Elem(), "OnAccountCreated")
	checkInterface(reflect.TypeOf((*OnLogin)(nil)).Elem(), "OnLogin")
	checkInterface(reflect.TypeOf((*OnMint)(nil)).Elem(), "OnMint")
	checkInterface(reflect.TypeOf((*OnReward)(nil)).Elem(), "OnReward")
	checkInterface(reflect.TypeOf((*OnFounderRewarded)(nil)).Elem(), "OnFounderRewarded")
	checkInterface(reflect.TypeOf((*OnPointsLocked)(nil)).Elem(), "OnPointsLocked")
	checkInterface(reflect.TypeOf((*OnPointsUnlocked)(nil)).Elem(), "OnPointsUnlocked")
	checkInterface(reflect.TypeOf((*OnTransfer)(nil)).Elem(), "OnTransfer")
	checkInterface(reflect.TypeOf((*OnConfiscated)(nil)).Elem(), "OnConfiscated")
	checkInterface(reflect.TypeOf((*OnCacheFlushed)(nil)).Elem(), "OnCacheFlushed")
	checkInterface(reflect.TypeOf((*OnOrderMatched)(nil)).Elem(), "OnOrderMatched")
	checkInterface(reflect.TypeOf((*OnStoreError)(nil)).Elem(), "OnStoreError")

	return interfaces
}

// OnDispatchFailure registers a callback invoked whenever a plugin hook
// returns an error or times out. At most one callback is kept.
func (r *Registry) OnDispatchFailure(fn func(pluginName string, err error)) {
	r.mu.Lock()
	r.failureFn = fn
	r.mu.Unlock()
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTick emits a housekeeping tick event.
func (r *Registry) EmitTick(ctx context.Context, at time.Time) {
	r.mu.RLock()
	plugins := r.onTick
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTick(ctx, at)
		}); err != nil {
			r.logger.Warn("plugin OnTick failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, objectType, objectID string) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountCreated(ctx, objectType, objectID)
		}); err != nil {
			r.logger.Warn("plugin OnAccountCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLogin emits a login event.
func (r *Registry) EmitLogin(ctx context.Context, userID, state, reason string) {
	r.mu.RLock()
	plugins := r.onLogin
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLogin(ctx, userID, state, reason)
		}); err != nil {
			r.logger.Warn("plugin OnLogin failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMint emits a mint event.
func (r *Registry) EmitMint(ctx context.Context, amount types.Points) {
	r.mu.RLock()
	plugins := r.onMint
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMint(ctx, amount)
		}); err != nil {
			r.logger.Warn("plugin OnMint failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReward emits a reward event.
func (r *Registry) EmitReward(ctx context.Context, userID string, amount types.Points, reason string) {
	r.mu.RLock()
	plugins := r.onReward
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReward(ctx, userID, amount, reason)
		}); err != nil {
			r.logger.Warn("plugin OnReward failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFounderRewarded emits a founders reward event.
func (r *Registry) EmitFounderRewarded(ctx context.Context, userID string, amount types.Points) {
	r.mu.RLock()
	plugins := r.onFounderRewarded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFounderRewarded(ctx, userID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnFounderRewarded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsLocked emits a points locked event.
func (r *Registry) EmitPointsLocked(ctx context.Context, objectID string, amount types.Points, reason string) {
	r.mu.RLock()
	plugins := r.onPointsLocked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsLocked(ctx, objectID, amount, reason)
		}); err != nil {
			r.logger.Warn("plugin OnPointsLocked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPointsUnlocked emits a points unlocked event.
func (r *Registry) EmitPointsUnlocked(ctx context.Context, objectID string, amount types.Points, reason string) {
	r.mu.RLock()
	plugins := r.onPointsUnlocked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPointsUnlocked(ctx, objectID, amount, reason)
		}); err != nil {
			r.logger.Warn("plugin OnPointsUnlocked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransfer emits a transfer event.
func (r *Registry) EmitTransfer(ctx context.Context, fromID, toID string, amount types.Points) {
	r.mu.RLock()
	plugins := r.onTransfer
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransfer(ctx, fromID, toID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnTransfer failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitConfiscated emits a confiscation event.
func (r *Registry) EmitConfiscated(ctx context.Context, objectID string, amount types.Points, reason string) {
	r.mu.RLock()
	plugins := r.onConfiscated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnConfiscated(ctx, objectID, amount, reason)
		}); err != nil {
			r.logger.Warn("plugin OnConfiscated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCacheFlushed emits a cache flushed event.
func (r *Registry) EmitCacheFlushed(ctx context.Context, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onCacheFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCacheFlushed(ctx, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnCacheFlushed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderMatched emits an exchange order matched event.
func (r *Registry) EmitOrderMatched(ctx context.Context, account string, matched, price types.Points) {
	r.mu.RLock()
	plugins := r.onOrderMatched
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOrderMatched(ctx, account, matched, price)
		}); err != nil {
			r.logger.Warn("plugin OnOrderMatched failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStoreError emits a store write-back failure.
func (r *Registry) EmitStoreError(ctx context.Context, storeErr error) {
	r.mu.RLock()
	plugins := r.onStoreError
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStoreError(ctx, storeErr)
		}); err != nil {
			r.logger.Warn("plugin OnStoreError failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		err = fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		r.notifyFailure(pluginName, err)
	}
	return err
}

func (r *Registry) notifyFailure(pluginName string, err error) {
	r.mu.RLock()
	fn := r.failureFn
	r.mu.RUnlock()
	if fn != nil {
		fn(pluginName, err)
	}
}
