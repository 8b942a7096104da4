// Package observability provides a metrics extension for the engine that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/creditkit/creditkit/plugin"
	"github.com/creditkit/creditkit/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated  = (*MetricsExtension)(nil)
	_ plugin.OnLogin           = (*MetricsExtension)(nil)
	_ plugin.OnMint            = (*MetricsExtension)(nil)
	_ plugin.OnFounderRewarded = (*MetricsExtension)(nil)
	_ plugin.OnReward          = (*MetricsExtension)(nil)
	_ plugin.OnPointsLocked    = (*MetricsExtension)(nil)
	_ plugin.OnPointsUnlocked  = (*MetricsExtension)(nil)
	_ plugin.OnTransfer        = (*MetricsExtension)(nil)
	_ plugin.OnConfiscated     = (*MetricsExtension)(nil)
	_ plugin.OnOrderMatched    = (*MetricsExtension)(nil)
	_ plugin.OnCacheFlushed    = (*MetricsExtension)(nil)
	_ plugin.OnStoreError      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track ledger metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter
	LoginSuccesses  Counter
	LoginFailures   Counter

	// Supply metrics
	PointsMinted   Histogram
	FoundersReward Counter

	// Balance metrics
	RewardsPaid    Counter
	RewardAmount   Histogram
	PointsLocked   Counter
	PointsUnlocked Counter
	Transfers      Counter
	TransferAmount Histogram
	Confiscations  Counter

	// Exchange metrics
	OrdersMatched Counter
	MatchedVolume Histogram

	// Infrastructure metrics
	CacheFlushLatency Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountsCreated: factory.Counter("creditkit.accounts.created"),
		LoginSuccesses:  factory.Counter("creditkit.login.successes"),
		LoginFailures:   factory.Counter("creditkit.login.failures"),

		// Supply metrics
		PointsMinted:   factory.Histogram("creditkit.supply.minted"),
		FoundersReward: factory.Counter("creditkit.supply.founders_rewarded"),

		// Balance metrics
		RewardsPaid:    factory.Counter("creditkit.rewards.paid"),
		RewardAmount:   factory.Histogram("creditkit.rewards.amount"),
		PointsLocked:   factory.Counter("creditkit.points.locked"),
		PointsUnlocked: factory.Counter("creditkit.points.unlocked"),
		Transfers:      factory.Counter("creditkit.transfers"),
		TransferAmount: factory.Histogram("creditkit.transfers.amount"),
		Confiscations:  factory.Counter("creditkit.points.confiscated"),

		// Exchange metrics
		OrdersMatched: factory.Counter("creditkit.exchange.orders.matched"),
		MatchedVolume: factory.Histogram("creditkit.exchange.matched.volume"),

		// Infrastructure metrics
		CacheFlushLatency: factory.Histogram("creditkit.cache.flush.latency_ms"),

		// Error metrics
		StoreErrors:  factory.Counter("creditkit.store.errors"),
		PluginErrors: factory.Counter("creditkit.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit. When the host exposes its plugin
// registry, dispatch failures across all plugins feed the PluginErrors
// counter.
func (m *MetricsExtension) OnInit(_ context.Context, engine interface{}) error {
	if host, ok := engine.(interface{ Plugins() *plugin.Registry }); ok {
		host.Plugins().OnDispatchFailure(func(_ string, _ error) {
			m.PluginErrors.Inc()
		})
	}
	return nil
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _, _ string) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnLogin implements plugin.OnLogin.
func (m *MetricsExtension) OnLogin(_ context.Context, _, state, _ string) error {
	if state == "SUCCESS" {
		m.LoginSuccesses.Inc()
	} else {
		m.LoginFailures.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Supply hooks
// ──────────────────────────────────────────────────

// OnMint implements plugin.OnMint.
func (m *MetricsExtension) OnMint(_ context.Context, amount types.Points) error {
	m.PointsMinted.Observe(amount.Float())
	return nil
}

// OnFounderRewarded implements plugin.OnFounderRewarded.
func (m *MetricsExtension) OnFounderRewarded(_ context.Context, _ string, _ types.Points) error {
	m.FoundersReward.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnReward implements plugin.OnReward.
func (m *MetricsExtension) OnReward(_ context.Context, _ string, amount types.Points, _ string) error {
	m.RewardsPaid.Inc()
	m.RewardAmount.Observe(amount.Float())
	return nil
}

// OnPointsLocked implements plugin.OnPointsLocked.
func (m *MetricsExtension) OnPointsLocked(_ context.Context, _ string, _ types.Points, _ string) error {
	m.PointsLocked.Inc()
	return nil
}

// OnPointsUnlocked implements plugin.OnPointsUnlocked.
func (m *MetricsExtension) OnPointsUnlocked(_ context.Context, _ string, _ types.Points, _ string) error {
	m.PointsUnlocked.Inc()
	return nil
}

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, _, _ string, amount types.Points) error {
	m.Transfers.Inc()
	m.TransferAmount.Observe(amount.Float())
	return nil
}

// OnConfiscated implements plugin.OnConfiscated.
func (m *MetricsExtension) OnConfiscated(_ context.Context, _ string, _ types.Points, _ string) error {
	m.Confiscations.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Exchange and infrastructure hooks
// ──────────────────────────────────────────────────

// OnOrderMatched implements plugin.OnOrderMatched.
func (m *MetricsExtension) OnOrderMatched(_ context.Context, _ string, matched, _ types.Points) error {
	m.OrdersMatched.Inc()
	m.MatchedVolume.Observe(matched.Float())
	return nil
}

// OnCacheFlushed implements plugin.OnCacheFlushed.
func (m *MetricsExtension) OnCacheFlushed(_ context.Context, elapsed time.Duration) error {
	m.CacheFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnStoreError implements plugin.OnStoreError.
func (m *MetricsExtension) OnStoreError(_ context.Context, _ error) error {
	m.StoreErrors.Inc()
	return nil
}
