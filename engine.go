// Package creditkit is an embeddable point ledger engine.
//
// The engine manages point balances for configurable object types backed by
// a pluggable key→JSON store, pays tiered rewards to early users and their
// inviters, and runs a discrete-price step exchange. All state flows through
// a write-back cache with an audit trail alongside.
package creditkit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creditkit/creditkit/exchange"
	"github.com/creditkit/creditkit/id"
	"github.com/creditkit/creditkit/ledger"
	"github.com/creditkit/creditkit/plugin"
	"github.com/creditkit/creditkit/tier"
	"github.com/creditkit/creditkit/types"
)

// SystemID is the reserved account holding unallocated points.
const SystemID = ledger.SystemID

// Default reward parameters.
const (
	DefaultReward        = 0.001
	DefaultUnlockedShare = 0.001
	DefaultTokenPrice    = 1.0
	DefaultTickInterval  = time.Hour
)

// Object type names the engine registers on its schema.
const (
	TypeUser    = "user"
	TypeAgent   = "agent"
	TypeChannel = "channel"
)

// LoginSuccess and LoginFail are the states recorded by LoginEvent.
const (
	LoginSuccess = "SUCCESS"
	LoginFail    = "FAIL"
)

// TotalBalance is the pair of balances carried by every account.
type TotalBalance struct {
	Balance       types.Points `json:"balance"`
	LockedBalance types.Points `json:"lockedBalance"`
}

// AccountStatus summarizes an account for display.
type AccountStatus struct {
	AvailablePoints types.Points `json:"availablePoints"`
	LockedPoints    types.Points `json:"lockedPoints"`
	EstimatedValue  float64      `json:"estimatedValue"`
}

// Engine is the top-level point ledger engine.
type Engine struct {
	ledger  *ledger.Ledger
	book    *exchange.Book
	plugins *plugin.Registry
	logger  *slog.Logger

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	newUserRewards    tier.Table
	invitationRewards tier.Table
	defaultReward     types.Points
	unlockedPoints    types.Points
	initialTokenPrice float64
	tickInterval      time.Duration
}

// Option configures the Engine.
type Option func(*Engine)

// New creates a new Engine over a configured ledger. Both reward tables
// are mandatory settings; an Engine without them cannot pay signups.
func New(led *ledger.Ledger, opts ...Option) (*Engine, error) {
	e := &Engine{
		ledger:            led,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		stopChan:          make(chan struct{}),
		defaultReward:     types.FromFloat(DefaultReward),
		unlockedPoints:    types.FromFloat(DefaultUnlockedShare),
		initialTokenPrice: DefaultTokenPrice,
		tickInterval:      DefaultTickInterval,
	}

	for _, opt := range opts {
		opt(e)
	}

	if len(e.newUserRewards) == 0 || len(e.invitationRewards) == 0 {
		return nil, types.ValidationError{
			Field:   "rewards",
			Message: "invalid rewards settings: new-user and invitation tables are required",
		}
	}

	e.book = exchange.NewBook(exchange.WithInitialPrice(e.initialTokenPrice))

	return e, nil
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithNewUserRewards sets the tier table paying new users by signup order.
func WithNewUserRewards(t tier.Table) Option {
	return func(e *Engine) {
		e.newUserRewards = t
	}
}

// WithInvitationRewards sets the tier table paying inviters by the invited
// user's signup order.
func WithInvitationRewards(t tier.Table) Option {
	return func(e *Engine) {
		e.invitationRewards = t
	}
}

// WithDefaultReward sets the reward paid when no tier matches.
func WithDefaultReward(p types.Points) Option {
	return func(e *Engine) {
		if p.IsPositive() {
			e.defaultReward = p
		}
	}
}

// WithUnlockedPoints sets the share of each reward left immediately
// spendable; the remainder locks until validation.
func WithUnlockedPoints(p types.Points) Option {
	return func(e *Engine) {
		if p.IsPositive() {
			e.unlockedPoints = p
		}
	}
}

// WithInitialTokenPrice sets the base token price used for account value
// estimates and the exchange price formula.
func WithInitialTokenPrice(price float64) Option {
	return func(e *Engine) {
		if price > 0 {
			e.initialTokenPrice = price
		}
	}
}

// WithTickInterval sets the housekeeping tick period.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// Schema returns the object schema the engine expects on its ledger:
// users, agents and channels.
func Schema() *ledger.Schema {
	s := ledger.NewSchema()
	s.Register(TypeUser, id.PrefixUser,
		"email", "name", "invitingUserID", "level",
		"lockedAmountUntilValidation", "lockedAmountForInvitingUser")
	s.Register(TypeAgent, id.PrefixAgent, "name")
	s.Register(TypeChannel, id.PrefixChannel, "name")
	return s
}

// Start initializes the ledger, notifies plugins, and starts the
// housekeeping tick worker.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.ledger.Init(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.tickWorker()

	e.logger.Info("engine started",
		"tick_interval", e.tickInterval,
		"token_price", e.initialTokenPrice,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.ledger.Shutdown(ctx)
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// Ledger returns the underlying ledger for direct access.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Exchange returns the step exchange order book.
func (e *Engine) Exchange() *exchange.Book {
	return e.book
}

func (e *Engine) tickWorker() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return

		case now := <-ticker.C:
			ctx := context.Background()
			start := time.Now()
			if err := e.ledger.Flush(ctx); err != nil {
				e.logger.Error("tick flush failed", "error", err)
				e.plugins.EmitStoreError(ctx, err)
			} else {
				e.plugins.EmitCacheFlushed(ctx, time.Since(start))
			}
			e.plugins.EmitTick(ctx, now)
		}
	}
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// AddUser creates a user account and pays the signup reward. The reward is
// picked from the new-user tier table by signup order; a slice stays
// spendable and the rest locks until the user validates. When the user was
// invited, the inviter is paid the invitation-tier reward the same way.
func (e *Engine) AddUser(ctx context.Context, email, name, invitingUserID string) (*ledger.Object, error) {
	user, err := e.ledger.CreateObject(ctx, TypeUser, map[string]any{
		"email":                       email,
		"name":                        name,
		"invitingUserID":              invitingUserID,
		"level":                       float64(0),
		"lockedAmountUntilValidation": float64(0),
		"lockedAmountForInvitingUser": float64(0),
	})
	if err != nil {
		return nil, err
	}
	userID := user.ID.String()
	order := int64(user.Ordinal)

	reward := e.rewardFor(e.newUserRewards, order)
	if !reward.IsPositive() {
		reward = e.defaultReward
	}
	if err := e.rewardAndLock(ctx, userID, reward,
		fmt.Sprintf("New user reward of %s points", reward)); err != nil {
		return nil, err
	}

	var invitationReward types.Points
	if invitingUserID != "" {
		invitationReward = e.rewardFor(e.invitationRewards, order)
		if invitationReward.IsPositive() {
			if err := e.rewardAndLock(ctx, invitingUserID, invitationReward,
				fmt.Sprintf("Invitation reward of %s points", invitationReward)); err != nil {
				return nil, err
			}
		}
	}

	if err := e.ledger.UpdateObject(ctx, userID, map[string]any{
		"lockedAmountUntilValidation": reward.Sub(e.unlockedPoints).Clamp().Float(),
		"lockedAmountForInvitingUser": invitationReward.Sub(e.unlockedPoints).Clamp().Float(),
	}); err != nil {
		return nil, err
	}

	e.plugins.EmitAccountCreated(ctx, TypeUser, userID)
	e.plugins.EmitReward(ctx, userID, reward, "new user")

	return user, nil
}

// rewardFor looks up a tier table by signup order.
func (e *Engine) rewardFor(t tier.Table, order int64) types.Points {
	if value, ok := t.Lookup(order); ok {
		return value
	}
	return e.defaultReward
}

// rewardAndLock pays a reward and locks everything above the spendable
// share.
func (e *Engine) rewardAndLock(ctx context.Context, userID string, reward types.Points, reason string) error {
	lockAmount := reward.Sub(e.unlockedPoints).Clamp()
	available := reward.Sub(lockAmount)

	if err := e.ledger.RewardUser(ctx, userID, available.Add(lockAmount), reason); err != nil {
		return err
	}
	if lockAmount.IsPositive() {
		if err := e.ledger.LockPoints(ctx, userID, lockAmount, "Locking until user validation"); err != nil {
			return err
		}
		e.plugins.EmitPointsLocked(ctx, userID, lockAmount, "Locking until user validation")
	}
	return nil
}

// CreateAgent creates an agent account owned by a user.
func (e *Engine) CreateAgent(ctx context.Context, name, ownerID string) (*ledger.Object, error) {
	agent, err := e.ledger.CreateObject(ctx, TypeAgent, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	if err := e.ledger.AddController(ctx, agent.ID.String(), ownerID, ledger.RoleOwner); err != nil {
		return nil, err
	}

	e.logger.Debug("agent created", "agent", agent.ID, "owner", ownerID)
	e.plugins.EmitAccountCreated(ctx, TypeAgent, agent.ID.String())
	return agent, nil
}

// TransferAgentOwnership moves an agent's owner role to another user.
func (e *Engine) TransferAgentOwnership(ctx context.Context, agentID, newOwnerID string) error {
	owner, err := e.ledger.Owner(ctx, agentID)
	if err != nil {
		return err
	}
	if owner != "" {
		if err := e.ledger.DeleteController(ctx, agentID, owner); err != nil {
			return err
		}
	}
	if err := e.ledger.AddController(ctx, agentID, newOwnerID, ledger.RoleOwner); err != nil {
		return err
	}

	e.logger.Debug("agent ownership transferred", "agent", agentID, "owner", newOwnerID)
	return nil
}

// User fetches a user object's raw properties.
func (e *Engine) User(ctx context.Context, userID string) (map[string]any, error) {
	return e.ledger.GetObject(ctx, userID)
}

// ──────────────────────────────────────────────────
// Supply
// ──────────────────────────────────────────────────

// Mint credits the system account with the initial point supply. One-time.
func (e *Engine) Mint(ctx context.Context, amount types.Points) error {
	if err := e.ledger.MintPoints(ctx, amount); err != nil {
		return err
	}
	e.plugins.EmitMint(ctx, amount)
	return nil
}

// ClaimFounder pays the one-time founders reward.
func (e *Engine) ClaimFounder(ctx context.Context, userID string, amount types.Points) error {
	if err := e.ledger.RewardFounder(ctx, userID, amount); err != nil {
		return err
	}
	e.plugins.EmitFounderRewarded(ctx, userID, amount)
	return nil
}

// ──────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────

// Transfer moves available points between two accounts. A zero amount is a
// no-op.
func (e *Engine) Transfer(ctx context.Context, amount types.Points, fromID, toID string) error {
	if amount.IsZero() {
		// nothing to transfer
		return nil
	}
	if err := e.ledger.TransferPoints(ctx, amount, fromID, toID, ""); err != nil {
		return err
	}
	e.plugins.EmitTransfer(ctx, fromID, toID, amount)
	return nil
}

// Balance returns the available balance of an account. Lookup failures
// read as zero so display paths never fail on half-created accounts.
func (e *Engine) Balance(ctx context.Context, objectID string) types.Points {
	balance, err := e.ledger.Balance(ctx, objectID)
	if err != nil {
		e.logger.Error("balance lookup failed", "object", objectID, "error", err)
		return 0
	}
	return balance
}

// UnlockPoints releases locked points back to the available balance, for
// example after a user validates their account.
func (e *Engine) UnlockPoints(ctx context.Context, objectID string, amount types.Points, reason string) error {
	if err := e.ledger.UnlockPoints(ctx, objectID, amount, reason); err != nil {
		return err
	}
	e.plugins.EmitPointsUnlocked(ctx, objectID, amount, reason)
	return nil
}

// LockedBalance returns the locked balance of an account.
func (e *Engine) LockedBalance(ctx context.Context, objectID string) (types.Points, error) {
	return e.ledger.LockedBalance(ctx, objectID)
}

// GetTotalBalance returns both balances of an account.
func (e *Engine) GetTotalBalance(ctx context.Context, objectID string) (TotalBalance, error) {
	locked, err := e.ledger.LockedBalance(ctx, objectID)
	if err != nil {
		return TotalBalance{}, err
	}
	return TotalBalance{
		Balance:       e.Balance(ctx, objectID),
		LockedBalance: locked,
	}, nil
}

// GetAccountStatus returns an account's balances and estimated value at
// the current token price.
func (e *Engine) GetAccountStatus(ctx context.Context, objectID string) (AccountStatus, error) {
	total, err := e.GetTotalBalance(ctx, objectID)
	if err != nil {
		return AccountStatus{}, err
	}
	value := total.Balance.Add(total.LockedBalance).Float() * e.initialTokenPrice
	return AccountStatus{
		AvailablePoints: total.Balance,
		LockedPoints:    total.LockedBalance,
		EstimatedValue:  value,
	}, nil
}

// ExchangeRate returns the base token price.
func (e *Engine) ExchangeRate() float64 {
	return e.initialTokenPrice
}

// SystemAvailablePoints returns the unallocated supply on the system
// account.
func (e *Engine) SystemAvailablePoints(ctx context.Context) types.Points {
	return e.Balance(ctx, SystemID)
}

// ConfiscateLockedPoints seizes locked points back into the system supply.
func (e *Engine) ConfiscateLockedPoints(ctx context.Context, objectID string, amount types.Points, reason string) error {
	if err := e.ledger.ConfiscateLockedPoints(ctx, objectID, amount, reason); err != nil {
		return err
	}
	e.plugins.EmitConfiscated(ctx, objectID, amount, reason)
	return nil
}

// ──────────────────────────────────────────────────
// Exchange
// ──────────────────────────────────────────────────

// Sell places a sell order on the step exchange.
func (e *Engine) Sell(ctx context.Context, account string, amount types.Points, step int64) exchange.Trade {
	trade := e.book.Sell(account, amount, step)
	if trade.Matched.IsPositive() {
		e.plugins.EmitOrderMatched(ctx, account, trade.Matched, trade.Price)
	}
	return trade
}

// Buy places a buy order on the step exchange. The unmatched remainder
// queues only when autoQueue is set.
func (e *Engine) Buy(ctx context.Context, account string, amount types.Points, step int64, autoQueue bool) exchange.Trade {
	trade := e.book.Buy(account, amount, step, autoQueue)
	if trade.Matched.IsPositive() {
		e.plugins.EmitOrderMatched(ctx, account, trade.Matched, trade.Price)
	}
	return trade
}

// ──────────────────────────────────────────────────
// Audit
// ──────────────────────────────────────────────────

// LoginEvent records a login attempt. state is LoginSuccess or LoginFail.
func (e *Engine) LoginEvent(ctx context.Context, userID, state, reason string) {
	e.ledger.LoginEvent(userID, state, reason)
	e.plugins.EmitLogin(ctx, userID, state, reason)
}

// UserLogs returns an account's audit trail.
func (e *Engine) UserLogs(ctx context.Context, userID string) (string, error) {
	return e.ledger.UserLogs(ctx, userID)
}
