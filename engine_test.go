package creditkit

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creditkit/creditkit/audit"
	"github.com/creditkit/creditkit/cache"
	"github.com/creditkit/creditkit/ledger"
	"github.com/creditkit/creditkit/store/memory"
	"github.com/creditkit/creditkit/types"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	c := cache.New(memory.New(), cache.WithFlushInterval(time.Hour))
	trail, err := audit.New(t.TempDir(), audit.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.New(c, trail, Schema())

	newUsers, err := ParseTiers([]string{"10:100", "100:50", "1000:10"})
	if err != nil {
		t.Fatal(err)
	}
	invites, err := ParseTiers([]string{"100:20", "1000:5"})
	if err != nil {
		t.Fatal(err)
	}

	base := []Option{
		WithNewUserRewards(newUsers),
		WithInvitationRewards(invites),
		WithUnlockedPoints(FromFloat(1)),
		WithTickInterval(time.Hour),
	}
	e, err := New(led, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	if err := e.Mint(context.Background(), FromFloat(1_000_000)); err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	return e
}

func TestMintOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if got := e.SystemAvailablePoints(ctx); !got.Equal(FromFloat(1_000_000)) {
		t.Errorf("system points = %s, want 1000000", got)
	}
	if err := e.Mint(ctx, FromFloat(1)); !IsConflict(err) {
		t.Errorf("second Mint() error = %v, want conflict", err)
	}
}

func TestAddUserPaysTieredReward(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// first user lands in the first tier: 100 points, 1 spendable
	user, err := e.AddUser(ctx, "alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	uid := user.ID.String()

	// account numbers start at the reserved floor; the reward rank is the
	// signup ordinal, not the raw counter
	if user.AccountNumber < 1024 {
		t.Errorf("AccountNumber = %d, want >= 1024", user.AccountNumber)
	}
	if user.Ordinal != 1 {
		t.Errorf("Ordinal = %d, want 1", user.Ordinal)
	}

	if got := e.Balance(ctx, uid); !got.Equal(FromFloat(1)) {
		t.Errorf("available = %s, want 1", got)
	}
	locked, err := e.LockedBalance(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if !locked.Equal(FromFloat(99)) {
		t.Errorf("locked = %s, want 99", locked)
	}

	props, err := e.User(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if props["lockedAmountUntilValidation"] != 99.0 {
		t.Errorf("lockedAmountUntilValidation = %v, want 99", props["lockedAmountUntilValidation"])
	}
	if props["lockedAmountForInvitingUser"] != 0.0 {
		t.Errorf("lockedAmountForInvitingUser = %v, want 0", props["lockedAmountForInvitingUser"])
	}
}

func TestAddUserRewardsInviter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	inviter, err := e.AddUser(ctx, "alice@example.com", "Alice", "")
	if err != nil {
		t.Fatal(err)
	}
	inviterID := inviter.ID.String()
	beforeAvailable := e.Balance(ctx, inviterID)
	beforeLocked, _ := e.LockedBalance(ctx, inviterID)

	invited, err := e.AddUser(ctx, "bob@example.com", "Bob", inviterID)
	if err != nil {
		t.Fatalf("AddUser(invited) error = %v", err)
	}

	// invitation tier for early signups is 20 points: 1 spendable, 19 locked
	if got := e.Balance(ctx, inviterID); !got.Equal(beforeAvailable.Add(FromFloat(1))) {
		t.Errorf("inviter available = %s, want +1 over %s", got, beforeAvailable)
	}
	afterLocked, _ := e.LockedBalance(ctx, inviterID)
	if !afterLocked.Equal(beforeLocked.Add(FromFloat(19))) {
		t.Errorf("inviter locked = %s, want +19 over %s", afterLocked, beforeLocked)
	}

	props, err := e.User(ctx, invited.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if props["lockedAmountForInvitingUser"] != 19.0 {
		t.Errorf("lockedAmountForInvitingUser = %v, want 19", props["lockedAmountForInvitingUser"])
	}
}

func TestTransfer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	alice, _ := e.AddUser(ctx, "a@example.com", "Alice", "")
	bob, _ := e.AddUser(ctx, "b@example.com", "Bob", "")
	aliceID, bobID := alice.ID.String(), bob.ID.String()

	// zero transfers are a no-op even with bogus accounts
	if err := e.Transfer(ctx, 0, "Unope", "Ualso"); err != nil {
		t.Errorf("zero Transfer() error = %v, want nil", err)
	}

	if err := e.Transfer(ctx, FromFloat(0.5), aliceID, bobID); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if got := e.Balance(ctx, bobID); !got.Equal(FromFloat(1.5)) {
		t.Errorf("bob = %s, want 1.5", got)
	}

	err := e.Transfer(ctx, FromFloat(1_000), aliceID, bobID)
	if !IsInsufficient(err) {
		t.Errorf("overdraw error = %v, want insufficient", err)
	}
}

func TestBalanceOfMissingAccountIsZero(t *testing.T) {
	e := newTestEngine(t)

	if got := e.Balance(context.Background(), "Unobody"); !got.IsZero() {
		t.Errorf("Balance(missing) = %s, want 0", got)
	}
}

func TestAccountStatus(t *testing.T) {
	e := newTestEngine(t, WithInitialTokenPrice(2))
	ctx := context.Background()

	user, _ := e.AddUser(ctx, "a@example.com", "Alice", "")
	status, err := e.GetAccountStatus(ctx, user.ID.String())
	if err != nil {
		t.Fatalf("GetAccountStatus() error = %v", err)
	}

	if !status.AvailablePoints.Equal(FromFloat(1)) {
		t.Errorf("available = %s, want 1", status.AvailablePoints)
	}
	if !status.LockedPoints.Equal(FromFloat(99)) {
		t.Errorf("locked = %s, want 99", status.LockedPoints)
	}
	if status.EstimatedValue != 200 {
		t.Errorf("estimated value = %v, want 200", status.EstimatedValue)
	}
	if e.ExchangeRate() != 2 {
		t.Errorf("ExchangeRate() = %v, want 2", e.ExchangeRate())
	}
}

func TestClaimFounderOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	user, _ := e.AddUser(ctx, "f@example.com", "Founder", "")
	if err := e.ClaimFounder(ctx, user.ID.String(), FromFloat(1000)); err != nil {
		t.Fatalf("ClaimFounder() error = %v", err)
	}
	if err := e.ClaimFounder(ctx, user.ID.String(), FromFloat(1)); !IsConflict(err) {
		t.Errorf("second ClaimFounder() error = %v, want conflict", err)
	}
}

func TestConfiscateLockedPoints(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	user, _ := e.AddUser(ctx, "a@example.com", "Alice", "")
	uid := user.ID.String()
	systemBefore := e.SystemAvailablePoints(ctx)

	if err := e.ConfiscateLockedPoints(ctx, uid, FromFloat(99), "failed validation"); err != nil {
		t.Fatalf("ConfiscateLockedPoints() error = %v", err)
	}

	locked, _ := e.LockedBalance(ctx, uid)
	if !locked.IsZero() {
		t.Errorf("locked after confiscation = %s, want 0", locked)
	}
	want := systemBefore.Add(FromFloat(99))
	if got := e.SystemAvailablePoints(ctx); !got.Equal(want) {
		t.Errorf("system points = %s, want %s", got, want)
	}
}

func TestAgentOwnership(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	alice, _ := e.AddUser(ctx, "a@example.com", "Alice", "")
	bob, _ := e.AddUser(ctx, "b@example.com", "Bob", "")

	agent, err := e.CreateAgent(ctx, "helper", alice.ID.String())
	if err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	agentID := agent.ID.String()

	owner, err := e.Ledger().Owner(ctx, agentID)
	if err != nil {
		t.Fatal(err)
	}
	if owner != alice.ID.String() {
		t.Errorf("owner = %q, want %q", owner, alice.ID)
	}

	if err := e.TransferAgentOwnership(ctx, agentID, bob.ID.String()); err != nil {
		t.Fatalf("TransferAgentOwnership() error = %v", err)
	}
	owner, _ = e.Ledger().Owner(ctx, agentID)
	if owner != bob.ID.String() {
		t.Errorf("owner after transfer = %q, want %q", owner, bob.ID)
	}
}

func TestExchangeThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	trade := e.Sell(ctx, "alice", FromFloat(100), 1)
	if !trade.Pending.Equal(FromFloat(100)) {
		t.Errorf("sell pending = %s, want 100", trade.Pending)
	}

	trade = e.Buy(ctx, "bob", FromFloat(60), 1, false)
	if !trade.Matched.Equal(FromFloat(60)) {
		t.Errorf("buy matched = %s, want 60", trade.Matched)
	}
	if len(trade.Fills) != 1 || trade.Fills[0].Account != "alice" {
		t.Errorf("fills = %+v, want alice", trade.Fills)
	}
}

func TestLoginEventAndUserLogs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	user, _ := e.AddUser(ctx, "a@example.com", "Alice", "")
	uid := user.ID.String()
	e.LoginEvent(ctx, uid, LoginSuccess, "password")

	logs, err := e.UserLogs(ctx, uid)
	if err != nil {
		t.Fatalf("UserLogs() error = %v", err)
	}
	if !strings.Contains(logs, "LOGIN") || !strings.Contains(logs, LoginSuccess) {
		t.Errorf("user logs missing login entry:\n%s", logs)
	}
	if !strings.Contains(logs, "REWARD") {
		t.Errorf("user logs missing reward entry:\n%s", logs)
	}
}

type countingPlugin struct {
	rewards  atomic.Int64
	logins   atomic.Int64
	accounts atomic.Int64
	unlocks  atomic.Int64
}

func (p *countingPlugin) Name() string { return "counting" }

func (p *countingPlugin) OnReward(ctx context.Context, userID string, amount types.Points, reason string) error {
	p.rewards.Add(1)
	return nil
}

func (p *countingPlugin) OnLogin(ctx context.Context, userID, state, reason string) error {
	p.logins.Add(1)
	return nil
}

func (p *countingPlugin) OnAccountCreated(ctx context.Context, objectType, objectID string) error {
	p.accounts.Add(1)
	return nil
}

func (p *countingPlugin) OnPointsUnlocked(ctx context.Context, objectID string, amount types.Points, reason string) error {
	p.unlocks.Add(1)
	return nil
}

func TestPluginHooks(t *testing.T) {
	p := &countingPlugin{}
	e := newTestEngine(t, WithPlugin(p))
	ctx := context.Background()

	user, err := e.AddUser(ctx, "a@example.com", "Alice", "")
	if err != nil {
		t.Fatal(err)
	}
	e.LoginEvent(ctx, user.ID.String(), LoginFail, "bad password")
	if err := e.UnlockPoints(ctx, user.ID.String(), FromFloat(1), "validated"); err != nil {
		t.Fatalf("UnlockPoints() error = %v", err)
	}

	if got := p.accounts.Load(); got != 1 {
		t.Errorf("account events = %d, want 1", got)
	}
	if got := p.rewards.Load(); got != 1 {
		t.Errorf("reward events = %d, want 1", got)
	}
	if got := p.logins.Load(); got != 1 {
		t.Errorf("login events = %d, want 1", got)
	}
	if got := p.unlocks.Load(); got != 1 {
		t.Errorf("unlock events = %d, want 1", got)
	}
}

type brokenPlugin struct{}

func (p *brokenPlugin) Name() string { return "broken" }

func (p *brokenPlugin) OnReward(ctx context.Context, userID string, amount types.Points, reason string) error {
	return errors.New("hook failed")
}

func TestPluginFailureNotification(t *testing.T) {
	e := newTestEngine(t, WithPlugin(&brokenPlugin{}))
	ctx := context.Background()

	var failures atomic.Int64
	e.Plugins().OnDispatchFailure(func(pluginName string, err error) {
		if pluginName == "broken" {
			failures.Add(1)
		}
	})

	if _, err := e.AddUser(ctx, "a@example.com", "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if got := failures.Load(); got != 1 {
		t.Errorf("dispatch failures = %d, want 1", got)
	}
}

func TestDefaultRewardAfterTiersExhausted(t *testing.T) {
	c := cache.New(memory.New(), cache.WithFlushInterval(time.Hour))
	trail, err := audit.New(t.TempDir(), audit.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.New(c, trail, Schema())

	// only the first three signups land in this table
	small, err := ParseTiers([]string{"3:100"})
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(led,
		WithNewUserRewards(small),
		WithInvitationRewards(small),
		WithDefaultReward(FromFloat(2)),
		WithUnlockedPoints(FromFloat(1)),
		WithTickInterval(time.Hour),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()
	if err := e.Mint(ctx, FromFloat(1000)); err != nil {
		t.Fatal(err)
	}

	var user *ledger.Object
	for i := 0; i < 4; i++ {
		user, err = e.AddUser(ctx, "a@example.com", "Alice", "")
		if err != nil {
			t.Fatal(err)
		}
	}
	if user.Ordinal != 4 {
		t.Fatalf("Ordinal = %d, want 4", user.Ordinal)
	}
	if got := e.Balance(ctx, user.ID.String()); !got.Equal(FromFloat(1)) {
		t.Errorf("available = %s, want 1", got)
	}
	locked, _ := e.LockedBalance(ctx, user.ID.String())
	if !locked.Equal(FromFloat(1)) {
		t.Errorf("locked = %s, want 1", locked)
	}
}

func TestNewRequiresRewardTables(t *testing.T) {
	c := cache.New(memory.New(), cache.WithFlushInterval(time.Hour))
	trail, err := audit.New(t.TempDir(), audit.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = trail.Close() })
	led := ledger.New(c, trail, Schema())

	if _, err := New(led); !IsValidation(err) {
		t.Errorf("New() without reward tables error = %v, want validation error", err)
	}

	table, err := ParseTiers([]string{"10:100"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(led, WithNewUserRewards(table)); !IsValidation(err) {
		t.Errorf("New() without invitation table error = %v, want validation error", err)
	}
	if _, err := New(led, WithNewUserRewards(table), WithInvitationRewards(table)); err != nil {
		t.Errorf("New() with both tables error = %v", err)
	}
}
