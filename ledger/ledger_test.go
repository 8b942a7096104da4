package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/creditkit/creditkit/audit"
	"github.com/creditkit/creditkit/cache"
	"github.com/creditkit/creditkit/id"
	"github.com/creditkit/creditkit/store/memory"
	"github.com/creditkit/creditkit/types"
)

func testSchema() *Schema {
	s := NewSchema()
	s.Register("user", id.PrefixUser,
		"email", "name", "invitingUserID", "level",
		"lockedAmountUntilValidation", "lockedAmountForInvitingUser")
	s.Register("agent", id.PrefixAgent, "name")
	return s
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	c := cache.New(memory.New(), cache.WithFlushInterval(time.Hour))
	a, err := audit.New(t.TempDir(), audit.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	l := New(c, a, testSchema())
	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Shutdown(context.Background()) })
	return l
}

// mints a default supply so transfer tests have funds to move.
func newFundedLedger(t *testing.T) *Ledger {
	t.Helper()
	l := newTestLedger(t)
	if err := l.MintPoints(context.Background(), types.FromFloat(1_000_000)); err != nil {
		t.Fatalf("MintPoints() error = %v", err)
	}
	return l
}

func createUser(t *testing.T, l *Ledger, name string) *Object {
	t.Helper()
	obj, err := l.CreateObject(context.Background(), "user", map[string]any{
		"email": name + "@example.com",
		"name":  name,
	})
	if err != nil {
		t.Fatalf("CreateObject(user) error = %v", err)
	}
	return obj
}

func balance(t *testing.T, l *Ledger, objectID string) types.Points {
	t.Helper()
	b, err := l.Balance(context.Background(), objectID)
	if err != nil {
		t.Fatalf("Balance(%s) error = %v", objectID, err)
	}
	return b
}

func lockedBalance(t *testing.T, l *Ledger, objectID string) types.Points {
	t.Helper()
	b, err := l.LockedBalance(context.Background(), objectID)
	if err != nil {
		t.Fatalf("LockedBalance(%s) error = %v", objectID, err)
	}
	return b
}

func TestCreateObject(t *testing.T) {
	l := newTestLedger(t)

	obj := createUser(t, l, "alice")
	if obj.ID.Prefix() != id.PrefixUser {
		t.Errorf("ID prefix = %c, want U", obj.ID.Prefix())
	}
	if obj.AccountNumber < 1024 {
		t.Errorf("AccountNumber = %d, want >= 1024", obj.AccountNumber)
	}
	if !balance(t, l, obj.ID.String()).IsZero() {
		t.Error("new object has non-zero available balance")
	}

	second := createUser(t, l, "bob")
	if second.AccountNumber != obj.AccountNumber+1 {
		t.Errorf("account numbers not sequential: %d then %d", obj.AccountNumber, second.AccountNumber)
	}
	if obj.Ordinal != 1 || second.Ordinal != 2 {
		t.Errorf("user ordinals = %d, %d, want 1, 2", obj.Ordinal, second.Ordinal)
	}

	// ordinals count per type: the first agent is 1 even after two users
	agent, err := l.CreateObject(context.Background(), "agent", map[string]any{"name": "helper"})
	if err != nil {
		t.Fatal(err)
	}
	if agent.Ordinal != 1 {
		t.Errorf("agent ordinal = %d, want 1", agent.Ordinal)
	}
}

func TestCreateObjectUnknownType(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.CreateObject(context.Background(), "spaceship", nil)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("CreateObject(spaceship) error = %v, want ErrUnknownType", err)
	}
}

func TestCreateObjectInvalidProperty(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.CreateObject(context.Background(), "user", map[string]any{"shoeSize": 42})
	if !errors.Is(err, ErrInvalidProperty) {
		t.Errorf("CreateObject error = %v, want ErrInvalidProperty", err)
	}
}

func TestSetPropertyValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	user := createUser(t, l, "alice")

	if err := l.SetProperty(ctx, user.ID.String(), "level", float64(3)); err != nil {
		t.Fatalf("SetProperty(level) error = %v", err)
	}
	if err := l.SetProperty(ctx, user.ID.String(), "shoeSize", 42); !errors.Is(err, ErrInvalidProperty) {
		t.Errorf("SetProperty(shoeSize) error = %v, want ErrInvalidProperty", err)
	}

	v, ok, err := l.GetProperty(ctx, user.ID.String(), "level")
	if err != nil || !ok {
		t.Fatalf("GetProperty(level) = %v, %v, %v", v, ok, err)
	}
	if v != float64(3) {
		t.Errorf("level = %v, want 3", v)
	}
}

func TestMintOnce(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.MintPoints(ctx, types.FromFloat(1000)); err != nil {
		t.Fatalf("MintPoints() error = %v", err)
	}
	if got := balance(t, l, SystemID); !got.Equal(types.FromFloat(1000)) {
		t.Errorf("system balance = %s, want 1000", got)
	}

	if err := l.MintPoints(ctx, types.FromFloat(1)); !errors.Is(err, ErrAlreadyMinted) {
		t.Errorf("second MintPoints() error = %v, want ErrAlreadyMinted", err)
	}
	if got := balance(t, l, SystemID); !got.Equal(types.FromFloat(1000)) {
		t.Errorf("system balance after rejected mint = %s, want 1000", got)
	}
}

func TestRewardFounderOnce(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	user := createUser(t, l, "founder")

	if err := l.RewardFounder(ctx, user.ID.String(), types.FromFloat(500)); err != nil {
		t.Fatalf("RewardFounder() error = %v", err)
	}
	if got := balance(t, l, user.ID.String()); !got.Equal(types.FromFloat(500)) {
		t.Errorf("founder balance = %s, want 500", got)
	}

	err := l.RewardFounder(ctx, user.ID.String(), types.FromFloat(1))
	if !errors.Is(err, ErrAlreadyRewarded) {
		t.Errorf("second RewardFounder() error = %v, want ErrAlreadyRewarded", err)
	}
}

func TestLockUnlockRestoresBalance(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	user := createUser(t, l, "alice")
	uid := user.ID.String()

	if err := l.RewardUser(ctx, uid, types.FromFloat(100), "seed"); err != nil {
		t.Fatal(err)
	}

	if err := l.LockPoints(ctx, uid, types.FromFloat(40), "validation"); err != nil {
		t.Fatalf("LockPoints() error = %v", err)
	}
	if got := balance(t, l, uid); !got.Equal(types.FromFloat(60)) {
		t.Errorf("available after lock = %s, want 60", got)
	}
	if got := lockedBalance(t, l, uid); !got.Equal(types.FromFloat(40)) {
		t.Errorf("locked after lock = %s, want 40", got)
	}

	if err := l.UnlockPoints(ctx, uid, types.FromFloat(40), "validated"); err != nil {
		t.Fatalf("UnlockPoints() error = %v", err)
	}
	if got := balance(t, l, uid); !got.Equal(types.FromFloat(100)) {
		t.Errorf("available after unlock = %s, want 100", got)
	}
	if got := lockedBalance(t, l, uid); !got.IsZero() {
		t.Errorf("locked after unlock = %s, want 0", got)
	}
}

func TestLockInsufficient(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	user := createUser(t, l, "alice")
	uid := user.ID.String()

	err := l.LockPoints(ctx, uid, types.FromFloat(1), "nope")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("LockPoints() error = %v, want ErrInsufficientFunds", err)
	}

	err = l.UnlockPoints(ctx, uid, types.FromFloat(1), "nope")
	if !errors.Is(err, ErrInsufficientLockedFunds) {
		t.Errorf("UnlockPoints() error = %v, want ErrInsufficientLockedFunds", err)
	}
}

func TestTransferConservesTotal(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	alice := createUser(t, l, "alice").ID.String()
	bob := createUser(t, l, "bob").ID.String()

	if err := l.RewardUser(ctx, alice, types.FromFloat(100), "seed"); err != nil {
		t.Fatal(err)
	}
	before := types.Sum(balance(t, l, SystemID), balance(t, l, alice), balance(t, l, bob))

	if err := l.TransferPoints(ctx, types.FromFloat(30.5), alice, bob, "payment"); err != nil {
		t.Fatalf("TransferPoints() error = %v", err)
	}

	if got := balance(t, l, alice); !got.Equal(types.FromFloat(69.5)) {
		t.Errorf("alice = %s, want 69.5", got)
	}
	if got := balance(t, l, bob); !got.Equal(types.FromFloat(30.5)) {
		t.Errorf("bob = %s, want 30.5", got)
	}

	after := types.Sum(balance(t, l, SystemID), balance(t, l, alice), balance(t, l, bob))
	if !before.Equal(after) {
		t.Errorf("total changed: %s -> %s", before, after)
	}
}

func TestTransferInsufficient(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	alice := createUser(t, l, "alice").ID.String()
	bob := createUser(t, l, "bob").ID.String()

	err := l.TransferPoints(ctx, types.FromFloat(10), alice, bob, "payment")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("TransferPoints() error = %v, want ErrInsufficientFunds", err)
	}
	if got := balance(t, l, bob); !got.IsZero() {
		t.Errorf("bob received %s from failed transfer", got)
	}
}

func TestNegativeAmountRejected(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	alice := createUser(t, l, "alice").ID.String()

	err := l.TransferPoints(ctx, types.FromFloat(-5), SystemID, alice, "oops")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative transfer error = %v, want ErrInvalidAmount", err)
	}
	if err := l.LockPoints(ctx, alice, types.FromFloat(-5), "oops"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative lock error = %v, want ErrInvalidAmount", err)
	}
}

func TestConfiscateLockedPoints(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	alice := createUser(t, l, "alice").ID.String()

	if err := l.RewardUser(ctx, alice, types.FromFloat(100), "seed"); err != nil {
		t.Fatal(err)
	}
	if err := l.LockPoints(ctx, alice, types.FromFloat(40), "validation"); err != nil {
		t.Fatal(err)
	}
	systemBefore := balance(t, l, SystemID)

	if err := l.ConfiscateLockedPoints(ctx, alice, types.FromFloat(40), "fraud"); err != nil {
		t.Fatalf("ConfiscateLockedPoints() error = %v", err)
	}

	if got := lockedBalance(t, l, alice); !got.IsZero() {
		t.Errorf("alice locked = %s, want 0", got)
	}
	if got := lockedBalance(t, l, SystemID); !got.IsZero() {
		t.Errorf("system locked = %s, want 0", got)
	}
	want := systemBefore.Add(types.FromFloat(40))
	if got := balance(t, l, SystemID); !got.Equal(want) {
		t.Errorf("system available = %s, want %s", got, want)
	}
}

func TestControllers(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	agent, err := l.CreateObject(ctx, "agent", map[string]any{"name": "bot"})
	if err != nil {
		t.Fatal(err)
	}
	aid := agent.ID.String()

	if err := l.AddController(ctx, aid, "U1", RoleOwner); err != nil {
		t.Fatalf("AddController(owner) error = %v", err)
	}
	if err := l.AddController(ctx, aid, "U2", RoleOwner); !errors.Is(err, ErrDuplicateOwner) {
		t.Errorf("second owner error = %v, want ErrDuplicateOwner", err)
	}
	if err := l.AddController(ctx, aid, "U2", "operator"); err != nil {
		t.Fatalf("AddController(operator) error = %v", err)
	}

	owner, err := l.Owner(ctx, aid)
	if err != nil {
		t.Fatal(err)
	}
	if owner != "U1" {
		t.Errorf("Owner() = %q, want U1", owner)
	}

	ok, err := l.HasRole(ctx, aid, "U2", "operator")
	if err != nil || !ok {
		t.Errorf("HasRole(U2, operator) = %v, %v, want true", ok, err)
	}
	if ok, _ := l.HasRole(ctx, aid, "U2", RoleOwner); ok {
		t.Error("HasRole(U2, owner) = true, want false")
	}

	// ownership transfer: delete then add
	if err := l.DeleteController(ctx, aid, "U1"); err != nil {
		t.Fatal(err)
	}
	if err := l.AddController(ctx, aid, "U2", RoleOwner); err != nil {
		t.Fatalf("AddController after delete error = %v", err)
	}
	owner, _ = l.Owner(ctx, aid)
	if owner != "U2" {
		t.Errorf("Owner() after transfer = %q, want U2", owner)
	}
}

func TestAuditTrail(t *testing.T) {
	l := newFundedLedger(t)
	ctx := context.Background()
	alice := createUser(t, l, "alice").ID.String()

	if err := l.RewardUser(ctx, alice, types.FromFloat(10), "welcome"); err != nil {
		t.Fatal(err)
	}
	l.LoginEvent(alice, "SUCCESS", "password")

	logs, err := l.UserLogs(ctx, alice)
	if err != nil {
		t.Fatalf("UserLogs() error = %v", err)
	}
	for _, event := range []string{audit.EventReward, audit.EventTransferTo, audit.EventLogin} {
		if !strings.Contains(logs, event) {
			t.Errorf("user log missing %s event:\n%s", event, logs)
		}
	}
}

func TestBalancesSurviveFlushRoundTrip(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()

	c := cache.New(mem, cache.WithFlushInterval(time.Hour))
	a, err := audit.New(t.TempDir(), audit.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	l := New(c, a, testSchema())
	if err := l.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.MintPoints(ctx, types.FromFloat(1000)); err != nil {
		t.Fatal(err)
	}
	user := createUser(t, l, "alice")
	if err := l.RewardUser(ctx, user.ID.String(), types.FromFloat(12.345678), "seed"); err != nil {
		t.Fatal(err)
	}
	if err := l.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	// reopen over the same backing store
	c2 := cache.New(mem, cache.WithFlushInterval(time.Hour))
	a2, err := audit.New(t.TempDir(), audit.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	l2 := New(c2, a2, testSchema())
	if err := l2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer l2.Shutdown(ctx)

	if got := balance(t, l2, user.ID.String()); !got.Equal(types.FromFloat(12.345678)) {
		t.Errorf("reloaded balance = %s, want 12.345678", got)
	}
	if err := l2.MintPoints(ctx, types.FromFloat(1)); !errors.Is(err, ErrAlreadyMinted) {
		t.Errorf("mint after reload error = %v, want ErrAlreadyMinted", err)
	}
}

func TestUntypedObjectTakesAnyProperty(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.SetProperty(ctx, SystemID, "note", "anything"); err != nil {
		t.Errorf("SetProperty on system error = %v", err)
	}
}
