// Package ledger implements a schema-driven balance ledger over a
// write-back object cache. Every object carries an available and a locked
// balance; the reserved system object holds the float and the one-time
// minting and founder flags. All balance mutations are serialised and
// audit-logged.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/creditkit/creditkit/audit"
	"github.com/creditkit/creditkit/cache"
	"github.com/creditkit/creditkit/id"
	"github.com/creditkit/creditkit/store"
	"github.com/creditkit/creditkit/types"
)

// SystemID is the reserved account holding unallocated points.
const SystemID = cache.SystemID

var (
	ErrInsufficientFunds       = errors.New("insufficient available points")
	ErrInsufficientLockedFunds = errors.New("insufficient locked points")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAlreadyMinted           = errors.New("initial minting already done")
	ErrAlreadyRewarded         = errors.New("founders already rewarded")
	ErrUnknownType             = errors.New("unknown object type")
	ErrInvalidProperty         = errors.New("invalid property")
	ErrDuplicateOwner          = errors.New("only one owner is allowed")
)

// RoleOwner is the controller role with exclusive ownership.
const RoleOwner = "owner"

// Object is the result of creating or fetching a ledger object.
type Object struct {
	ID            id.ID
	AccountNumber uint64
	// Ordinal is the creation rank among objects of the same type: the
	// first user is 1, the second 2, and so on. Account numbers start at a
	// reserved floor, so reward tiers key off the ordinal instead.
	Ordinal    uint64
	Properties store.Object
}

// Ledger mutates balances on objects held in a write-back cache.
// All methods are safe for concurrent use; a single mutex serialises
// balance mutations so invariants hold across multi-object moves.
type Ledger struct {
	schema *Schema
	cache  *cache.Cache
	audit  *audit.Logger
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a Ledger over the given cache and audit trail.
func New(c *cache.Cache, a *audit.Logger, schema *Schema, opts ...Option) *Ledger {
	l := &Ledger{
		schema: schema,
		cache:  c,
		audit:  a,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init initializes the underlying cache and store.
func (l *Ledger) Init(ctx context.Context) error {
	return l.cache.Init(ctx)
}

// Shutdown flushes the audit trail and the object cache.
func (l *Ledger) Shutdown(ctx context.Context) error {
	auditErr := l.audit.Close()
	cacheErr := l.cache.Shutdown(ctx)
	if auditErr != nil {
		return auditErr
	}
	return cacheErr
}

// Flush forces a write-back of dirty objects.
func (l *Ledger) Flush(ctx context.Context) error {
	return l.cache.Flush(ctx)
}

// Audit exposes the audit trail for callers recording their own events.
func (l *Ledger) Audit() *audit.Logger {
	return l.audit
}

// CreateObject allocates an ID for a new object of the given type, checks
// the initial properties against the schema, and stores the object with
// zeroed balances.
func (l *Ledger) CreateObject(ctx context.Context, typ string, initial map[string]any) (*Object, error) {
	def, err := l.schema.lookup(typ)
	if err != nil {
		return nil, err
	}
	for field := range initial {
		if err := def.checkField(typ, field); err != nil {
			return nil, err
		}
	}

	number, err := l.cache.NextObjectID(ctx)
	if err != nil {
		return nil, err
	}
	ordinal, err := l.cache.NextTypeOrdinal(ctx, typ)
	if err != nil {
		return nil, err
	}
	objectID := id.Encode(number, def.prefix)

	obj := store.Object{
		"type":             typ,
		"accountNumber":    float64(number),
		"availableBalance": 0.0,
		"lockedBalance":    0.0,
	}
	for field, value := range initial {
		obj[field] = value
	}

	if err := l.cache.Create(ctx, objectID.String(), obj); err != nil {
		return nil, err
	}
	l.audit.Log(SystemID, audit.EventCreateObject, typ, objectID.String())

	return &Object{ID: objectID, AccountNumber: number, Ordinal: ordinal, Properties: obj}, nil
}

// GetObject fetches an object by ID.
func (l *Ledger) GetObject(ctx context.Context, objectID string) (store.Object, error) {
	return l.cache.Load(ctx, objectID)
}

// GetProperty returns a single property. Absent properties yield nil, false.
func (l *Ledger) GetProperty(ctx context.Context, objectID, field string) (any, bool, error) {
	return l.cache.GetProperty(ctx, objectID, field)
}

// SetProperty sets a property after checking it against the object's type.
func (l *Ledger) SetProperty(ctx context.Context, objectID, field string, value any) error {
	if err := l.checkObjectField(ctx, objectID, field); err != nil {
		return err
	}
	return l.cache.SetProperty(ctx, objectID, field, value)
}

// UpdateObject sets several properties after checking them against the
// object's type.
func (l *Ledger) UpdateObject(ctx context.Context, objectID string, values map[string]any) error {
	for field := range values {
		if err := l.checkObjectField(ctx, objectID, field); err != nil {
			return err
		}
	}
	return l.cache.UpdateObject(ctx, objectID, func(obj store.Object) {
		for field, value := range values {
			obj[field] = value
		}
	})
}

func (l *Ledger) checkObjectField(ctx context.Context, objectID, field string) error {
	typ, ok, err := l.cache.GetProperty(ctx, objectID, "type")
	if err != nil {
		return err
	}
	if !ok {
		// untyped objects (the system object) take any property
		return nil
	}
	name, _ := typ.(string)
	def, err := l.schema.lookup(name)
	if err != nil {
		return err
	}
	return def.checkField(name, field)
}

// Balance returns the available balance of an object. An absent balance
// property reads as zero; a missing object is an error.
func (l *Ledger) Balance(ctx context.Context, objectID string) (types.Points, error) {
	obj, err := l.cache.Load(ctx, objectID)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return pointsOf(obj, "availableBalance"), nil
}

// LockedBalance returns the locked balance of an object.
func (l *Ledger) LockedBalance(ctx context.Context, objectID string) (types.Points, error) {
	obj, err := l.cache.Load(ctx, objectID)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return pointsOf(obj, "lockedBalance"), nil
}

// MintPoints credits the system account with the initial point supply.
// Minting happens at most once per ledger.
func (l *Ledger) MintPoints(ctx context.Context, amount types.Points) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	done, _, err := l.cache.GetProperty(ctx, SystemID, "initialMintingDone")
	if err != nil {
		return err
	}
	if done == true {
		return ErrAlreadyMinted
	}

	sys, err := l.cache.Load(ctx, SystemID)
	if err != nil {
		return err
	}
	balance := pointsOf(sys, "availableBalance").Add(amount)
	if err := l.cache.UpdateObject(ctx, SystemID, func(obj store.Object) {
		obj["availableBalance"] = balance.Float()
		obj["initialMintingDone"] = true
	}); err != nil {
		return err
	}

	l.audit.Log(SystemID, audit.EventMint, amount.String(), "Initial minting")
	return nil
}

// RewardFounder pays the one-time founders reward from the system account.
func (l *Ledger) RewardFounder(ctx context.Context, userID string, amount types.Points) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	done, _, err := l.cache.GetProperty(ctx, SystemID, "foundersRewardDone")
	if err != nil {
		return err
	}
	if done == true {
		return ErrAlreadyRewarded
	}

	if err := l.rewardLocked(ctx, userID, amount, "Founders reward"); err != nil {
		return err
	}
	return l.cache.SetProperty(ctx, SystemID, "foundersRewardDone", true)
}

// RewardUser transfers points from the system account to a user.
func (l *Ledger) RewardUser(ctx context.Context, userID string, amount types.Points, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rewardLocked(ctx, userID, amount, reason)
}

func (l *Ledger) rewardLocked(ctx context.Context, userID string, amount types.Points, reason string) error {
	if err := l.transferLocked(ctx, amount, SystemID, userID, reason); err != nil {
		return err
	}
	l.audit.Log(userID, audit.EventReward, amount.String(), reason)
	return nil
}

// LockPoints moves points from the available to the locked balance.
func (l *Ledger) LockPoints(ctx context.Context, objectID string, amount types.Points, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	obj, err := l.cache.Load(ctx, objectID)
	if err != nil {
		return err
	}
	available := pointsOf(obj, "availableBalance")
	if available.Less(amount) {
		return fmt.Errorf("%w: locking %s with %s available on %s",
			ErrInsufficientFunds, amount, available, objectID)
	}

	locked := pointsOf(obj, "lockedBalance")
	if err := l.cache.UpdateObject(ctx, objectID, func(obj store.Object) {
		obj["availableBalance"] = available.Sub(amount).Float()
		obj["lockedBalance"] = locked.Add(amount).Float()
	}); err != nil {
		return err
	}

	l.audit.Log(objectID, audit.EventLock, amount.String(), reason)
	return nil
}

// UnlockPoints moves points from the locked to the available balance.
func (l *Ledger) UnlockPoints(ctx context.Context, objectID string, amount types.Points, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlockLocked(ctx, objectID, amount, reason)
}

func (l *Ledger) unlockLocked(ctx context.Context, objectID string, amount types.Points, reason string) error {
	obj, err := l.cache.Load(ctx, objectID)
	if err != nil {
		return err
	}
	locked := pointsOf(obj, "lockedBalance")
	if locked.Less(amount) {
		return fmt.Errorf("%w: unlocking %s with %s locked on %s",
			ErrInsufficientLockedFunds, amount, locked, objectID)
	}

	available := pointsOf(obj, "availableBalance")
	if err := l.cache.UpdateObject(ctx, objectID, func(obj store.Object) {
		obj["lockedBalance"] = locked.Sub(amount).Float()
		obj["availableBalance"] = available.Add(amount).Float()
	}); err != nil {
		return err
	}

	l.audit.Log(objectID, audit.EventUnlock, amount.String(), reason)
	return nil
}

// TransferPoints moves available points between two objects.
func (l *Ledger) TransferPoints(ctx context.Context, amount types.Points, fromID, toID, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(ctx, amount, fromID, toID, reason)
}

func (l *Ledger) transferLocked(ctx context.Context, amount types.Points, fromID, toID, reason string) error {
	from, err := l.cache.Load(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := l.cache.Load(ctx, toID)
	if err != nil {
		return err
	}

	fromBalance := pointsOf(from, "availableBalance")
	if fromBalance.Less(amount) {
		return fmt.Errorf("%w: transferring %s with %s available from %s to %s",
			ErrInsufficientFunds, amount, fromBalance, fromID, toID)
	}
	toBalance := pointsOf(to, "availableBalance")

	if err := l.cache.SetProperty(ctx, fromID, "availableBalance", fromBalance.Sub(amount).Float()); err != nil {
		return err
	}
	if err := l.cache.SetProperty(ctx, toID, "availableBalance", toBalance.Add(amount).Float()); err != nil {
		return err
	}

	l.audit.Log(fromID, audit.EventTransferFrom, amount.String(), "to "+toID, reason)
	l.audit.Log(toID, audit.EventTransferTo, amount.String(), "from "+fromID, reason)
	return nil
}

// TransferLockedPoints moves locked points between two objects.
func (l *Ledger) TransferLockedPoints(ctx context.Context, amount types.Points, fromID, toID, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLockedBalances(ctx, amount, fromID, toID, reason)
}

func (l *Ledger) transferLockedBalances(ctx context.Context, amount types.Points, fromID, toID, reason string) error {
	from, err := l.cache.Load(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := l.cache.Load(ctx, toID)
	if err != nil {
		return err
	}

	fromLocked := pointsOf(from, "lockedBalance")
	if fromLocked.Less(amount) {
		return fmt.Errorf("%w: transferring %s with %s locked from %s to %s",
			ErrInsufficientLockedFunds, amount, fromLocked, fromID, toID)
	}
	toLocked := pointsOf(to, "lockedBalance")

	if err := l.cache.SetProperty(ctx, fromID, "lockedBalance", fromLocked.Sub(amount).Float()); err != nil {
		return err
	}
	if err := l.cache.SetProperty(ctx, toID, "lockedBalance", toLocked.Add(amount).Float()); err != nil {
		return err
	}

	l.audit.Log(fromID, audit.EventTransferLockedFrom, amount.String(), "to "+toID, reason)
	l.audit.Log(toID, audit.EventTransferLockedTo, amount.String(), "from "+fromID, reason)
	return nil
}

// ConfiscateLockedPoints moves locked points from an object back to the
// system account and releases them there.
func (l *Ledger) ConfiscateLockedPoints(ctx context.Context, objectID string, amount types.Points, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.transferLockedBalances(ctx, amount, objectID, SystemID, reason); err != nil {
		return err
	}
	if err := l.unlockLocked(ctx, SystemID, amount, reason); err != nil {
		return err
	}

	l.audit.Log(objectID, audit.EventConfiscateLocked, amount.String(), reason)
	return nil
}

// AddController grants a controller a role on an object. At most one
// controller may hold the owner role.
func (l *Ledger) AddController(ctx context.Context, objectID, controller, role string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	controllers, err := l.controllersLocked(ctx, objectID)
	if err != nil {
		return err
	}
	if role == RoleOwner {
		for existing, existingRole := range controllers {
			if existingRole == RoleOwner && existing != controller {
				return fmt.Errorf("%w: %s already owns %s", ErrDuplicateOwner, existing, objectID)
			}
		}
	}
	controllers[controller] = role
	return l.cache.SetProperty(ctx, objectID, "controllers", toAnyMap(controllers))
}

// DeleteController revokes a controller. Unknown controllers are ignored.
func (l *Ledger) DeleteController(ctx context.Context, objectID, controller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	controllers, err := l.controllersLocked(ctx, objectID)
	if err != nil {
		return err
	}
	if _, ok := controllers[controller]; !ok {
		return nil
	}
	delete(controllers, controller)
	return l.cache.SetProperty(ctx, objectID, "controllers", toAnyMap(controllers))
}

// Controllers returns the controller→role map of an object.
func (l *Ledger) Controllers(ctx context.Context, objectID string) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.controllersLocked(ctx, objectID)
}

// HasRole reports whether a controller holds the given role on an object.
func (l *Ledger) HasRole(ctx context.Context, objectID, controller, role string) (bool, error) {
	controllers, err := l.Controllers(ctx, objectID)
	if err != nil {
		return false, err
	}
	return controllers[controller] == role, nil
}

// Owner returns the controller holding the owner role, or "" when the
// object has no owner.
func (l *Ledger) Owner(ctx context.Context, objectID string) (string, error) {
	controllers, err := l.Controllers(ctx, objectID)
	if err != nil {
		return "", err
	}
	for controller, role := range controllers {
		if role == RoleOwner {
			return controller, nil
		}
	}
	return "", nil
}

func (l *Ledger) controllersLocked(ctx context.Context, objectID string) (map[string]string, error) {
	v, ok, err := l.cache.GetProperty(ctx, objectID, "controllers")
	if err != nil {
		return nil, err
	}
	controllers := make(map[string]string)
	if !ok {
		return controllers, nil
	}
	switch m := v.(type) {
	case map[string]any:
		for controller, role := range m {
			if s, ok := role.(string); ok {
				controllers[controller] = s
			}
		}
	case map[string]string:
		for controller, role := range m {
			controllers[controller] = role
		}
	}
	return controllers, nil
}

// LoginEvent records a login attempt in the audit trail.
// state is "SUCCESS" or "FAIL".
func (l *Ledger) LoginEvent(userID, state, reason string) {
	l.audit.Log(userID, audit.EventLogin, state, reason)
}

// UserLogs returns the audit trail of a single account.
func (l *Ledger) UserLogs(ctx context.Context, userID string) (string, error) {
	return l.audit.UserLogs(ctx, userID)
}

func checkAmount(amount types.Points) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

// pointsOf reads a balance property off a raw object. JSON decoding yields
// float64; objects never flushed may still hold what we wrote.
func pointsOf(obj store.Object, key string) types.Points {
	switch v := obj[key].(type) {
	case float64:
		return types.FromFloat(v)
	case int:
		return types.FromFloat(float64(v))
	case int64:
		return types.FromFloat(float64(v))
	case types.Points:
		return v
	}
	return 0
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
