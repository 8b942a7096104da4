package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"
	ActionLoginSucceeded = "login.succeeded"
	ActionLoginFailed    = "login.failed"

	// Supply actions
	ActionMint            = "supply.minted"
	ActionFounderRewarded = "supply.founders_rewarded"

	// Balance actions
	ActionReward         = "points.rewarded"
	ActionPointsLocked   = "points.locked"
	ActionPointsUnlocked = "points.unlocked"
	ActionTransfer       = "points.transferred"
	ActionConfiscated    = "points.confiscated"

	// Exchange actions
	ActionOrderMatched = "exchange.order_matched"

	// Infrastructure actions
	ActionCacheFlushed = "cache.flushed"
)

// Resource constants for audit events.
const (
	ResourceAccount  = "account"
	ResourceSupply   = "supply"
	ResourceBalance  = "balance"
	ResourceExchange = "exchange"
	ResourceCache    = "cache"
)

// Category constants for audit events.
const (
	CategoryAccount  = "account"
	CategoryLedger   = "ledger"
	CategoryExchange = "exchange"
	CategoryAccess   = "access"
	CategorySystem   = "system"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
