package creditkit

import (
	"github.com/creditkit/creditkit/tier"
	"github.com/creditkit/creditkit/types"
)

// Re-export common types for convenience so users don't have to import
// the types package.

// Points is re-exported from types package.
type Points = types.Points

// Tier and TierTable are re-exported from the tier package.
type (
	Tier      = tier.Tier
	TierTable = tier.Table
)

// Re-export Points constructors
var (
	FromFloat   = types.FromFloat
	FromMicros  = types.FromMicros
	ParsePoints = types.Parse
	Sum         = types.Sum
)

// ParseTiers parses "threshold:value" strings into a tier table.
var ParseTiers = tier.Parse
