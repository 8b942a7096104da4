// Package types provides common types used across creditkit.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scale is the fixed-point resolution: one point is Scale micro-points.
// Every ledger amount is kept on this 6-decimal grid.
const Scale = 1_000_000

// MinReward is the smallest amount the ledger treats as non-zero (0.001).
const MinReward Points = 1_000

// Points is a fixed-point credit amount with 6 decimal places, stored as an
// int64 count of micro-points. All arithmetic stays on the grid — no
// floating-point drift can accumulate across balance mutations.
//
// Examples:
//   - FromFloat(1.5)      = 1500000 micro-points
//   - FromFloat(0.000001) = 1 micro-point
type Points int64

// Zero is the zero amount.
const Zero Points = 0

// FromFloat snaps a float to the nearest micro-point.
func FromFloat(f float64) Points {
	return Points(math.Round(f * Scale))
}

// TruncFloat snaps a float down to the micro-point grid, then clamps
// sub-minimum amounts to zero. Used when rounding must never pay out more
// than was earned.
func TruncFloat(f float64) Points {
	return Points(math.Floor(f * Scale)).Clamp()
}

// FromMicros builds a Points value from a raw micro-point count.
func FromMicros(micros int64) Points { return Points(micros) }

// Parse converts a decimal string to Points.
func Parse(s string) (Points, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ValidationError{Field: "amount", Message: fmt.Sprintf("not a number: %q", s)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ValidationError{Field: "amount", Message: fmt.Sprintf("not a finite number: %q", s)}
	}
	return FromFloat(f), nil
}

// Micros returns the raw micro-point count.
func (p Points) Micros() int64 { return int64(p) }

// Float returns the amount as a float64. Exact for any amount below
// 2^53 micro-points.
func (p Points) Float() float64 { return float64(p) / Scale }

// Arithmetic operations

// Add returns p + o.
func (p Points) Add(o Points) Points { return p + o }

// Sub returns p - o.
func (p Points) Sub(o Points) Points { return p - o }

// Mul multiplies two amounts, re-snapping the product to the grid.
func (p Points) Mul(o Points) Points { return FromFloat(p.Float() * o.Float()) }

// Div divides two amounts, re-snapping the quotient to the grid.
// Panics on division by zero.
func (p Points) Div(o Points) Points {
	if o == 0 {
		panic("types: division by zero")
	}
	return FromFloat(p.Float() / o.Float())
}

// MulFloat scales the amount by a factor, re-snapping to the grid.
func (p Points) MulFloat(f float64) Points { return FromFloat(p.Float() * f) }

// Neg returns the negated amount.
func (p Points) Neg() Points { return -p }

// Abs returns the absolute amount.
func (p Points) Abs() Points {
	if p < 0 {
		return -p
	}
	return p
}

// Clamp returns the amount, or zero if it is below MinReward.
func (p Points) Clamp() Points {
	if p < MinReward {
		return 0
	}
	return p
}

// Comparisons

// Cmp returns -1, 0 or 1.
func (p Points) Cmp(o Points) int {
	switch {
	case p < o:
		return -1
	case p > o:
		return 1
	default:
		return 0
	}
}

// Equal reports p == o.
func (p Points) Equal(o Points) bool { return p == o }

// Less reports p < o.
func (p Points) Less(o Points) bool { return p < o }

// IsZero reports whether the amount is zero.
func (p Points) IsZero() bool { return p == 0 }

// IsPositive reports whether the amount is above zero.
func (p Points) IsPositive() bool { return p > 0 }

// IsNegative reports whether the amount is below zero.
func (p Points) IsNegative() bool { return p < 0 }

// String formats the amount as a decimal with trailing zeros trimmed:
// "1.5", "0.000001", "10".
func (p Points) String() string {
	neg := p < 0
	abs := int64(p)
	if neg {
		abs = -abs
	}
	whole := abs / Scale
	frac := abs % Scale
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(whole, 10))
	if frac != 0 {
		s := fmt.Sprintf("%06d", frac)
		s = strings.TrimRight(s, "0")
		b.WriteByte('.')
		b.WriteString(s)
	}
	return b.String()
}

// MarshalJSON encodes the amount as a bare decimal number, so stored objects
// read back naturally in any JSON tooling.
func (p Points) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (p *Points) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Points) Points {
	var total Points
	for _, a := range amounts {
		total += a
	}
	return total
}

// SplitPercent returns each entry's share of the total as a fraction in [0,1].
func SplitPercent(amounts map[string]Points) map[string]float64 {
	var sum float64
	for _, a := range amounts {
		sum += a.Float()
	}
	result := make(map[string]float64, len(amounts))
	for key, a := range amounts {
		result[key] = a.Float() / sum
	}
	return result
}

// SublinearShares distributes a unit reward across contributions using a
// sublinear exponent alpha in (0,1):
//
//	share_i = c_i^alpha / Σ_j c_j^alpha
func SublinearShares(contributions []float64, alpha float64) []float64 {
	var sumAlpha float64
	for _, c := range contributions {
		sumAlpha += math.Pow(c, alpha)
	}
	shares := make([]float64, len(contributions))
	for i, c := range contributions {
		shares[i] = math.Pow(c, alpha) / sumAlpha
	}
	return shares
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("creditkit: validation failed for %s: %s", e.Field, e.Message)
}

var _ json.Marshaler = Points(0)
var _ json.Unmarshaler = (*Points)(nil)
