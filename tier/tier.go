// Package tier implements rank-dependent reward tables.
//
// A table is an ordered list of (threshold, value) pairs. Looking up a rank
// returns the value of the first tier whose threshold covers it. Tables are
// parsed from "threshold:value" strings supplied by configuration.
package tier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/creditkit/creditkit/types"
)

// Tier is a single (threshold, value) pair.
type Tier struct {
	Threshold int64        `json:"threshold"`
	Value     types.Points `json:"value"`
}

// Table is a reward tier table.
//
// PRECONDITION: entries must be sorted ascending by threshold. The table never
// sorts itself; lookup over an unsorted table is undefined.
type Table []Tier

// Parse builds a Table from "int:number" entries.
func Parse(entries []string) (Table, error) {
	table := make(Table, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			return nil, types.ValidationError{Field: "threshold", Message: fmt.Sprintf("invalid entry %q, want \"int:number\"", entry)}
		}
		threshold, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, types.ValidationError{Field: "threshold", Message: fmt.Sprintf("invalid threshold in %q", entry)}
		}
		value, err := types.Parse(parts[1])
		if err != nil {
			return nil, types.ValidationError{Field: "threshold", Message: fmt.Sprintf("invalid value in %q", entry)}
		}
		table = append(table, Tier{Threshold: threshold, Value: value})
	}
	return table, nil
}

// Lookup returns the value of the first tier whose threshold is >= rank.
// ok is false when the rank falls past the last tier; the caller applies its
// configured default.
func (t Table) Lookup(rank int64) (value types.Points, ok bool) {
	for _, tier := range t {
		if rank <= tier.Threshold {
			return tier.Value, true
		}
	}
	return 0, false
}
