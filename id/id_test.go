package id_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/creditkit/creditkit/id"
)

func TestEncodeShape(t *testing.T) {
	tests := []struct {
		name   string
		number uint64
		prefix id.Prefix
	}{
		{"One", 1, id.PrefixUser},
		{"Ten", 10, id.PrefixUser},
		{"BaseBoundaryLow", 35, id.PrefixUser},
		{"BaseBoundary", 36, id.PrefixUser},
		{"BaseBoundaryHigh", 37, id.PrefixUser},
		{"Agent", 36 * 1000, id.PrefixAgent},
		{"Channel", 1024, id.PrefixChannel},
		{"Large", 36*1_000_000 + 1, id.PrefixAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := id.Encode(tt.number, tt.prefix)
			if len(got) != id.Width+1 {
				t.Fatalf("Encode(%d) = %q, want %d characters", tt.number, got, id.Width+1)
			}
			if got.Prefix() != tt.prefix {
				t.Errorf("prefix = %q, want %q", got.Prefix(), tt.prefix)
			}
		})
	}
}

func TestNumberRoundTrip(t *testing.T) {
	numbers := []uint64{0, 1, 10, 35, 36, 37, 1024, 36 * 10, 36 * 100000, 36*1_000_000 + 1}
	for _, n := range numbers {
		full := id.Encode(n, id.PrefixUser)
		got, err := full.Number()
		if err != nil {
			t.Fatalf("Number(%q): %v", full, err)
		}
		if got != n {
			t.Errorf("Number(Encode(%d)) = %d", n, got)
		}
	}
}

func TestShortRoundTrip(t *testing.T) {
	numbers := []uint64{0, 1, 10, 35, 36, 37, 36 * 10, 36 * 100, 36 * 1000, 36 * 10000, 36 * 100000, 36 * 1000000, 36*1000000 + 1}
	for _, n := range numbers {
		full := id.Encode(n, id.PrefixAgent)
		short := full.Short()
		back, err := id.ParseShort(short)
		if err != nil {
			t.Fatalf("ParseShort(%q): %v", short, err)
		}
		if back != full {
			t.Errorf("ParseShort(Short(%q)) = %q", full, back)
		}
	}
}

func TestShortStripsPadding(t *testing.T) {
	full := id.Encode(1, id.PrefixUser)
	short := full.Short()
	if strings.Contains(short[1:], "X") {
		t.Errorf("Short(%q) = %q still carries padding", full, short)
	}
	if len(short) >= len(full) {
		t.Errorf("Short(%q) = %q is not shorter", full, short)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"Empty", ""},
		{"TooShort", "U123"},
		{"TooLong", "U123456789"},
		{"NoPrefix", "11234567"},
		{"BadSymbol", "Uabc!foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.in); !errors.Is(err, id.ErrMalformed) {
				t.Errorf("Parse(%q): expected ErrMalformed, got %v", tt.in, err)
			}
		})
	}
}

func TestParseShortRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"Empty", ""},
		{"TooLong", "U12345678"},
		{"NoPrefix", "1234"},
		{"BadSymbol", "U12!4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.ParseShort(tt.in); !errors.Is(err, id.ErrMalformed) {
				t.Errorf("ParseShort(%q): expected ErrMalformed, got %v", tt.in, err)
			}
		})
	}
}

func TestDistinctNumbersDistinctIDs(t *testing.T) {
	seen := make(map[id.ID]uint64)
	for n := uint64(0); n < 5000; n++ {
		full := id.Encode(n, id.PrefixUser)
		if prev, dup := seen[full]; dup {
			t.Fatalf("collision: %d and %d both encode to %q", prev, n, full)
		}
		seen[full] = n
	}
}
