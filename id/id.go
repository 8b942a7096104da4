// Package id defines the prefixed display identifiers for all ledger accounts.
//
// An account ID is a one-letter type prefix followed by the account's counter
// value encoded in an obfuscated bijective base-36 alphabet, left-padded to a
// fixed width: "UX1VURKL". The short form drops the padding for compact
// display ("U1VURKL") and converts back to the full form losslessly.
package id

import (
	"errors"
	"fmt"
	"strings"
)

// alphabet is the obfuscated base-36 symbol set. Position encodes digit value;
// the zero symbol is 'X'.
const alphabet = "X1234567890VURKLSTWEJCZIDMBNQOYFAGHP"

// Width is the number of encoded symbols in a full ID, after the prefix.
const Width = 7

// pad is the alphabet's zero symbol, used for left-padding.
const pad = 'X'

// Prefix identifies the account type encoded in an ID.
type Prefix byte

// Prefix constants for the known account types.
const (
	PrefixUser    Prefix = 'U' // Regular user account
	PrefixAgent   Prefix = 'A' // Agent account
	PrefixChannel Prefix = 'C' // Group or channel account
	PrefixSystem  Prefix = 'S' // Reserved for the system pool
)

// ErrMalformed indicates an identifier that does not match the expected
// prefix + symbols shape.
var ErrMalformed = errors.New("id: malformed identifier")

// digit value per alphabet byte, 0xFF for bytes outside the alphabet.
var digits = func() [256]byte {
	var d [256]byte
	for i := range d {
		d[i] = 0xFF
	}
	for i := 0; i < len(alphabet); i++ {
		d[alphabet[i]] = byte(i)
	}
	return d
}()

// ID is a full-form account identifier: prefix + Width symbols.
type ID string

// Encode converts a counter value into a full ID with the given prefix.
// Deterministic and collision-free over the counter's range.
func Encode(number uint64, prefix Prefix) ID {
	var buf [Width]byte
	for i := range buf {
		buf[i] = pad
	}
	pos := Width
	for number > 0 {
		pos--
		buf[pos] = alphabet[number%36]
		number /= 36
	}
	return ID(string(byte(prefix)) + string(buf[:]))
}

// Parse validates a full-form identifier.
func Parse(s string) (ID, error) {
	if len(s) != Width+1 {
		return "", fmt.Errorf("%w: %q must be %d characters", ErrMalformed, s, Width+1)
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return "", fmt.Errorf("%w: %q has no type prefix", ErrMalformed, s)
	}
	for i := 1; i < len(s); i++ {
		if digits[s[i]] == 0xFF {
			return "", fmt.Errorf("%w: %q contains symbol %q", ErrMalformed, s, s[i])
		}
	}
	return ID(s), nil
}

// ParseShort validates a short-form identifier and expands it to full form.
// The short form is the prefix plus up to Width symbols with the left padding
// stripped.
func ParseShort(s string) (ID, error) {
	if len(s) < 1 || len(s) > Width+1 {
		return "", fmt.Errorf("%w: %q has invalid length", ErrMalformed, s)
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return "", fmt.Errorf("%w: %q has no type prefix", ErrMalformed, s)
	}
	body := s[1:]
	for i := 0; i < len(body); i++ {
		if digits[body[i]] == 0xFF {
			return "", fmt.Errorf("%w: %q contains symbol %q", ErrMalformed, s, body[i])
		}
	}
	padded := strings.Repeat(string(rune(pad)), Width-len(body)) + body
	return ID(string(s[0]) + padded), nil
}

// String returns the full identifier.
func (i ID) String() string { return string(i) }

// Prefix returns the account type prefix.
func (i ID) Prefix() Prefix {
	if len(i) == 0 {
		return 0
	}
	return Prefix(i[0])
}

// Number decodes the counter value the identifier encodes.
func (i ID) Number() (uint64, error) {
	if _, err := Parse(string(i)); err != nil {
		return 0, err
	}
	var n uint64
	for j := 1; j < len(i); j++ {
		n = n*36 + uint64(digits[i[j]])
	}
	return n, nil
}

// Short returns the compact display form: prefix + symbols with the left
// padding stripped. Short of the all-pad encoding (counter zero) is the bare
// prefix.
func (i ID) Short() string {
	if len(i) == 0 {
		return ""
	}
	body := strings.TrimLeft(string(i[1:]), string(rune(pad)))
	return string(i[0]) + body
}
