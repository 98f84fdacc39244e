package engine

import (
	"math"
	"strconv"
	"strings"
)

// FloatConvention selects how a hex digest is reduced to a float in [0, 1].
// Both conventions are in use by deployed verifiers, so the choice is made
// once per engine and never mixed within a verification.
type FloatConvention string

const (
	// Float64Bit reads 16 hex chars and divides by 2^64-1.
	Float64Bit FloatConvention = "64bit"
	// Float52Bit reads 13 hex chars and divides by 2^52.
	Float52Bit FloatConvention = "52bit"

	DefaultFloatConvention = Float64Bit
)

const (
	prefix64 = 16
	prefix52 = 13

	// Both divisors are exact decimal renderings; the float64 forms are what
	// the division actually uses.
	denominator64 = "18446744073709551615"
	denominator52 = "4503599627370496"
)

var (
	divisor64 = float64(math.MaxUint64) // rounds to 2^64 in float64
	divisor52 = math.Pow(2, 52)
)

// ParseFloatConvention accepts the canonical names plus a few aliases.
func ParseFloatConvention(s string) (FloatConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "64bit", "64", "cli":
		return Float64Bit, nil
	case "52bit", "52", "browser":
		return Float52Bit, nil
	}
	return "", invalidConfig("float_convention", "must be 64bit or 52bit, got "+strconv.Quote(s))
}

// Validate rejects conventions not produced by ParseFloatConvention.
func (c FloatConvention) Validate() error {
	if c != Float64Bit && c != Float52Bit {
		return invalidConfig("float_convention", "unknown convention "+strconv.Quote(string(c)))
	}
	return nil
}

// PrefixLen is the number of leading hex chars the convention consumes.
func (c FloatConvention) PrefixLen() int {
	if c == Float52Bit {
		return prefix52
	}
	return prefix64
}

// Denominator returns the exact decimal divisor used by the convention.
func (c FloatConvention) Denominator() string {
	if c == Float52Bit {
		return denominator52
	}
	return denominator64
}

// FloatBreakdown exposes every intermediate of an extraction.
type FloatBreakdown struct {
	Convention  FloatConvention `json:"convention"`
	Prefix      string          `json:"prefix"`
	Integer     uint64          `json:"integer"`
	Denominator string          `json:"denominator"`
	Value       float64         `json:"value"`
}

// Breakdown reduces hexDigest to a float and keeps the intermediates.
func (c FloatConvention) Breakdown(hexDigest string) (FloatBreakdown, error) {
	if err := c.Validate(); err != nil {
		return FloatBreakdown{}, err
	}
	n := c.PrefixLen()
	if len(hexDigest) < n {
		return FloatBreakdown{}, invalidInput("digest", "shorter than "+strconv.Itoa(n)+" hex chars")
	}
	prefix := hexDigest[:n]
	v, err := strconv.ParseUint(prefix, 16, 64)
	if err != nil {
		return FloatBreakdown{}, invalidInput("digest", "is not hex")
	}

	var f float64
	if c == Float52Bit {
		f = float64(v) / divisor52
	} else {
		f = float64(v) / divisor64
	}

	return FloatBreakdown{
		Convention:  c,
		Prefix:      prefix,
		Integer:     v,
		Denominator: c.Denominator(),
		Value:       f,
	}, nil
}

// Extract reduces hexDigest to a float in [0, 1].
func (c FloatConvention) Extract(hexDigest string) (float64, error) {
	b, err := c.Breakdown(hexDigest)
	if err != nil {
		return 0, err
	}
	return b.Value, nil
}
