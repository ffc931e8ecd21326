// Package rankkey maps point totals to fixed-width keys whose ascending
// string order is the descending numeric order of the totals. The external
// store only supports ascending range scans, so leaderboard reads scan keys
// in plain order and still come back best-first.
package rankkey

import (
	"fmt"
	"strconv"
)

// DefaultCeiling is comfortably above any achievable season total:
// a season of ~25 races caps out in the low tens of thousands of points.
const DefaultCeiling = 9_999_999

// Option applies a configuration option to the Codec.
type Option func(*Codec)

// WithCeiling overrides the maximum encodable total. Values below 9 are
// ignored to keep the key at least one digit wide.
func WithCeiling(ceiling int) Option {
	return func(c *Codec) {
		if ceiling >= 9 {
			c.ceiling = ceiling
		}
	}
}

// Codec encodes totals as zero-padded decimals of (ceiling - points).
// For a > b, Encode(a) < Encode(b) under ordinal comparison.
type Codec struct {
	ceiling int
	width   int
}

// New builds a Codec with the default ceiling unless overridden.
func New(opts ...Option) *Codec {
	c := &Codec{ceiling: DefaultCeiling}
	for _, opt := range opts {
		opt(c)
	}
	c.width = len(strconv.Itoa(c.ceiling))
	return c
}

// Ceiling returns the maximum encodable point total.
func (c *Codec) Ceiling() int { return c.ceiling }

// Width returns the fixed key width in characters.
func (c *Codec) Width() int { return c.width }

// Encode turns a non-negative total into its sort key. Totals outside
// [0, ceiling] are a caller error; they are rejected, never truncated.
func (c *Codec) Encode(points int) (string, error) {
	if points < 0 {
		return "", fmt.Errorf("%w: %d", ErrNegativePoints, points)
	}
	if points > c.ceiling {
		return "", fmt.Errorf("%w: %d exceeds ceiling %d", ErrAboveCeiling, points, c.ceiling)
	}
	return fmt.Sprintf("%0*d", c.width, c.ceiling-points), nil
}

// Decode is the exact inverse of Encode.
func (c *Codec) Decode(key string) (int, error) {
	if len(key) != c.width {
		return 0, fmt.Errorf("%w: got width %d, want %d", ErrMalformedKey, len(key), c.width)
	}
	n, err := strconv.Atoi(key)
	if err != nil || key[0] == '-' || key[0] == '+' {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	points := c.ceiling - n
	if points < 0 {
		return 0, fmt.Errorf("%w: %q outside range", ErrMalformedKey, key)
	}
	return points, nil
}
