// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"math/big"
)

// Decimal is a fixed-point decimal value used for total_cost_usd, which
// must survive round-trips with at least 18 fractional digits of
// precision — more than float64 can guarantee.
type Decimal struct {
	r *big.Rat
}

// NewDecimal wraps a big.Rat as a Decimal.
func NewDecimal(r *big.Rat) Decimal {
	if r == nil {
		r = new(big.Rat)
	}
	return Decimal{r: r}
}

// String renders the decimal with up to 18 fractional digits, trimming
// trailing zeros.
func (d Decimal) String() string {
	if d.r == nil {
		return "0"
	}
	return trimTrailingZeros(d.r.FloatString(18))
}

// Float64 returns a float64 approximation, for callers that only need a
// display value.
func (d Decimal) Float64() float64 {
	if d.r == nil {
		return 0
	}
	f, _ := d.r.Float64()
	return f
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	if d.r == nil {
		return []byte("0"), nil
	}
	s := d.r.FloatString(18)
	return []byte(trimTrailingZeros(s)), nil
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	r, ok := new(big.Rat).SetString(string(data))
	if !ok {
		return fmt.Errorf("protocol: invalid decimal literal %q", data)
	}
	d.r = r
	return nil
}

func trimTrailingZeros(s string) string {
	dot := -1
	for i, c := range s {
		if c == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return s
	}
	end := len(s)
	for end > dot+1 && s[end-1] == '0' {
		end--
	}
	if end == dot+1 {
		end = dot
	}
	return s[:end]
}
