package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// Amount is a u128 value count, as used for coin values and fees. Go has
// no native 128-bit integer, so we wrap math/big.Int the way the chain's
// JSON-RPC surface represents it on the wire: a decimal string.
type Amount struct {
	v big.Int
}

// NewAmount constructs an Amount from a uint64.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 string into an Amount.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if _, ok := a.v.SetString(s, 10); !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if a.v.Sign() < 0 {
		return Amount{}, fmt.Errorf("negative amount %q", s)
	}
	return a, nil
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub returns a-b. Panics on underflow; callers that expect underflow to
// be possible must use SaturatingSub or Cmp first.
func (a Amount) Sub(b Amount) Amount {
	if a.v.Cmp(&b.v) < 0 {
		panic("types: Amount subtraction underflow")
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out
}

// SaturatingSub returns a-b, or zero if b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	if a.v.Cmp(&b.v) < 0 {
		return Amount{}
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out
}

// Mul returns a*n for a small integer multiplier.
func (a Amount) Mul(n uint64) Amount {
	var out Amount
	out.v.Mul(&a.v, new(big.Int).SetUint64(n))
	return out
}

// MulDivFloor returns floor(a*num/den).
func (a Amount) MulDivFloor(num, den uint64) Amount {
	var out Amount
	out.v.Mul(&a.v, new(big.Int).SetUint64(num))
	out.v.Div(&out.v, new(big.Int).SetUint64(den))
	return out
}

// Cmp compares a and b as big integers.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v.Sign() == 0 }

// Half splits a into two roughly equal halves: the floor of a/2 goes to
// the first, and the remainder (the ceiling) to the second.
func (a Amount) Half() (Amount, Amount) {
	var half, rem big.Int
	two := big.NewInt(2)
	half.Div(&a.v, two)
	rem.Sub(&a.v, &half)
	return Amount{v: half}, Amount{v: rem}
}

// String renders the amount in base 10.
func (a Amount) String() string { return a.v.String() }

// BigInt returns a copy of the amount as a *big.Int, for callers doing
// signed arithmetic (e.g. per-denomination net flows) that a u128-only
// Amount cannot represent.
func (a Amount) BigInt() *big.Int { return new(big.Int).Set(&a.v) }

// Uint64 returns the amount as a uint64, truncating silently if it
// overflows. Only used for values already known to fit (fee multipliers,
// block heights derived arithmetic).
func (a Amount) Uint64() uint64 { return a.v.Uint64() }

// Float64 renders the amount as a float64, for display-only
// calculations (e.g. melswap_info's price) that don't need u128
// precision.
func (a Amount) Float64() float64 {
	f := new(big.Float).SetInt(&a.v)
	out, _ := f.Float64()
	return out
}

// MarshalJSON renders the amount as a JSON string, matching the chain's
// RPC convention of encoding u128 values as decimal strings to avoid
// float64 precision loss.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := a.v.SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}

// Value implements database/sql/driver.Valuer, persisting the amount as
// its decimal string form in the coins table.
func (a Amount) Value() (driver.Value, error) {
	return a.v.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		_, ok := a.v.SetString(v, 10)
		if !ok {
			return fmt.Errorf("invalid amount column %q", v)
		}
		return nil
	case []byte:
		_, ok := a.v.SetString(string(v), 10)
		if !ok {
			return fmt.Errorf("invalid amount column %q", v)
		}
		return nil
	case int64:
		a.v.SetInt64(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}
}
