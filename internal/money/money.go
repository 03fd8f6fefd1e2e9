package money

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in minor units (cents).
type Money = int64

var hundred = decimal.NewFromInt(100)

// RoundHalfUp rounds a non-negative decimal amount of cents to the nearest cent, halves rounding up.
func RoundHalfUp(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

// Ceil rounds a decimal amount of cents up to the next whole cent.
func Ceil(d decimal.Decimal) Money {
	return d.Ceil().IntPart()
}

// PercentOf returns round(amount * percent / 100) where percent is expressed in percentage points.
func PercentOf(amount Money, percent decimal.Decimal) Money {
	if amount <= 0 || !percent.IsPositive() {
		return 0
	}
	return RoundHalfUp(decimal.NewFromInt(amount).Mul(percent).Div(hundred))
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Clamp bounds v to the closed interval [lo, hi].
func Clamp(v, lo, hi Money) Money {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
