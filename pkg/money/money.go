// Package money provides an arbitrary-precision monetary value type bound to
// a currency. Amounts are rounded to the currency's decimal places on
// construction using banker's rounding, so repeated arithmetic never
// accumulates sub-cent residue.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency identifies a currency by ISO code and the number of decimal
// places its amounts are kept to.
type Currency struct {
	Code   string `json:"code"`
	Digits int32  `json:"digits"`
}

// Money is an immutable amount in a single currency. The zero value is not
// usable; construct values with New or Zero.
type Money struct {
	currency Currency
	amount   decimal.Decimal
}

// New creates a Money rounded to the currency's decimal places.
func New(currency Currency, amount decimal.Decimal) Money {
	return Money{currency: currency, amount: amount.RoundBank(currency.Digits)}
}

// NewFromFloat is a convenience constructor used mainly in tests.
func NewFromFloat(currency Currency, amount float64) Money {
	return New(currency, decimal.NewFromFloat(amount))
}

// Zero returns the zero amount in the given currency.
func Zero(currency Currency) Money {
	return Money{currency: currency, amount: decimal.Zero}
}

// Currency returns the currency the amount is denominated in.
func (m Money) Currency() Currency { return m.currency }

// Amount returns the underlying decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// checkCurrency panics on a currency mismatch. Mixing currencies is a
// programming error, not a recoverable domain condition.
func (m Money) checkCurrency(other Money) {
	if m.currency.Code != other.currency.Code {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", m.currency.Code, other.currency.Code))
	}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	m.checkCurrency(other)
	return New(m.currency, m.amount.Add(other.amount))
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	m.checkCurrency(other)
	return New(m.currency, m.amount.Sub(other.amount))
}

// AddAmount returns m plus a raw decimal in the same currency.
func (m Money) AddAmount(amount decimal.Decimal) Money {
	return New(m.currency, m.amount.Add(amount))
}

// SubAmount returns m minus a raw decimal in the same currency.
func (m Money) SubAmount(amount decimal.Decimal) Money {
	return New(m.currency, m.amount.Sub(amount))
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsGreaterThanZero reports whether the amount is strictly positive.
func (m Money) IsGreaterThanZero() bool { return m.amount.GreaterThan(decimal.Zero) }

// IsGreaterThan reports whether m > other.
func (m Money) IsGreaterThan(other Money) bool {
	m.checkCurrency(other)
	return m.amount.GreaterThan(other.amount)
}

// IsGreaterThanOrEqual reports whether m >= other.
func (m Money) IsGreaterThanOrEqual(other Money) bool {
	m.checkCurrency(other)
	return m.amount.GreaterThanOrEqual(other.amount)
}

// IsLessThan reports whether m < other.
func (m Money) IsLessThan(other Money) bool {
	m.checkCurrency(other)
	return m.amount.LessThan(other.amount)
}

// IsEqual reports whether the two amounts are equal in the same currency.
func (m Money) IsEqual(other Money) bool {
	m.checkCurrency(other)
	return m.amount.Equal(other.amount)
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if m.IsLessThan(other) {
		return m
	}
	return other
}

// FlooredAtZero returns m, or zero if m is negative. Allocation must never
// surface a negative outstanding amount.
func (m Money) FlooredAtZero() Money {
	if m.amount.IsNegative() {
		return Zero(m.currency)
	}
	return m
}

// String renders the amount at currency precision, e.g. "125.00 USD".
func (m Money) String() string {
	return m.amount.StringFixed(m.currency.Digits) + " " + m.currency.Code
}
