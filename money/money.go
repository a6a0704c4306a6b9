/*
Package money provides the monetary value type used across the loan engine.

PURPOSE:
  A Money is an immutable decimal amount bound to a currency. Every amount
  in the engine - due, paid, waived, allocated - is a Money, and all
  arithmetic between two Money values requires an identical currency.

KEY CONCEPTS:
  - Currency: code + decimal places + optional in-multiples-of rounding
  - Money: amount (shopspring decimal) + Currency
  - Scale: amounts are rounded to the currency scale on construction,
    so two Money values in the same currency always compare cleanly

DESIGN PRINCIPLES:
  1. Immutability: every operation returns a new Money
  2. Precision: decimal.Decimal, never float64, for monetary arithmetic
  3. Fail-fast: mixing currencies is a programming error and panics;
     callers that accept external input must check SameCurrency first

SEE ALSO:
  - engine/: validates transaction/installment currencies before arithmetic
  - progressive/: interest math stays in decimal until a Money is built
*/
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency describes the scale and rounding rule for a monetary unit.
type Currency struct {
	// Code is the ISO-4217 style currency code, e.g. "USD".
	Code string

	// DecimalPlaces is the number of fractional digits amounts carry.
	DecimalPlaces int32

	// InMultiplesOf, when DecimalPlaces is 0 and this is greater than 1,
	// rounds whole amounts to the nearest multiple (e.g. cash rounding to 5).
	InMultiplesOf int64
}

func NewCurrency(code string, decimalPlaces int32) Currency {
	return Currency{Code: code, DecimalPlaces: decimalPlaces}
}

func NewCurrencyInMultiplesOf(code string, multiple int64) Currency {
	return Currency{Code: code, DecimalPlaces: 0, InMultiplesOf: multiple}
}

// Equal reports whether two currencies are interchangeable.
func (c Currency) Equal(other Currency) bool {
	return c.Code == other.Code &&
		c.DecimalPlaces == other.DecimalPlaces &&
		c.InMultiplesOf == other.InMultiplesOf
}

// round scales a raw decimal to this currency.
func (c Currency) round(d decimal.Decimal) decimal.Decimal {
	if c.DecimalPlaces == 0 && c.InMultiplesOf > 1 {
		m := decimal.NewFromInt(c.InMultiplesOf)
		return d.Div(m).Round(0).Mul(m)
	}
	return d.Round(c.DecimalPlaces)
}

// =============================================================================
// MONEY
// =============================================================================

type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New builds a Money rounded to the currency scale.
func New(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: currency.round(amount), currency: currency}
}

func NewFromFloat(amount float64, currency Currency) Money {
	return New(decimal.NewFromFloat(amount), currency)
}

func NewFromInt(amount int64, currency Currency) Money {
	return New(decimal.NewFromInt(amount), currency)
}

func NewFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", amount, err)
	}
	return New(d, currency), nil
}

func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the underlying decimal value.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the bound currency.
func (m Money) Currency() Currency { return m.currency }

// SameCurrency reports whether arithmetic between m and other is allowed.
func (m Money) SameCurrency(other Money) bool { return m.currency.Equal(other.currency) }

func (m Money) assertSame(other Money) {
	if !m.SameCurrency(other) {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", m.currency.Code, other.currency.Code))
	}
}

// =============================================================================
// ARITHMETIC - panics on currency mismatch; validate with SameCurrency first
// =============================================================================

func (m Money) Add(other Money) Money {
	m.assertSame(other)
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}
}

func (m Money) Sub(other Money) Money {
	m.assertSame(other)
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}
}

func (m Money) Neg() Money { return Money{amount: m.amount.Neg(), currency: m.currency} }
func (m Money) Abs() Money { return Money{amount: m.amount.Abs(), currency: m.currency} }

// MulDecimal multiplies by a scalar and rounds to the currency scale.
func (m Money) MulDecimal(s decimal.Decimal) Money {
	return New(m.amount.Mul(s), m.currency)
}

// DivInt divides by a count and rounds to the currency scale.
// Used for uniform redistribution (EMI adjustment).
func (m Money) DivInt(n int64) Money {
	return New(m.amount.Div(decimal.NewFromInt(n)), m.currency)
}

func (m Money) Zero() Money { return Zero(m.currency) }

// =============================================================================
// COMPARISON
// =============================================================================

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func (m Money) Equal(other Money) bool {
	m.assertSame(other)
	return m.amount.Equal(other.amount)
}

func (m Money) GreaterThan(other Money) bool {
	m.assertSame(other)
	return m.amount.GreaterThan(other.amount)
}

func (m Money) LessThan(other Money) bool {
	m.assertSame(other)
	return m.amount.LessThan(other.amount)
}

func (m Money) GreaterThanOrEqual(other Money) bool { return !m.LessThan(other) }
func (m Money) LessThanOrEqual(other Money) bool    { return !m.GreaterThan(other) }

func (m Money) Min(other Money) Money {
	if m.LessThan(other) {
		return m
	}
	return other
}

func (m Money) Max(other Money) Money {
	if m.GreaterThan(other) {
		return m
	}
	return other
}

func (m Money) String() string {
	return m.amount.StringFixed(m.currency.DecimalPlaces) + " " + m.currency.Code
}

// =============================================================================
// JSON - used by snapshots and the HTTP surface
// =============================================================================

type moneyJSON struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	DecimalPlaces int32  `json:"decimal_places"`
	InMultiplesOf int64  `json:"in_multiples_of,omitempty"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:        m.amount.String(),
		Currency:      m.currency.Code,
		DecimalPlaces: m.currency.DecimalPlaces,
		InMultiplesOf: m.currency.InMultiplesOf,
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("money: invalid amount %q: %w", raw.Amount, err)
	}
	m.currency = Currency{Code: raw.Currency, DecimalPlaces: raw.DecimalPlaces, InMultiplesOf: raw.InMultiplesOf}
	m.amount = m.currency.round(d)
	return nil
}
