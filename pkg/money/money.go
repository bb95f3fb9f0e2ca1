package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrOverflow         = errors.New("amount overflow")
)

// exponents lists currencies whose minor unit is not 1/100.
var exponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"JOD": 3,
	"KWD": 3,
	"OMR": 3,
}

// Money is an exact amount held as integer minor units of a currency.
// The zero value has no currency and is only useful as a placeholder.
type Money struct {
	minor    int64
	currency string
}

// NormalizeCurrency upper-cases and validates a three-letter code.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return c, nil
}

// Exponent returns the number of decimal places of the currency minor unit.
func Exponent(currency string) int32 {
	if e, ok := exponents[currency]; ok {
		return e
	}
	return 2
}

// FromMinor builds Money from minor units. The currency must be normalized.
func FromMinor(minor int64, currency string) Money {
	return Money{minor: minor, currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{currency: currency}
}

// Parse reads a major-unit decimal string such as "750.25". Extra precision is
// rounded half-to-even to the currency exponent.
func Parse(amount, currency string) (Money, error) {
	c, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return FromDecimal(d, c)
}

// MustParse is Parse for constants and tests.
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts a major-unit decimal using banker's rounding.
func FromDecimal(d decimal.Decimal, currency string) (Money, error) {
	exp := Exponent(currency)
	minor := d.RoundBank(exp).Shift(exp)
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return Money{}, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return Money{minor: minor.IntPart(), currency: currency}, nil
}

func (m Money) Minor() int64 { return m.minor }
func (m Money) Currency() string { return m.currency }
func (m Money) IsZero() bool { return m.minor == 0 }
func (m Money) IsPositive() bool { return m.minor > 0 }
func (m Money) IsNegative() bool { return m.minor < 0 }
func (m Money) Neg() Money { return Money{minor: -m.minor, currency: m.currency} }

// Decimal returns the major-unit value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Exponent(m.currency))
}

// String renders the major-unit amount with the currency exponent digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.currency))
}

func (m Money) same(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

func (m Money) Add(o Money) (Money, error) {
	if err := m.same(o); err != nil {
		return Money{}, err
	}
	sum := m.minor + o.minor
	if (o.minor > 0 && sum < m.minor) || (o.minor < 0 && sum > m.minor) {
		return Money{}, ErrOverflow
	}
	return Money{minor: sum, currency: m.currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if err := m.same(o); err != nil {
		return Money{}, err
	}
	if o.minor == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	return m.Add(o.Neg())
}

// MulInt multiplies by an integer quantity, failing on overflow.
func (m Money) MulInt(n int64) (Money, error) {
	if m.minor == 0 || n == 0 {
		return Money{currency: m.currency}, nil
	}
	p := m.minor * n
	if p/n != m.minor || (m.minor == -1 && n == math.MinInt64) || (n == -1 && m.minor == math.MinInt64) {
		return Money{}, ErrOverflow
	}
	return Money{minor: p, currency: m.currency}, nil
}

// Cmp returns -1, 0 or 1. Mixed currencies are an error.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.same(o); err != nil {
		return 0, err
	}
	switch {
	case m.minor < o.minor:
		return -1, nil
	case m.minor > o.minor:
		return 1, nil
	}
	return 0, nil
}

// Max returns the larger amount; both must share a currency.
func Max(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if c >= 0 {
		return a, nil
	}
	return b, nil
}

// Min returns the smaller amount; both must share a currency.
func Min(a, b Money) (Money, error) {
	c, err := a.Cmp(b)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return a, nil
	}
	return b, nil
}

// Sum folds amounts of one currency starting from zero.
func Sum(currency string, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

type wire struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{Amount: m.String(), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	parsed, err := Parse(w.Amount, w.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
