// Package money provides exact integer monetary arithmetic.
//
// A Money value represents Amount / 10^Scale units of CurrencyCode. Values of
// different currencies never mix: every binary operation returns
// ErrInvalidCurrency on mismatch. Operands with different scales are brought
// to the larger scale by integer multiplication, never through floating point.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency = errors.New("money: invalid currency")
	ErrInvalidScale    = errors.New("money: invalid scale")
	ErrOverflow        = errors.New("money: amount overflow")
	ErrInvalidAmount   = errors.New("money: invalid amount")
)

// maxScale bounds scales so that 10^scale fits in an int64.
const maxScale = 18

// Money is an integer amount with an implied number of decimal places.
type Money struct {
	Amount       int64  `json:"amount"`
	Scale        int    `json:"scale"`
	CurrencyCode string `json:"currency_code"`
}

// New builds a validated Money value.
func New(amount int64, scale int, currencyCode string) (Money, error) {
	m := Money{Amount: amount, Scale: scale, CurrencyCode: currencyCode}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Zero returns zero in the given currency at scale 0.
func Zero(currencyCode string) Money {
	return Money{CurrencyCode: currencyCode}
}

// Parse reads a decimal string such as "100.00" without losing precision.
// The scale of the result equals the number of digits after the point.
func Parse(s, currencyCode string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	coef := d.Coefficient()
	exp := d.Exponent()
	scale := 0
	if exp < 0 {
		scale = int(-exp)
	} else if exp > 0 {
		coef.Mul(coef, decimal.New(1, exp).BigInt())
	}
	if !coef.IsInt64() {
		return Money{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return New(coef.Int64(), scale, currencyCode)
}

// ValidCurrencyCode reports whether code is a three-letter uppercase code.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Validate checks the currency code and scale.
func (m Money) Validate() error {
	if !ValidCurrencyCode(m.CurrencyCode) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, m.CurrencyCode)
	}
	if m.Scale < 0 || m.Scale > maxScale {
		return fmt.Errorf("%w: %d", ErrInvalidScale, m.Scale)
	}
	return nil
}

// Rescale returns the same value expressed at a larger or equal scale.
func (m Money) Rescale(scale int) (Money, error) {
	if scale < m.Scale || scale > maxScale {
		return Money{}, fmt.Errorf("%w: cannot rescale %d to %d", ErrInvalidScale, m.Scale, scale)
	}
	amount, err := mulPow10(m.Amount, scale-m.Scale)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Scale: scale, CurrencyCode: m.CurrencyCode}, nil
}

// Add returns a + b at the larger of the two scales.
func Add(a, b Money) (Money, error) {
	x, y, err := align(a, b)
	if err != nil {
		return Money{}, err
	}
	sum := x.Amount + y.Amount
	if (y.Amount > 0 && sum < x.Amount) || (y.Amount < 0 && sum > x.Amount) {
		return Money{}, ErrOverflow
	}
	return Money{Amount: sum, Scale: x.Scale, CurrencyCode: x.CurrencyCode}, nil
}

// Sub returns a - b at the larger of the two scales.
func Sub(a, b Money) (Money, error) {
	if b.Amount == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	return Add(a, Negate(b))
}

// Sum adds all values. An empty list yields zero at scale 0.
func Sum(values []Money, currencyCode string) (Money, error) {
	total := Zero(currencyCode)
	if !ValidCurrencyCode(currencyCode) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currencyCode)
	}
	for _, v := range values {
		var err error
		total, err = Add(total, v)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Negate flips the sign. Zero stays zero.
func Negate(m Money) Money {
	if m.Amount == 0 {
		return m
	}
	m.Amount = -m.Amount
	return m
}

// Equal compares two values after bringing them to a common scale.
func Equal(a, b Money) (bool, error) {
	c, err := Cmp(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// Cmp returns -1, 0 or +1.
func Cmp(a, b Money) (int, error) {
	x, y, err := align(a, b)
	if err != nil {
		return 0, err
	}
	switch {
	case x.Amount < y.Amount:
		return -1, nil
	case x.Amount > y.Amount:
		return 1, nil
	}
	return 0, nil
}

// Abs returns the magnitude.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return Negate(m)
	}
	return m
}

// Sign returns -1, 0 or +1.
func (m Money) Sign() int {
	switch {
	case m.Amount < 0:
		return -1
	case m.Amount > 0:
		return 1
	}
	return 0
}

func (m Money) IsZero() bool { return m.Amount == 0 }

// Decimal converts to an exact decimal.Decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(m.Scale))
}

// String formats the value with its own scale, e.g. "100.00 EUR".
func (m Money) String() string {
	return m.Decimal().StringFixed(int32(m.Scale)) + " " + m.CurrencyCode
}

func align(a, b Money) (Money, Money, error) {
	if err := a.Validate(); err != nil {
		return Money{}, Money{}, err
	}
	if err := b.Validate(); err != nil {
		return Money{}, Money{}, err
	}
	if a.CurrencyCode != b.CurrencyCode {
		return Money{}, Money{}, fmt.Errorf("%w: %s != %s", ErrInvalidCurrency, a.CurrencyCode, b.CurrencyCode)
	}
	scale := max(a.Scale, b.Scale)
	x, err := a.Rescale(scale)
	if err != nil {
		return Money{}, Money{}, err
	}
	y, err := b.Rescale(scale)
	if err != nil {
		return Money{}, Money{}, err
	}
	return x, y, nil
}

func mulPow10(v int64, n int) (int64, error) {
	for i := 0; i < n; i++ {
		if v > math.MaxInt64/10 || v < math.MinInt64/10 {
			return 0, ErrOverflow
		}
		v *= 10
	}
	return v, nil
}
