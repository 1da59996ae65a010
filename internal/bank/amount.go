package bank

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is money in minor units (centavos). No floats.
type Amount int64

// maxAmount caps parsed amounts well inside int64 so fee and balance sums cannot overflow.
var maxAmount = decimal.New(1, 15)

// AmountFromDecimal converts a major-unit decimal (e.g. 12.50) into minor units.
// More than two fractional digits is a validation error, not a rounding.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount has more than 2 decimal places", ErrInvalidAmount)
	}
	if minor.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: amount out of range", ErrInvalidAmount)
	}
	return Amount(minor.IntPart()), nil
}

// ParseAmount parses a major-unit string such as "1500" or "99.95".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return AmountFromDecimal(d)
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Pesos builds an Amount from whole major units.
func Pesos(n int64) Amount { return Amount(n * 100) }

func (a Amount) IsPositive() bool { return a > 0 }

// Decimal returns the value in major units.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -2) }

func (a Amount) String() string { return a.Decimal().StringFixed(2) }

// Times multiplies by a count, failing with ErrInvalidAmount when the product
// leaves the accepted amount range.
func (a Amount) Times(n int64) (Amount, error) {
	product := decimal.NewFromInt(int64(a)).Mul(decimal.NewFromInt(n))
	if product.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s x %d is out of range", ErrInvalidAmount, a, n)
	}
	return Amount(product.IntPart()), nil
}

// MulRate multiplies by rate and rounds half away from zero to the centavo.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount(a.Decimal().Mul(rate).Shift(2).Round(0).IntPart())
}

// MarshalJSON renders major units as a bare JSON number, e.g. 1500.00.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string in major units.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	b = bytes.Trim(b, `"`)
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func minAmount(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}
