package bank

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeePolicy prices an interbank transfer.
type FeePolicy interface {
	Fee(amount Amount) Amount
	Name() string
}

// FlatFee charges the same fee on every transfer.
type FlatFee struct {
	Amount Amount
}

func (f FlatFee) Fee(Amount) Amount { return f.Amount }

func (f FlatFee) Name() string { return "flat" }

// PercentFee charges Rate of the amount, clamped to [Min, Max].
type PercentFee struct {
	Rate decimal.Decimal
	Min  Amount
	Max  Amount
}

func (p PercentFee) Fee(amount Amount) Amount {
	fee := amount.MulRate(p.Rate)
	if fee < p.Min {
		fee = p.Min
	}
	if p.Max > 0 && fee > p.Max {
		fee = p.Max
	}
	return fee
}

func (p PercentFee) Name() string { return "percent" }

// Default interbank pricing.
var (
	DefaultFlatFee    = FlatFee{Amount: Pesos(25)}
	DefaultPercentFee = PercentFee{Rate: decimal.RequireFromString("0.005"), Min: Pesos(15), Max: Pesos(50)}
)

// FeePolicyByName resolves the configured policy name.
func FeePolicyByName(name string) (FeePolicy, error) {
	switch name {
	case "", "flat":
		return DefaultFlatFee, nil
	case "percent":
		return DefaultPercentFee, nil
	default:
		return nil, fmt.Errorf("unknown interbank fee policy %q", name)
	}
}
