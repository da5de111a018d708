package trade

import (
	"math/big"

	"github.com/shopspring/decimal"
	"ordertracker/apps/ordertracker/internal/model"
)

// ShortestPrecision is the number of significant digits used in order summaries
const ShortestPrecision = 3

const (
	// BipsBase is the number of basis points in one
	BipsBase = 10000
	// DefaultSlippageBips is 0.5%
	DefaultSlippageBips = 50
)

// CurrencyAmount is a raw integer amount of a token
type CurrencyAmount struct {
	Token model.Token
	Raw   *big.Int
}

// RawString returns the amount in base-10 raw token units
func (a CurrencyAmount) RawString() string {
	if a.Raw == nil {
		return "0"
	}
	return a.Raw.Text(10)
}

// Decimal scales the raw amount by the token decimals
func (a CurrencyAmount) Decimal() decimal.Decimal {
	if a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Token.Decimals))
}

// ToSignificant formats the amount rounded half up to the given number of significant digits
func (a CurrencyAmount) ToSignificant(digits int) string {
	d := a.Decimal()
	if d.IsZero() {
		return "0"
	}

	// integer digits of |d|; zero or negative for amounts below 1
	intDigits := len(d.Coefficient().Text(10)) + int(d.Exponent())
	if d.Sign() < 0 {
		intDigits--
	}

	return d.Round(int32(digits - intDigits)).String()
}

// ApplySlippage returns the limit amounts for a trade. A sell order keeps its
// input and requires at least output/(1+slippage); a buy order keeps its
// output and spends at most input*(1+slippage). Results are floored.
func ApplySlippage(kind model.OrderKind, input, output CurrencyAmount, bips uint32) (CurrencyAmount, CurrencyAmount) {
	if bips == 0 {
		return input, output
	}

	base := big.NewInt(BipsBase)
	widened := new(big.Int).Add(base, big.NewInt(int64(bips)))

	switch kind {
	case model.OrderKindSell:
		if output.Raw != nil {
			raw := new(big.Int).Mul(output.Raw, base)
			output.Raw = raw.Quo(raw, widened)
		}
	case model.OrderKindBuy:
		if input.Raw != nil {
			raw := new(big.Int).Mul(input.Raw, widened)
			input.Raw = raw.Quo(raw, base)
		}
	}

	return input, output
}
