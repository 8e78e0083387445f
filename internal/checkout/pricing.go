package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinTokenPurchase is the smallest token pack that can be bought.
const MinTokenPurchase int64 = 100

var hundred = decimal.NewFromInt(100)

// TokenPrice is the USD price of tokens at tokensPerDollar, rounded up to
// the cent.
func TokenPrice(tokens, tokensPerDollar int64) (decimal.Decimal, error) {
	if tokensPerDollar <= 0 {
		return decimal.Zero, fmt.Errorf("tokens per dollar must be positive")
	}
	if tokens < MinTokenPurchase {
		return decimal.Zero, fmt.Errorf("minimum purchase is %d tokens", MinTokenPurchase)
	}
	return decimal.NewFromInt(tokens).
		Div(decimal.NewFromInt(tokensPerDollar)).
		RoundCeil(2), nil
}

// Cents converts a USD amount into Stripe's minor units.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
