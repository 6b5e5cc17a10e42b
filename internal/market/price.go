package market

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// pricePrecision is the fractional-digit budget for derived prices.
// 24 digits keep token0Price*token1Price within 1e-12 of 1 even for
// heavily skewed decimal pairs.
const pricePrecision = 24

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PricesFromSqrtPriceX96 converts a pool's sqrt price into human-unit
// token prices, adjusting for token decimals. Returns (token0Price,
// token1Price): token1Price is token1 per token0.
func PricesFromSqrtPriceX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero, decimal.Zero
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num.Mul(num, pow10(decimals0))
	den := new(big.Int).Mul(q192, pow10(decimals1))

	price1 := decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), pricePrecision)
	if price1.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	price0 := decimal.NewFromInt(1).DivRound(price1, pricePrecision)
	return price0, price1
}

// HumanAmount scales a raw token amount by the token's decimals.
func HumanAmount(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, 0).DivRound(decimal.NewFromBigInt(pow10(decimals), 0), pricePrecision)
}

// ParseBig parses a decimal-string big integer, rejecting malformed input.
func ParseBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", s)
	}
	return v, nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
