package market

import (
	"fmt"
	"math/big"
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// LiquidityAmounts computes the token0/token1 amounts covered by
// liquidity over [sqrtLower, sqrtUpper] given the current sqrt price.
// Three regimes: price below the range moves only token0, above only
// token1, inside splits at the current price. liquidity must be >= 0.
func LiquidityAmounts(sqrtPrice, sqrtLower, sqrtUpper, liquidity *big.Int) (*big.Int, *big.Int, error) {
	if sqrtLower.Cmp(sqrtUpper) > 0 {
		return nil, nil, fmt.Errorf("inverted range")
	}
	if liquidity.Sign() < 0 {
		return nil, nil, fmt.Errorf("negative liquidity")
	}

	switch {
	case sqrtPrice.Cmp(sqrtLower) <= 0:
		return amount0Delta(sqrtLower, sqrtUpper, liquidity), big.NewInt(0), nil
	case sqrtPrice.Cmp(sqrtUpper) >= 0:
		return big.NewInt(0), amount1Delta(sqrtLower, sqrtUpper, liquidity), nil
	default:
		return amount0Delta(sqrtPrice, sqrtUpper, liquidity), amount1Delta(sqrtLower, sqrtPrice, liquidity), nil
	}
}

// amount0Delta = (liquidity << 96) * (sqrtB - sqrtA) / sqrtB / sqrtA
func amount0Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	num := new(big.Int).Lsh(liquidity, 96)
	num.Mul(num, new(big.Int).Sub(sqrtB, sqrtA))
	num.Div(num, sqrtB)
	return num.Div(num, sqrtA)
}

// amount1Delta = liquidity * (sqrtB - sqrtA) / 2^96
func amount1Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return out.Div(out, q96)
}
