package market

import (
	"fmt"
	"math/big"
)

// MinTick and MaxTick bound the usable tick range for sqrt ratios.
const (
	MinTick = -887272
	MaxTick = 887272
)

// sqrt(1.0001^tick) * 2^128 factors for each bit of |tick|, from bit 0x1
// up to bit 0x80000. Values are the negative-tick form.
var tickRatios = mustParseRatios([]string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
})

var (
	one128     = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	oneShift32 = new(big.Int).Lsh(big.NewInt(1), 32)
)

func mustParseRatios(hex []string) []*big.Int {
	out := make([]*big.Int, len(hex))
	for i, h := range hex {
		v, ok := new(big.Int).SetString(h, 16)
		if !ok {
			panic("invalid tick ratio constant: " + h)
		}
		out[i] = v
	}
	return out
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96 as a Q64.96 integer.
// The computation is integer-exact, bit by bit over |tick|.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick out of range: %d", tick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-int64(tick))
	}

	ratio := new(big.Int).Set(one128)
	for i, factor := range tickRatios {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(new(big.Int).Set(maxUint256), ratio)
	}

	// Q128.128 -> Q64.96, rounding up.
	rem := new(big.Int)
	ratio.DivMod(ratio, oneShift32, rem)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}
