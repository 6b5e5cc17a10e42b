package market

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPricesFromSqrtPriceX96Unit(t *testing.T) {
	// sqrtPriceX96 = 2^96 encodes price 1 with equal decimals.
	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)

	price0, price1 := PricesFromSqrtPriceX96(sqrtPrice, 18, 18)
	if price0.String() != "1" || price1.String() != "1" {
		t.Fatalf("unit price mismatch: %s / %s", price0, price1)
	}
}

func TestPricesFromSqrtPriceX96Reciprocal(t *testing.T) {
	cases := []struct {
		sqrtPrice            string
		decimals0, decimals1 uint8
	}{
		{"79228162514264337593543950336", 18, 18},
		{"1234567890123456789012345678", 18, 6},
		{"250541448375047931186413801569", 6, 18}, // ~10x tick region
		{"79232123823359799118286999568", 18, 18},
	}

	for _, tc := range cases {
		sqrtPrice, _ := new(big.Int).SetString(tc.sqrtPrice, 10)
		price0, price1 := PricesFromSqrtPriceX96(sqrtPrice, tc.decimals0, tc.decimals1)

		product := price0.Mul(price1)
		diff := product.Sub(decimal.NewFromInt(1)).Abs()
		if diff.Cmp(decimal.New(1, -12)) > 0 {
			t.Fatalf("price0*price1 = %s for sqrtPrice %s", product, tc.sqrtPrice)
		}
	}
}

func TestPricesFromSqrtPriceX96Zero(t *testing.T) {
	price0, price1 := PricesFromSqrtPriceX96(big.NewInt(0), 18, 18)
	if !price0.IsZero() || !price1.IsZero() {
		t.Fatalf("zero sqrt price must yield zero prices")
	}
	price0, price1 = PricesFromSqrtPriceX96(nil, 18, 18)
	if !price0.IsZero() || !price1.IsZero() {
		t.Fatalf("nil sqrt price must yield zero prices")
	}
}

func TestHumanAmount(t *testing.T) {
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := HumanAmount(amount, 18).String(); got != "1.5" {
		t.Fatalf("human amount mismatch: %s", got)
	}
	if got := HumanAmount(big.NewInt(2500000), 6).String(); got != "2.5" {
		t.Fatalf("human amount mismatch: %s", got)
	}
}

func TestParseBig(t *testing.T) {
	v, err := ParseBig("-170141183460469231731687303715884105728")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Sign() >= 0 {
		t.Fatalf("sign lost")
	}

	if v, err := ParseBig(""); err != nil || v.Sign() != 0 {
		t.Fatalf("empty string should parse as zero")
	}

	if _, err := ParseBig("0x12"); err == nil {
		t.Fatalf("expected error for non-decimal input")
	}
}
