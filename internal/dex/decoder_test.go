package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func TestDecodeInitialize(t *testing.T) {
	managerABI, err := PoolManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	poolID := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	currency0 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	currency1 := common.HexToAddress("0x2222222222222222222222222222222222222222")
	hooks := common.HexToAddress("0x0000000000000000000000000000000000000000")
	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)

	data, err := managerABI.Events["Initialize"].Inputs.NonIndexed().Pack(
		big.NewInt(3000),
		big.NewInt(60),
		hooks,
		sqrtPrice,
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack initialize: %v", err)
	}

	log := types.Log{
		Topics:      []common.Hash{decoder.topicInitialize, poolID, addressTopic(currency0), addressTopic(currency1)},
		Data:        data,
		BlockNumber: 100,
		Index:       3,
		TxHash:      common.HexToHash("0xdead"),
	}

	decoded, err := decoder.Decode(log, 1704105757)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	event, ok := decoded.(*model.InitializeEvent)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", decoded)
	}

	if event.PoolID != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("pool id mismatch: %s", event.PoolID)
	}
	if event.Currency0 != "0x1111111111111111111111111111111111111111" ||
		event.Currency1 != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("currency mismatch: %+v", event)
	}
	if event.Fee != 3000 || event.TickSpacing != 60 || event.Tick != 0 {
		t.Fatalf("static fields mismatch: %+v", event)
	}
	if event.SqrtPriceX96 != sqrtPrice.String() {
		t.Fatalf("sqrt price mismatch: %s", event.SqrtPriceX96)
	}
	if event.BlockNumber != 100 || event.LogIndex != 3 || event.Timestamp != 1704105757 {
		t.Fatalf("log meta mismatch: %+v", event.LogMeta)
	}
}

func TestDecodeSwap(t *testing.T) {
	managerABI, err := PoolManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	poolID := common.HexToHash("0xbbbb000000000000000000000000000000000000000000000000000000000000")
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")
	amount0, _ := new(big.Int).SetString("1000000000000000000", 10)
	amount1, _ := new(big.Int).SetString("-2000000000000000000", 10)
	liquidity, _ := new(big.Int).SetString("5000000000000000000", 10)
	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)

	data, err := managerABI.Events["Swap"].Inputs.NonIndexed().Pack(
		amount0,
		amount1,
		sqrtPrice,
		liquidity,
		big.NewInt(100),
		big.NewInt(3000),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := types.Log{
		Topics:      []common.Hash{decoder.topicSwap, poolID, addressTopic(sender)},
		Data:        data,
		BlockNumber: 101,
		Index:       7,
	}

	decoded, err := decoder.Decode(log, 1704105760)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	event, ok := decoded.(*model.SwapEvent)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", decoded)
	}

	if event.Amount0 != "1000000000000000000" || event.Amount1 != "-2000000000000000000" {
		t.Fatalf("amounts mismatch: %+v", event)
	}
	if event.Tick != 100 || event.Fee != 3000 {
		t.Fatalf("tick/fee mismatch: %+v", event)
	}
	if event.Liquidity != liquidity.String() {
		t.Fatalf("liquidity mismatch: %s", event.Liquidity)
	}
	if event.Sender != "0x3333333333333333333333333333333333333333" {
		t.Fatalf("sender mismatch: %s", event.Sender)
	}
}

func TestDecodeModifyLiquidity(t *testing.T) {
	managerABI, err := PoolManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	poolID := common.HexToHash("0xcccc000000000000000000000000000000000000000000000000000000000000")
	sender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	liquidityDelta, _ := new(big.Int).SetString("1000000000000000000", 10)
	var salt [32]byte
	salt[31] = 0x7

	data, err := managerABI.Events["ModifyLiquidity"].Inputs.NonIndexed().Pack(
		big.NewInt(-60),
		big.NewInt(60),
		liquidityDelta,
		salt,
	)
	if err != nil {
		t.Fatalf("pack modify liquidity: %v", err)
	}

	log := types.Log{
		Topics:      []common.Hash{decoder.topicModifyLiquidity, poolID, addressTopic(sender)},
		Data:        data,
		BlockNumber: 102,
		Index:       1,
	}

	decoded, err := decoder.Decode(log, 1704105770)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	event, ok := decoded.(*model.ModifyLiquidityEvent)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", decoded)
	}

	if event.TickLower != -60 || event.TickUpper != 60 {
		t.Fatalf("ticks mismatch: %+v", event)
	}
	if event.LiquidityDelta != "1000000000000000000" {
		t.Fatalf("liquidity delta mismatch: %s", event.LiquidityDelta)
	}
	if event.Salt != "0x0000000000000000000000000000000000000000000000000000000000000007" {
		t.Fatalf("salt mismatch: %s", event.Salt)
	}
}

func TestDecodeUnsupportedTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	log := types.Log{Topics: []common.Hash{common.HexToHash("0x1234")}}
	if _, err := decoder.Decode(log, 0); err == nil {
		t.Fatalf("expected error for unsupported topic")
	}

	if _, err := decoder.Decode(types.Log{}, 0); err == nil {
		t.Fatalf("expected error for missing topics")
	}
}

func TestTopic0Filter(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	filter := decoder.Topic0Filter()
	if len(filter) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(filter))
	}
	seen := make(map[common.Hash]struct{}, 3)
	for _, topic := range filter {
		seen[topic] = struct{}{}
	}
	if len(seen) != 3 {
		t.Fatalf("filter topics not distinct")
	}
}
