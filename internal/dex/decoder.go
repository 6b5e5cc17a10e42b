package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// Decoder converts raw pool manager logs into typed event records.
type Decoder struct {
	managerABI abi.ABI

	topicInitialize      common.Hash
	topicSwap            common.Hash
	topicModifyLiquidity common.Hash
}

// NewDecoder builds a pool manager event decoder.
func NewDecoder() (*Decoder, error) {
	managerABI, err := PoolManagerABI()
	if err != nil {
		return nil, err
	}

	return &Decoder{
		managerABI:           managerABI,
		topicInitialize:      managerABI.Events["Initialize"].ID,
		topicSwap:            managerABI.Events["Swap"].ID,
		topicModifyLiquidity: managerABI.Events["ModifyLiquidity"].ID,
	}, nil
}

// Topic0Filter returns the OR-filter over all recognized event
// signatures. A single filter keeps historical ordering across kinds.
func (d *Decoder) Topic0Filter() []common.Hash {
	return []common.Hash{d.topicInitialize, d.topicSwap, d.topicModifyLiquidity}
}

// Decode converts one log into a typed event. The returned value is one
// of *model.InitializeEvent, *model.SwapEvent, *model.ModifyLiquidityEvent.
func (d *Decoder) Decode(log types.Log, timestamp uint64) (interface{}, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}

	meta := model.LogMeta{
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		TxHash:      strings.ToLower(log.TxHash.Hex()),
		Timestamp:   timestamp,
	}

	switch log.Topics[0] {
	case d.topicInitialize:
		return d.decodeInitialize(log, meta)
	case d.topicSwap:
		return d.decodeSwap(log, meta)
	case d.topicModifyLiquidity:
		return d.decodeModifyLiquidity(log, meta)
	default:
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
}

func (d *Decoder) decodeInitialize(log types.Log, meta model.LogMeta) (*model.InitializeEvent, error) {
	if len(log.Topics) != 4 {
		return nil, fmt.Errorf("initialize: expected 4 topics, got %d", len(log.Topics))
	}

	values, err := d.managerABI.Events["Initialize"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack initialize: %w", err)
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("initialize: unexpected value count %d", len(values))
	}

	fee, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	tickSpacingInt, err := asBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return nil, fmt.Errorf("tick spacing: %w", err)
	}
	hooks, err := asAddress(values[2])
	if err != nil {
		return nil, fmt.Errorf("hooks: %w", err)
	}
	sqrtPrice, err := asBigInt(values[3])
	if err != nil {
		return nil, fmt.Errorf("sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}

	return &model.InitializeEvent{
		LogMeta:      meta,
		PoolID:       strings.ToLower(log.Topics[1].Hex()),
		Currency0:    lowerAddress(common.BytesToAddress(log.Topics[2].Bytes())),
		Currency1:    lowerAddress(common.BytesToAddress(log.Topics[3].Bytes())),
		Fee:          uint32(fee.Uint64()),
		TickSpacing:  tickSpacing,
		Hooks:        lowerAddress(hooks),
		SqrtPriceX96: sqrtPrice.String(),
		Tick:         tick,
	}, nil
}

func (d *Decoder) decodeSwap(log types.Log, meta model.LogMeta) (*model.SwapEvent, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("swap: expected 3 topics, got %d", len(log.Topics))
	}

	values, err := d.managerABI.Events["Swap"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("swap: unexpected value count %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("amount1: %w", err)
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("sqrt price: %w", err)
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	fee, err := asBigInt(values[5])
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}

	return &model.SwapEvent{
		LogMeta:      meta,
		PoolID:       strings.ToLower(log.Topics[1].Hex()),
		Sender:       lowerAddress(common.BytesToAddress(log.Topics[2].Bytes())),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
		Fee:          uint32(fee.Uint64()),
	}, nil
}

func (d *Decoder) decodeModifyLiquidity(log types.Log, meta model.LogMeta) (*model.ModifyLiquidityEvent, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("modify liquidity: expected 3 topics, got %d", len(log.Topics))
	}

	values, err := d.managerABI.Events["ModifyLiquidity"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack modify liquidity: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("modify liquidity: unexpected value count %d", len(values))
	}

	tickLowerInt, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("tick lower: %w", err)
	}
	tickLower, err := int24FromBig(tickLowerInt)
	if err != nil {
		return nil, fmt.Errorf("tick lower: %w", err)
	}
	tickUpperInt, err := asBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("tick upper: %w", err)
	}
	tickUpper, err := int24FromBig(tickUpperInt)
	if err != nil {
		return nil, fmt.Errorf("tick upper: %w", err)
	}
	liquidityDelta, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("liquidity delta: %w", err)
	}
	salt, err := asBytes32(values[3])
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	return &model.ModifyLiquidityEvent{
		LogMeta:        meta,
		PoolID:         strings.ToLower(log.Topics[1].Hex()),
		Sender:         lowerAddress(common.BytesToAddress(log.Topics[2].Bytes())),
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		LiquidityDelta: liquidityDelta.String(),
		Salt:           strings.ToLower(common.BytesToHash(salt[:]).Hex()),
	}, nil
}

func lowerAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBytes32(value interface{}) ([32]byte, error) {
	switch v := value.(type) {
	case [32]byte:
		return v, nil
	case []byte:
		var out [32]byte
		if len(v) != 32 {
			return out, fmt.Errorf("unexpected bytes length %d", len(v))
		}
		copy(out[:], v)
		return out, nil
	default:
		return [32]byte{}, fmt.Errorf("unsupported bytes32 type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
