package pools

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/market"
	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// Store is the pool/swap persistence surface for the state machine.
type Store interface {
	InsertPool(ctx context.Context, pool model.Pool) (bool, error)
	GetPool(ctx context.Context, poolID string) (model.Pool, bool, error)
	ApplySwapToPool(ctx context.Context, poolID, sqrtPriceX96 string, tick int32, liquidity, token0Price, token1Price, tvl0Delta, tvl1Delta string) error
	ApplyLiquidityToPool(ctx context.Context, poolID, liquidityDelta, tvl0Delta, tvl1Delta string) error
	InsertSwap(ctx context.Context, rec model.SwapRecord) (bool, error)
}

// TokenAggregator is the downstream fold the machine hands swaps to.
type TokenAggregator interface {
	ApplySwap(ctx context.Context, rec model.SwapRecord) error
	LinkWhitelistPool(ctx context.Context, tokenAddress, poolID string) error
	TokenDecimals(ctx context.Context, address string) uint8
}

// Machine applies decoded pool manager events to per-pool state.
// Pools move unknown -> active on Initialize; Swap and ModifyLiquidity
// are valid only for active pools and are skipped otherwise.
type Machine struct {
	store      Store
	aggregator TokenAggregator
	whitelist  map[string]struct{}
	logger     *zap.Logger
}

func NewMachine(store Store, aggregator TokenAggregator, whitelistTokens []string, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	whitelist := make(map[string]struct{}, len(whitelistTokens))
	for _, addr := range whitelistTokens {
		whitelist[strings.ToLower(addr)] = struct{}{}
	}
	return &Machine{
		store:      store,
		aggregator: aggregator,
		whitelist:  whitelist,
		logger:     logger,
	}
}

// Apply dispatches one decoded event. Unknown types are an error.
func (m *Machine) Apply(ctx context.Context, event interface{}) error {
	switch ev := event.(type) {
	case *model.InitializeEvent:
		return m.applyInitialize(ctx, ev)
	case *model.SwapEvent:
		return m.applySwap(ctx, ev)
	case *model.ModifyLiquidityEvent:
		return m.applyModifyLiquidity(ctx, ev)
	default:
		return fmt.Errorf("unsupported event type %T", event)
	}
}

func (m *Machine) applyInitialize(ctx context.Context, ev *model.InitializeEvent) error {
	sqrtPrice, err := market.ParseBig(ev.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("sqrt price: %w", err)
	}

	decimals0 := m.aggregator.TokenDecimals(ctx, ev.Currency0)
	decimals1 := m.aggregator.TokenDecimals(ctx, ev.Currency1)
	price0, price1 := market.PricesFromSqrtPriceX96(sqrtPrice, decimals0, decimals1)

	pool := model.Pool{
		PoolID:           ev.PoolID,
		Currency0:        ev.Currency0,
		Currency1:        ev.Currency1,
		Fee:              ev.Fee,
		TickSpacing:      ev.TickSpacing,
		Hooks:            ev.Hooks,
		SqrtPriceX96:     ev.SqrtPriceX96,
		Tick:             ev.Tick,
		Liquidity:        "0",
		Token0Price:      price0.String(),
		Token1Price:      price1.String(),
		CreatedBlock:     ev.BlockNumber,
		CreatedTimestamp: ev.Timestamp,
		CreatedTxHash:    ev.TxHash,
	}

	inserted, err := m.store.InsertPool(ctx, pool)
	if err != nil {
		return fmt.Errorf("insert pool: %w", err)
	}
	if !inserted {
		m.logger.Info("duplicate initialize dropped", zap.String("pool_id", ev.PoolID))
		return nil
	}

	// A whitelisted currency makes the counterpart priceable via this pool.
	if _, ok := m.whitelist[ev.Currency0]; ok {
		if err := m.aggregator.LinkWhitelistPool(ctx, ev.Currency1, ev.PoolID); err != nil {
			return fmt.Errorf("link whitelist pool: %w", err)
		}
	}
	if _, ok := m.whitelist[ev.Currency1]; ok {
		if err := m.aggregator.LinkWhitelistPool(ctx, ev.Currency0, ev.PoolID); err != nil {
			return fmt.Errorf("link whitelist pool: %w", err)
		}
	}

	m.logger.Info("pool initialized",
		zap.String("pool_id", ev.PoolID),
		zap.String("currency0", ev.Currency0),
		zap.String("currency1", ev.Currency1),
		zap.Uint32("fee", ev.Fee),
	)
	return nil
}

func (m *Machine) applySwap(ctx context.Context, ev *model.SwapEvent) error {
	pool, ok, err := m.store.GetPool(ctx, ev.PoolID)
	if err != nil {
		return fmt.Errorf("get pool: %w", err)
	}
	if !ok {
		m.logger.Warn("swap for unknown pool skipped",
			zap.String("pool_id", ev.PoolID),
			zap.String("tx_hash", ev.TxHash),
			zap.Uint64("log_index", ev.LogIndex),
		)
		return nil
	}

	rec := model.SwapRecord{
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		PoolID:         ev.PoolID,
		Token0:         pool.Currency0,
		Token1:         pool.Currency1,
		Sender:         ev.Sender,
		Amount0:        ev.Amount0,
		Amount1:        ev.Amount1,
		SqrtPriceX96:   ev.SqrtPriceX96,
		Liquidity:      ev.Liquidity,
		Tick:           ev.Tick,
		Fee:            ev.Fee,
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.Timestamp,
	}

	inserted, err := m.store.InsertSwap(ctx, rec)
	if err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	if !inserted {
		m.logger.Info("duplicate swap dropped",
			zap.String("tx_hash", ev.TxHash), zap.Uint64("log_index", ev.LogIndex))
		return nil
	}

	sqrtPrice, err := market.ParseBig(ev.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("sqrt price: %w", err)
	}
	decimals0 := m.aggregator.TokenDecimals(ctx, pool.Currency0)
	decimals1 := m.aggregator.TokenDecimals(ctx, pool.Currency1)
	price0, price1 := market.PricesFromSqrtPriceX96(sqrtPrice, decimals0, decimals1)

	if err := m.store.ApplySwapToPool(ctx,
		ev.PoolID, ev.SqrtPriceX96, ev.Tick, ev.Liquidity,
		price0.String(), price1.String(),
		ev.Amount0, ev.Amount1,
	); err != nil {
		return fmt.Errorf("apply swap to pool: %w", err)
	}

	if err := m.aggregator.ApplySwap(ctx, rec); err != nil {
		return fmt.Errorf("aggregate swap: %w", err)
	}
	return nil
}

func (m *Machine) applyModifyLiquidity(ctx context.Context, ev *model.ModifyLiquidityEvent) error {
	pool, ok, err := m.store.GetPool(ctx, ev.PoolID)
	if err != nil {
		return fmt.Errorf("get pool: %w", err)
	}
	if !ok {
		m.logger.Warn("modify liquidity for unknown pool skipped",
			zap.String("pool_id", ev.PoolID),
			zap.String("tx_hash", ev.TxHash),
			zap.Uint64("log_index", ev.LogIndex),
		)
		return nil
	}

	liquidityDelta, err := market.ParseBig(ev.LiquidityDelta)
	if err != nil {
		return fmt.Errorf("liquidity delta: %w", err)
	}

	sqrtLower, err := market.SqrtRatioAtTick(ev.TickLower)
	if err != nil {
		return fmt.Errorf("tick lower: %w", err)
	}
	sqrtUpper, err := market.SqrtRatioAtTick(ev.TickUpper)
	if err != nil {
		return fmt.Errorf("tick upper: %w", err)
	}
	sqrtPrice, err := market.ParseBig(pool.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("pool sqrt price: %w", err)
	}

	amount0, amount1, err := market.LiquidityAmounts(sqrtPrice, sqrtLower, sqrtUpper, new(big.Int).Abs(liquidityDelta))
	if err != nil {
		return fmt.Errorf("liquidity amounts: %w", err)
	}
	if liquidityDelta.Sign() < 0 {
		amount0.Neg(amount0)
		amount1.Neg(amount1)
	}

	if err := m.store.ApplyLiquidityToPool(ctx, ev.PoolID, liquidityDelta.String(), amount0.String(), amount1.String()); err != nil {
		return fmt.Errorf("apply liquidity to pool: %w", err)
	}
	return nil
}
