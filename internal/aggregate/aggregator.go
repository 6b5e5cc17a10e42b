package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/bus"
	"github.com/homelanderlovecoding/v4-chart-api/internal/chain"
	"github.com/homelanderlovecoding/v4-chart-api/internal/market"
	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// Store is the persistence surface the aggregator writes through.
// Token and candle updates are single atomic statements.
type Store interface {
	EnsureToken(ctx context.Context, address string) error
	GetToken(ctx context.Context, address string) (model.Token, bool, error)
	PatchTokenMetadata(ctx context.Context, address string, decimals uint8, symbol, name string) error
	ApplySwapToToken(ctx context.Context, address, volumeDelta, volumeUSDDelta, untrackedUSDDelta, feesUSDDelta, tvlDelta, derivedNative string) error
	UpdateTokenTVLUSD(ctx context.Context, address, tvlUSD string) error
	AddWhitelistPool(ctx context.Context, address, poolID string) error
	FoldCandle(ctx context.Context, interval model.Interval, fold model.Candle) (bool, error)
	FinalizeCandles(ctx context.Context, interval model.Interval, cutoff int64) ([]model.Candle, error)
}

// PriceOracle derives USD inputs for candles and token stats.
type PriceOracle interface {
	NativePriceUSD(ctx context.Context) decimal.Decimal
	DerivedNativePerToken(ctx context.Context, token model.Token) decimal.Decimal
}

// MetadataFetcher loads ERC-20 metadata from chain.
type MetadataFetcher interface {
	FetchTokenMetadata(ctx context.Context, token common.Address, logger *zap.Logger) (chain.TokenMetadata, error)
}

// Aggregator folds swaps into per-token cumulative stats and the three
// current candles, and promotes candles on period boundaries. It is the
// sole writer to Token and Candle rows.
type Aggregator struct {
	store  Store
	oracle PriceOracle
	meta   MetadataFetcher
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.RWMutex
	decimals map[string]uint8
}

func New(store Store, priceOracle PriceOracle, meta MetadataFetcher, eventBus *bus.Bus, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:    store,
		oracle:   priceOracle,
		meta:     meta,
		bus:      eventBus,
		logger:   logger,
		decimals: make(map[string]uint8),
	}
}

// ApplySwap folds one persisted swap into both token legs and publishes
// swap.created. Called from the single-threaded event path.
func (a *Aggregator) ApplySwap(ctx context.Context, rec model.SwapRecord) error {
	if err := a.applyLeg(ctx, rec.Token0, rec.Amount0, rec); err != nil {
		return fmt.Errorf("token0 leg: %w", err)
	}
	if err := a.applyLeg(ctx, rec.Token1, rec.Amount1, rec); err != nil {
		return fmt.Errorf("token1 leg: %w", err)
	}

	if a.bus != nil {
		a.bus.PublishSwap(rec)
	}
	return nil
}

func (a *Aggregator) applyLeg(ctx context.Context, address, amount string, rec model.SwapRecord) error {
	token, err := a.ensureTokenWithMetadata(ctx, address)
	if err != nil {
		return err
	}

	signed, err := market.ParseBig(amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	amountAbs := new(big.Int).Abs(signed)

	derived := a.oracle.DerivedNativePerToken(ctx, token)
	nativeUSD := a.oracle.NativePriceUSD(ctx)
	priceUSD := derived.Mul(nativeUSD)

	amountHuman := market.HumanAmount(amountAbs, token.Decimals)
	amountUSD := amountHuman.Mul(priceUSD)
	feesUSD := amountUSD.Mul(decimal.NewFromInt(int64(rec.Fee))).DivRound(decimal.NewFromInt(1_000_000), 24)

	volumeUSDDelta := decimal.Zero
	untrackedUSDDelta := decimal.Zero
	if derived.IsPositive() {
		volumeUSDDelta = amountUSD
	} else {
		untrackedUSDDelta = amountUSD
	}

	if err := a.store.ApplySwapToToken(ctx,
		address,
		amountAbs.String(),
		volumeUSDDelta.String(),
		untrackedUSDDelta.String(),
		feesUSD.String(),
		signed.String(),
		derived.String(),
	); err != nil {
		return fmt.Errorf("apply swap to token: %w", err)
	}

	// Re-read for the post-fold locked amount used by the USD valuation
	// and the candle snapshot fields.
	token, ok, err := a.store.GetToken(ctx, address)
	if err != nil {
		return fmt.Errorf("reload token: %w", err)
	}
	if !ok {
		return fmt.Errorf("token vanished: %s", address)
	}

	tvlRaw, err := market.ParseBig(token.TotalValueLocked)
	if err != nil {
		return fmt.Errorf("token tvl: %w", err)
	}
	tvlUSD := market.HumanAmount(tvlRaw, token.Decimals).Mul(priceUSD)
	if err := a.store.UpdateTokenTVLUSD(ctx, address, tvlUSD.String()); err != nil {
		return fmt.Errorf("update token tvl usd: %w", err)
	}

	for _, interval := range model.Intervals {
		fold := model.Candle{
			TokenAddress:        address,
			BucketStart:         interval.Truncate(rec.BlockTimestamp),
			Status:              model.CandleStatusCurrent,
			Volume:              amountAbs.String(),
			VolumeUSD:           volumeUSDDelta.String(),
			UntrackedVolumeUSD:  untrackedUSDDelta.String(),
			TotalValueLocked:    token.TotalValueLocked,
			TotalValueLockedUSD: tvlUSD.String(),
			PriceUSD:            priceUSD.String(),
			FeesUSD:             feesUSD.String(),
			Open:                priceUSD.String(),
			High:                priceUSD.String(),
			Low:                 priceUSD.String(),
			Close:               priceUSD.String(),
			TxCount:             1,
		}
		applied, err := a.store.FoldCandle(ctx, interval, fold)
		if err != nil {
			return fmt.Errorf("fold %s candle: %w", interval, err)
		}
		if !applied {
			a.logger.Warn("swap targets finalized candle, dropped",
				zap.String("token", address),
				zap.String("interval", string(interval)),
				zap.Int64("bucket", fold.BucketStart),
				zap.String("tx_hash", rec.TxHash),
			)
		}
	}

	return nil
}

// ensureTokenWithMetadata creates the token row if needed and lazily
// patches ERC-20 metadata while the row still holds defaults. Metadata
// fetch failures fall back to defaults and never fail the pipeline.
func (a *Aggregator) ensureTokenWithMetadata(ctx context.Context, address string) (model.Token, error) {
	if err := a.store.EnsureToken(ctx, address); err != nil {
		return model.Token{}, fmt.Errorf("ensure token: %w", err)
	}

	token, ok, err := a.store.GetToken(ctx, address)
	if err != nil {
		return model.Token{}, fmt.Errorf("get token: %w", err)
	}
	if !ok {
		return model.Token{}, fmt.Errorf("token missing after ensure: %s", address)
	}

	if token.Symbol == model.DefaultSymbol && a.meta != nil && common.IsHexAddress(address) {
		meta, err := a.meta.FetchTokenMetadata(ctx, common.HexToAddress(address), a.logger)
		if err != nil {
			a.logger.Warn("token metadata fetch failed, keeping defaults",
				zap.String("token", address), zap.Error(err))
		} else {
			symbol := meta.Symbol
			if symbol == "" {
				symbol = model.DefaultSymbol
			}
			name := meta.Name
			if name == "" {
				name = model.DefaultTokenName
			}
			if err := a.store.PatchTokenMetadata(ctx, address, meta.Decimals, symbol, name); err != nil {
				return model.Token{}, fmt.Errorf("patch token metadata: %w", err)
			}
			token.Decimals = meta.Decimals
			token.Symbol = symbol
			token.Name = name
		}
	}

	a.mu.Lock()
	a.decimals[address] = token.Decimals
	a.mu.Unlock()

	return token, nil
}

// LinkWhitelistPool marks the token as priceable through poolID.
// Called from pool Initialize handling; idempotent.
func (a *Aggregator) LinkWhitelistPool(ctx context.Context, tokenAddress, poolID string) error {
	if err := a.store.AddWhitelistPool(ctx, tokenAddress, poolID); err != nil {
		return fmt.Errorf("add whitelist pool: %w", err)
	}
	return nil
}

// TokenDecimals resolves decimals through the write-through cache:
// cache, then DB, then chain, then the safe default.
func (a *Aggregator) TokenDecimals(ctx context.Context, address string) uint8 {
	a.mu.RLock()
	decimals, ok := a.decimals[address]
	a.mu.RUnlock()
	if ok {
		return decimals
	}

	token, err := a.ensureTokenWithMetadata(ctx, address)
	if err != nil {
		a.logger.Warn("token decimals lookup failed, using default",
			zap.String("token", address), zap.Error(err))
		return model.DefaultDecimals
	}
	return token.Decimals
}

// Finalize promotes every current candle strictly before now's bucket
// and publishes one candle.finalized per promoted row.
func (a *Aggregator) Finalize(ctx context.Context, interval model.Interval, now time.Time) error {
	cutoff := interval.Truncate(uint64(now.Unix()))

	promoted, err := a.store.FinalizeCandles(ctx, interval, cutoff)
	if err != nil {
		return fmt.Errorf("finalize %s candles: %w", interval, err)
	}
	if len(promoted) == 0 {
		return nil
	}

	for _, candle := range promoted {
		if a.bus != nil {
			a.bus.PublishCandle(model.FinalizedCandle{Interval: interval, Candle: candle})
		}
	}

	a.logger.Info("candles finalized",
		zap.String("interval", string(interval)),
		zap.Int("count", len(promoted)),
		zap.Int64("cutoff", cutoff),
	)
	return nil
}
