package oracle

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/market"
	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// ZeroAddress is the native-currency sentinel used by the pool manager.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Store is the read surface the oracle needs.
type Store interface {
	GetPool(ctx context.Context, poolID string) (model.Pool, bool, error)
	GetToken(ctx context.Context, address string) (model.Token, bool, error)
}

// Config selects the reference pools for USD derivation.
type Config struct {
	WrappedNativeAddress   string
	StablecoinNativePoolID string
	StablecoinIsToken0     bool
	StablecoinAddresses    []string
	MinimumNativeLocked    decimal.Decimal
}

// Oracle derives token prices in the wrapped-native reference unit via
// whitelisted pools.
type Oracle struct {
	cfg         Config
	store       Store
	logger      *zap.Logger
	stablecoins map[string]struct{}
}

func New(cfg Config, store Store, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	stablecoins := make(map[string]struct{}, len(cfg.StablecoinAddresses))
	for _, addr := range cfg.StablecoinAddresses {
		stablecoins[strings.ToLower(addr)] = struct{}{}
	}
	cfg.WrappedNativeAddress = strings.ToLower(cfg.WrappedNativeAddress)
	return &Oracle{cfg: cfg, store: store, logger: logger, stablecoins: stablecoins}
}

// NativePriceUSD reads the configured stablecoin/wrapped-native pool and
// returns the native price in USD, or zero when unconfigured or missing.
func (o *Oracle) NativePriceUSD(ctx context.Context) decimal.Decimal {
	if o.cfg.StablecoinNativePoolID == "" {
		return decimal.Zero
	}
	pool, ok, err := o.store.GetPool(ctx, o.cfg.StablecoinNativePoolID)
	if err != nil {
		o.logger.Warn("stablecoin pool lookup failed", zap.Error(err))
		return decimal.Zero
	}
	if !ok {
		return decimal.Zero
	}

	priceStr := pool.Token1Price
	if o.cfg.StablecoinIsToken0 {
		priceStr = pool.Token0Price
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		o.logger.Warn("stablecoin pool price malformed", zap.String("price", priceStr))
		return decimal.Zero
	}
	return price
}

// DerivedNativePerToken returns the token's price in the wrapped-native
// unit. The best whitelist pool by native-denominated TVL wins, subject
// to the MinimumNativeLocked threshold. Returns zero when no pool
// qualifies.
func (o *Oracle) DerivedNativePerToken(ctx context.Context, token model.Token) decimal.Decimal {
	addr := strings.ToLower(token.Address)

	if addr == o.cfg.WrappedNativeAddress || addr == ZeroAddress {
		return decimal.NewFromInt(1)
	}

	if _, ok := o.stablecoins[addr]; ok {
		nativeUSD := o.NativePriceUSD(ctx)
		if nativeUSD.IsZero() {
			return decimal.NewFromInt(1)
		}
		return decimal.NewFromInt(1).DivRound(nativeUSD, 24)
	}

	best := decimal.Zero
	priceSoFar := decimal.Zero

	for _, poolID := range token.WhitelistPools {
		pool, ok, err := o.store.GetPool(ctx, poolID)
		if err != nil {
			o.logger.Warn("whitelist pool lookup failed", zap.String("pool_id", poolID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		otherAddr := pool.Currency0
		otherTVL := pool.TVLToken0
		otherPrice := pool.Token0Price
		if pool.Currency0 == addr {
			otherAddr = pool.Currency1
			otherTVL = pool.TVLToken1
			otherPrice = pool.Token1Price
		}

		other, ok, err := o.store.GetToken(ctx, otherAddr)
		if err != nil {
			o.logger.Warn("counterpart token lookup failed", zap.String("token", otherAddr), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		otherDerived, err := decimal.NewFromString(other.DerivedNative)
		if err != nil {
			continue
		}

		tvlRaw, err := market.ParseBig(otherTVL)
		if err != nil || tvlRaw.Sign() < 0 {
			continue
		}
		nativeLocked := market.HumanAmount(tvlRaw, other.Decimals).Mul(otherDerived)

		if nativeLocked.GreaterThan(best) && nativeLocked.GreaterThan(o.cfg.MinimumNativeLocked) {
			price, err := decimal.NewFromString(otherPrice)
			if err != nil {
				continue
			}
			best = nativeLocked
			priceSoFar = price.Mul(otherDerived)
		}
	}

	return priceSoFar
}
