package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homelanderlovecoding/v4-chart-api/internal/bus"
	"github.com/homelanderlovecoding/v4-chart-api/internal/chain"
	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

const (
	tokenA = "0xaaaa000000000000000000000000000000000001"
	tokenB = "0xbbbb000000000000000000000000000000000002"
	poolID = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type fakeStore struct {
	tokens  map[string]*model.Token
	candles map[model.Interval]map[string]*model.Candle
}

func newFakeStore() *fakeStore {
	candles := make(map[model.Interval]map[string]*model.Candle)
	for _, interval := range model.Intervals {
		candles[interval] = make(map[string]*model.Candle)
	}
	return &fakeStore{
		tokens:  make(map[string]*model.Token),
		candles: candles,
	}
}

func candleKey(address string, bucket int64) string {
	return fmt.Sprintf("%s|%d", address, bucket)
}

func addStr(a, b string) string {
	return decimal.RequireFromString(zeroIfEmpty(a)).Add(decimal.RequireFromString(zeroIfEmpty(b))).String()
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func (f *fakeStore) EnsureToken(_ context.Context, address string) error {
	if _, ok := f.tokens[address]; !ok {
		f.tokens[address] = &model.Token{
			Address:  address,
			Decimals: model.DefaultDecimals,
			Symbol:   model.DefaultSymbol,
			Name:     model.DefaultTokenName,
			Volume:   "0", VolumeUSD: "0", UntrackedVolumeUSD: "0", FeesUSD: "0",
			TotalValueLocked: "0", TotalValueLockedUSD: "0", DerivedNative: "0",
		}
	}
	return nil
}

func (f *fakeStore) GetToken(_ context.Context, address string) (model.Token, bool, error) {
	token, ok := f.tokens[address]
	if !ok {
		return model.Token{}, false, nil
	}
	return *token, true, nil
}

func (f *fakeStore) PatchTokenMetadata(_ context.Context, address string, decimals uint8, symbol, name string) error {
	token, ok := f.tokens[address]
	if !ok || token.Symbol != model.DefaultSymbol {
		return nil
	}
	token.Decimals = decimals
	token.Symbol = symbol
	token.Name = name
	return nil
}

func (f *fakeStore) ApplySwapToToken(_ context.Context, address, volumeDelta, volumeUSDDelta, untrackedUSDDelta, feesUSDDelta, tvlDelta, derivedNative string) error {
	token, ok := f.tokens[address]
	if !ok {
		return fmt.Errorf("token missing: %s", address)
	}
	token.Volume = addStr(token.Volume, volumeDelta)
	token.VolumeUSD = addStr(token.VolumeUSD, volumeUSDDelta)
	token.UntrackedVolumeUSD = addStr(token.UntrackedVolumeUSD, untrackedUSDDelta)
	token.FeesUSD = addStr(token.FeesUSD, feesUSDDelta)
	token.TotalValueLocked = addStr(token.TotalValueLocked, tvlDelta)
	token.DerivedNative = derivedNative
	token.TxCount++
	return nil
}

func (f *fakeStore) UpdateTokenTVLUSD(_ context.Context, address, tvlUSD string) error {
	if token, ok := f.tokens[address]; ok {
		token.TotalValueLockedUSD = tvlUSD
	}
	return nil
}

func (f *fakeStore) AddWhitelistPool(ctx context.Context, address, poolID string) error {
	if err := f.EnsureToken(ctx, address); err != nil {
		return err
	}
	token := f.tokens[address]
	if !token.HasWhitelistPool(poolID) {
		token.WhitelistPools = append(token.WhitelistPools, poolID)
	}
	return nil
}

// FoldCandle mirrors the SQL upsert: merge into a current row, refuse a
// finalized one.
func (f *fakeStore) FoldCandle(_ context.Context, interval model.Interval, fold model.Candle) (bool, error) {
	key := candleKey(fold.TokenAddress, fold.BucketStart)
	existing, ok := f.candles[interval][key]
	if !ok {
		inserted := fold
		inserted.Status = model.CandleStatusCurrent
		f.candles[interval][key] = &inserted
		return true, nil
	}
	if existing.Status == model.CandleStatusFinalized {
		return false, nil
	}

	existing.Volume = addStr(existing.Volume, fold.Volume)
	existing.VolumeUSD = addStr(existing.VolumeUSD, fold.VolumeUSD)
	existing.UntrackedVolumeUSD = addStr(existing.UntrackedVolumeUSD, fold.UntrackedVolumeUSD)
	existing.TotalValueLocked = fold.TotalValueLocked
	existing.TotalValueLockedUSD = fold.TotalValueLockedUSD
	existing.PriceUSD = fold.PriceUSD
	existing.FeesUSD = addStr(existing.FeesUSD, fold.FeesUSD)
	if decimal.RequireFromString(zeroIfEmpty(existing.Open)).IsZero() {
		existing.Open = fold.Open
	}
	if decimal.RequireFromString(zeroIfEmpty(fold.High)).GreaterThan(decimal.RequireFromString(zeroIfEmpty(existing.High))) {
		existing.High = fold.High
	}
	existingLow := decimal.RequireFromString(zeroIfEmpty(existing.Low))
	if existingLow.IsZero() || decimal.RequireFromString(zeroIfEmpty(fold.Low)).LessThan(existingLow) {
		existing.Low = fold.Low
	}
	existing.Close = fold.Close
	existing.TxCount += fold.TxCount
	return true, nil
}

func (f *fakeStore) FinalizeCandles(_ context.Context, interval model.Interval, cutoff int64) ([]model.Candle, error) {
	promoted := make([]model.Candle, 0)
	for _, candle := range f.candles[interval] {
		if candle.Status == model.CandleStatusCurrent && candle.BucketStart < cutoff {
			candle.Status = model.CandleStatusFinalized
			promoted = append(promoted, *candle)
		}
	}
	return promoted, nil
}

type fakeOracle struct {
	derived   map[string]decimal.Decimal
	nativeUSD decimal.Decimal
}

func (f *fakeOracle) NativePriceUSD(context.Context) decimal.Decimal { return f.nativeUSD }

func (f *fakeOracle) DerivedNativePerToken(_ context.Context, token model.Token) decimal.Decimal {
	if d, ok := f.derived[token.Address]; ok {
		return d
	}
	return decimal.Zero
}

type fakeMetadata struct {
	meta map[string]chain.TokenMetadata
	err  error
}

func (f *fakeMetadata) FetchTokenMetadata(_ context.Context, token common.Address, _ *zap.Logger) (chain.TokenMetadata, error) {
	if f.err != nil {
		return chain.TokenMetadata{}, f.err
	}
	meta, ok := f.meta[token.Hex()]
	if !ok {
		return chain.TokenMetadata{}, fmt.Errorf("no metadata")
	}
	return meta, nil
}

func testSwap(ts uint64) model.SwapRecord {
	return model.SwapRecord{
		TxHash:         "0x01",
		LogIndex:       0,
		PoolID:         poolID,
		Token0:         tokenA,
		Token1:         tokenB,
		Sender:         "0x3333333333333333333333333333333333333333",
		Amount0:        "1000000000000000000",
		Amount1:        "-2000000000000000000",
		SqrtPriceX96:   "79228162514264337593543950336",
		Liquidity:      "5000000000000000000",
		Tick:           100,
		Fee:            3000,
		BlockNumber:    100,
		BlockTimestamp: ts,
	}
}

func newTestAggregator(store *fakeStore, priceOracle PriceOracle, eventBus *bus.Bus) *Aggregator {
	return New(store, priceOracle, &fakeMetadata{err: fmt.Errorf("unavailable")}, eventBus, zap.NewNop())
}

func TestApplySwapFoldsBothLegs(t *testing.T) {
	store := newFakeStore()
	priceOracle := &fakeOracle{
		derived:   map[string]decimal.Decimal{tokenA: decimal.NewFromInt(2)},
		nativeUSD: decimal.NewFromInt(10),
	}
	agg := newTestAggregator(store, priceOracle, nil)

	const ts = uint64(1704105757) // 2024-01-01T10:42:37Z
	require.NoError(t, agg.ApplySwap(context.Background(), testSwap(ts)))

	a := store.tokens[tokenA]
	require.Equal(t, "1000000000000000000", a.Volume)
	require.Equal(t, uint64(1), a.TxCount)
	require.Equal(t, "20", a.VolumeUSD) // 1 token * (2 native * 10 USD)
	require.Equal(t, "0.06", a.FeesUSD) // 20 USD * 3000/1e6
	require.Equal(t, "1000000000000000000", a.TotalValueLocked)

	// tokenB has no derived price: notional lands in untracked.
	b := store.tokens[tokenB]
	require.Equal(t, "2000000000000000000", b.Volume)
	require.Equal(t, uint64(1), b.TxCount)
	require.Equal(t, "0", b.VolumeUSD)
	require.Equal(t, "-2000000000000000000", b.TotalValueLocked)

	for _, interval := range model.Intervals {
		candle := store.candles[interval][candleKey(tokenA, interval.Truncate(ts))]
		require.NotNil(t, candle, "missing %s candle", interval)
		require.Equal(t, model.CandleStatusCurrent, candle.Status)
		require.Equal(t, uint64(1), candle.TxCount)
		require.Equal(t, "1000000000000000000", candle.Volume)
		require.Equal(t, "20", candle.Open)
		require.Equal(t, "20", candle.Close)
	}
}

func TestApplySwapUpdatesOHLC(t *testing.T) {
	store := newFakeStore()
	priceOracle := &fakeOracle{
		derived:   map[string]decimal.Decimal{tokenA: decimal.NewFromInt(2)},
		nativeUSD: decimal.NewFromInt(10),
	}
	agg := newTestAggregator(store, priceOracle, nil)

	const ts = uint64(1704105757)
	rec := testSwap(ts)
	require.NoError(t, agg.ApplySwap(context.Background(), rec))

	// Price moves down, same minute.
	priceOracle.derived[tokenA] = decimal.RequireFromString("1.5")
	rec2 := rec
	rec2.LogIndex = 1
	rec2.BlockTimestamp = ts + 10
	require.NoError(t, agg.ApplySwap(context.Background(), rec2))

	candle := store.candles[model.IntervalMinute][candleKey(tokenA, model.IntervalMinute.Truncate(ts))]
	require.Equal(t, uint64(2), candle.TxCount)
	require.Equal(t, "2000000000000000000", candle.Volume)
	require.Equal(t, "20", candle.Open)
	require.Equal(t, "20", candle.High)
	require.Equal(t, "15", candle.Low)
	require.Equal(t, "15", candle.Close)
}

func TestApplySwapPublishesSwapCreated(t *testing.T) {
	store := newFakeStore()
	eventBus := bus.New(zap.NewNop(), 8)
	sub := eventBus.SubscribeSwaps()
	defer sub.Close()

	agg := newTestAggregator(store, &fakeOracle{nativeUSD: decimal.Zero, derived: nil}, eventBus)

	rec := testSwap(1704105757)
	require.NoError(t, agg.ApplySwap(context.Background(), rec))

	got := <-sub.C
	require.Equal(t, rec, got)
}

func TestFinalizePromotesAndPublishesSnapshot(t *testing.T) {
	store := newFakeStore()
	eventBus := bus.New(zap.NewNop(), 8)
	sub := eventBus.SubscribeCandles()
	defer sub.Close()

	priceOracle := &fakeOracle{
		derived:   map[string]decimal.Decimal{tokenA: decimal.NewFromInt(2)},
		nativeUSD: decimal.NewFromInt(10),
	}
	agg := newTestAggregator(store, priceOracle, eventBus)

	const ts = uint64(1704105757)
	require.NoError(t, agg.ApplySwap(context.Background(), testSwap(ts)))

	// T+60s: the minute bucket from ts is strictly in the past.
	now := time.Unix(int64(ts)+60, 0).UTC()
	require.NoError(t, agg.Finalize(context.Background(), model.IntervalMinute, now))

	stored := store.candles[model.IntervalMinute][candleKey(tokenA, model.IntervalMinute.Truncate(ts))]
	require.Equal(t, model.CandleStatusFinalized, stored.Status)

	published := make(map[string]model.Candle)
	for i := 0; i < 2; i++ { // both swap legs produced a minute candle
		fc := <-sub.C
		require.Equal(t, model.IntervalMinute, fc.Interval)
		require.Equal(t, model.CandleStatusFinalized, fc.Candle.Status)
		published[fc.Candle.TokenAddress] = fc.Candle
	}
	require.Equal(t, *stored, published[tokenA])

	// Finalizing again promotes nothing.
	require.NoError(t, agg.Finalize(context.Background(), model.IntervalMinute, now))
	select {
	case fc := <-sub.C:
		t.Fatalf("unexpected second finalization: %+v", fc)
	default:
	}
}

func TestLateSwapAfterFinalizeIsNoOp(t *testing.T) {
	store := newFakeStore()
	priceOracle := &fakeOracle{
		derived:   map[string]decimal.Decimal{tokenA: decimal.NewFromInt(2)},
		nativeUSD: decimal.NewFromInt(10),
	}
	agg := newTestAggregator(store, priceOracle, nil)

	const ts = uint64(1704105757)
	require.NoError(t, agg.ApplySwap(context.Background(), testSwap(ts)))

	now := time.Unix(int64(ts)+60, 0).UTC()
	require.NoError(t, agg.Finalize(context.Background(), model.IntervalMinute, now))

	key := candleKey(tokenA, model.IntervalMinute.Truncate(ts))
	before := *store.candles[model.IntervalMinute][key]

	// A late swap for the closed bucket must not touch the candle.
	late := testSwap(ts + 5)
	late.LogIndex = 9
	require.NoError(t, agg.ApplySwap(context.Background(), late))

	require.Equal(t, before, *store.candles[model.IntervalMinute][key])
	// Cumulative token stats still advance.
	require.Equal(t, uint64(2), store.tokens[tokenA].TxCount)
}

func TestLinkWhitelistPoolIdempotent(t *testing.T) {
	store := newFakeStore()
	agg := newTestAggregator(store, &fakeOracle{nativeUSD: decimal.Zero}, nil)

	require.NoError(t, agg.LinkWhitelistPool(context.Background(), tokenA, poolID))
	require.NoError(t, agg.LinkWhitelistPool(context.Background(), tokenA, poolID))

	require.Equal(t, []string{poolID}, store.tokens[tokenA].WhitelistPools)
}

func TestTokenDecimalsFallsBackToDefault(t *testing.T) {
	store := newFakeStore()
	agg := newTestAggregator(store, &fakeOracle{nativeUSD: decimal.Zero}, nil)

	require.Equal(t, model.DefaultDecimals, agg.TokenDecimals(context.Background(), tokenA))
}

func TestTokenDecimalsFromMetadata(t *testing.T) {
	store := newFakeStore()
	meta := &fakeMetadata{meta: map[string]chain.TokenMetadata{
		common.HexToAddress(tokenA).Hex(): {Decimals: 6, Symbol: "USDC", Name: "USD Coin"},
	}}
	agg := New(store, &fakeOracle{nativeUSD: decimal.Zero}, meta, nil, zap.NewNop())

	require.Equal(t, uint8(6), agg.TokenDecimals(context.Background(), tokenA))
	require.Equal(t, "USDC", store.tokens[tokenA].Symbol)

	// Cached on the second lookup even if the fetcher now fails.
	meta.err = fmt.Errorf("rpc down")
	require.Equal(t, uint8(6), agg.TokenDecimals(context.Background(), tokenA))
}
