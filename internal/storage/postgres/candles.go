package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

func candleTable(interval model.Interval) (string, error) {
	switch interval {
	case model.IntervalMinute:
		return "candles_minute", nil
	case model.IntervalHour:
		return "candles_hour", nil
	case model.IntervalDay:
		return "candles_day", nil
	}
	return "", fmt.Errorf("unknown interval: %s", interval)
}

// FoldCandle atomically merges one swap leg into the current candle for
// the bucket. fold carries deltas: Volume/VolumeUSD/UntrackedVolumeUSD/
// FeesUSD/TxCount are added, OHLC fields hold the trade price, TVL and
// PriceUSD replace the stored values. Returns false when the target row
// is already finalized (late event; caller logs and drops).
func (s *Store) FoldCandle(ctx context.Context, interval model.Interval, fold model.Candle) (bool, error) {
	table, err := candleTable(interval)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO `+table+` (
			token_address, bucket_start, status,
			volume, volume_usd, untracked_volume_usd,
			total_value_locked, total_value_locked_usd, price_usd, fees_usd,
			open, high, low, close, tx_count
		) VALUES ($1,$2,'current',$3::numeric,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$10::numeric,$10::numeric,$10::numeric,$11)
		ON CONFLICT (token_address, bucket_start) DO UPDATE SET
			volume = `+table+`.volume + EXCLUDED.volume,
			volume_usd = `+table+`.volume_usd + EXCLUDED.volume_usd,
			untracked_volume_usd = `+table+`.untracked_volume_usd + EXCLUDED.untracked_volume_usd,
			total_value_locked = EXCLUDED.total_value_locked,
			total_value_locked_usd = EXCLUDED.total_value_locked_usd,
			price_usd = EXCLUDED.price_usd,
			fees_usd = `+table+`.fees_usd + EXCLUDED.fees_usd,
			open = CASE WHEN `+table+`.open = 0 THEN EXCLUDED.open ELSE `+table+`.open END,
			high = GREATEST(`+table+`.high, EXCLUDED.high),
			low = CASE WHEN `+table+`.low = 0 THEN EXCLUDED.low ELSE LEAST(`+table+`.low, EXCLUDED.low) END,
			close = EXCLUDED.close,
			tx_count = `+table+`.tx_count + EXCLUDED.tx_count
		WHERE `+table+`.status = 'current'
	`,
		fold.TokenAddress, fold.BucketStart,
		zeroIfEmpty(fold.Volume), zeroIfEmpty(fold.VolumeUSD), zeroIfEmpty(fold.UntrackedVolumeUSD),
		zeroIfEmpty(fold.TotalValueLocked), zeroIfEmpty(fold.TotalValueLockedUSD), zeroIfEmpty(fold.PriceUSD), zeroIfEmpty(fold.FeesUSD),
		zeroIfEmpty(fold.Close), int64(fold.TxCount),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FinalizeCandles promotes every current candle with bucket_start before
// the cutoff and returns the promoted snapshots.
func (s *Store) FinalizeCandles(ctx context.Context, interval model.Interval, cutoff int64) ([]model.Candle, error) {
	table, err := candleTable(interval)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		UPDATE `+table+` SET status = 'finalized'
		WHERE status = 'current' AND bucket_start < $1
		RETURNING `+candleSelectColumns, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCandles(rows)
}

// ListCandles returns recent candles for one token.
func (s *Store) ListCandles(ctx context.Context, interval model.Interval, tokenAddress string, limit int) ([]model.Candle, error) {
	table, err := candleTable(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+candleSelectColumns+` FROM `+table+`
		WHERE token_address = $1
		ORDER BY bucket_start DESC
		LIMIT $2
	`, tokenAddress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCandles(rows)
}

const candleSelectColumns = `token_address, bucket_start, status,
	volume::text, volume_usd::text, untracked_volume_usd::text,
	total_value_locked::text, total_value_locked_usd::text, price_usd::text, fees_usd::text,
	open::text, high::text, low::text, close::text, tx_count`

func scanCandles(rows pgx.Rows) ([]model.Candle, error) {
	candles := make([]model.Candle, 0)
	for rows.Next() {
		var c model.Candle
		var txCount int64
		if err := rows.Scan(
			&c.TokenAddress, &c.BucketStart, &c.Status,
			&c.Volume, &c.VolumeUSD, &c.UntrackedVolumeUSD,
			&c.TotalValueLocked, &c.TotalValueLockedUSD, &c.PriceUSD, &c.FeesUSD,
			&c.Open, &c.High, &c.Low, &c.Close, &txCount,
		); err != nil {
			return nil, err
		}
		c.TxCount = uint64(txCount)
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
