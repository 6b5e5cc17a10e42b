package postgres

import (
	"context"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// InsertSwap persists a swap record. Returns false when the
// (tx_hash, log_index) pair already exists — the expected dedup path.
func (s *Store) InsertSwap(ctx context.Context, rec model.SwapRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO swap_events (
			tx_hash, log_index, pool_id, token0, token1, sender,
			amount0, amount1, sqrt_price_x96, liquidity, tick, fee,
			block_number, block_timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11,$12,$13,$14)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		rec.TxHash, int64(rec.LogIndex), rec.PoolID, rec.Token0, rec.Token1, rec.Sender,
		rec.Amount0, rec.Amount1, rec.SqrtPriceX96, rec.Liquidity, rec.Tick, int64(rec.Fee),
		int64(rec.BlockNumber), int64(rec.BlockTimestamp),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListSwapsByPool returns recent swaps for one pool.
func (s *Store) ListSwapsByPool(ctx context.Context, poolID string, limit int) ([]model.SwapRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash, log_index, pool_id, token0, token1, sender,
			amount0::text, amount1::text, sqrt_price_x96::text, liquidity::text, tick, fee,
			block_number, block_timestamp
		FROM swap_events
		WHERE pool_id = $1
		ORDER BY block_number DESC, log_index DESC
		LIMIT $2
	`, poolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	swaps := make([]model.SwapRecord, 0, limit)
	for rows.Next() {
		var rec model.SwapRecord
		var logIndex, fee, blockNumber, blockTimestamp int64
		if err := rows.Scan(
			&rec.TxHash, &logIndex, &rec.PoolID, &rec.Token0, &rec.Token1, &rec.Sender,
			&rec.Amount0, &rec.Amount1, &rec.SqrtPriceX96, &rec.Liquidity, &rec.Tick, &fee,
			&blockNumber, &blockTimestamp,
		); err != nil {
			return nil, err
		}
		rec.LogIndex = uint64(logIndex)
		rec.Fee = uint32(fee)
		rec.BlockNumber = uint64(blockNumber)
		rec.BlockTimestamp = uint64(blockTimestamp)
		swaps = append(swaps, rec)
	}
	return swaps, rows.Err()
}
