package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

const poolSelectColumns = `pool_id, currency0, currency1, fee, tick_spacing, hooks,
	sqrt_price_x96::text, tick, liquidity::text,
	total_value_locked_token0::text, total_value_locked_token1::text,
	token0_price::text, token1_price::text,
	created_block, created_timestamp, created_tx_hash`

// InsertPool creates the pool row. Returns false when the pool already
// exists (duplicate Initialize).
func (s *Store) InsertPool(ctx context.Context, pool model.Pool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pools (
			pool_id, currency0, currency1, fee, tick_spacing, hooks,
			sqrt_price_x96, tick, liquidity,
			token0_price, token1_price,
			created_block, created_timestamp, created_tx_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9::numeric,$10::numeric,$11::numeric,$12,$13,$14)
		ON CONFLICT (pool_id) DO NOTHING
	`,
		pool.PoolID, pool.Currency0, pool.Currency1, int64(pool.Fee), pool.TickSpacing, pool.Hooks,
		pool.SqrtPriceX96, pool.Tick, zeroIfEmpty(pool.Liquidity),
		zeroIfEmpty(pool.Token0Price), zeroIfEmpty(pool.Token1Price),
		int64(pool.CreatedBlock), int64(pool.CreatedTimestamp), pool.CreatedTxHash,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetPool loads one pool row.
func (s *Store) GetPool(ctx context.Context, poolID string) (model.Pool, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolSelectColumns+` FROM pools WHERE pool_id = $1`, poolID)
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, err
	}
	return pool, true, nil
}

// ApplySwapToPool updates price state and adds the signed TVL deltas.
func (s *Store) ApplySwapToPool(ctx context.Context, poolID, sqrtPriceX96 string, tick int32, liquidity, token0Price, token1Price, tvl0Delta, tvl1Delta string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pools SET
			sqrt_price_x96 = $2::numeric,
			tick = $3,
			liquidity = $4::numeric,
			token0_price = $5::numeric,
			token1_price = $6::numeric,
			total_value_locked_token0 = total_value_locked_token0 + $7::numeric,
			total_value_locked_token1 = total_value_locked_token1 + $8::numeric,
			updated_at = now()
		WHERE pool_id = $1
	`, poolID, sqrtPriceX96, tick, liquidity, token0Price, token1Price, tvl0Delta, tvl1Delta)
	return err
}

// ApplyLiquidityToPool adds the signed liquidity and TVL deltas.
func (s *Store) ApplyLiquidityToPool(ctx context.Context, poolID, liquidityDelta, tvl0Delta, tvl1Delta string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pools SET
			liquidity = liquidity + $2::numeric,
			total_value_locked_token0 = total_value_locked_token0 + $3::numeric,
			total_value_locked_token1 = total_value_locked_token1 + $4::numeric,
			updated_at = now()
		WHERE pool_id = $1
	`, poolID, liquidityDelta, tvl0Delta, tvl1Delta)
	return err
}

// ListPools returns pool rows ordered by creation block.
func (s *Store) ListPools(ctx context.Context, limit int) ([]model.Pool, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT `+poolSelectColumns+` FROM pools ORDER BY created_block DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pools := make([]model.Pool, 0, limit)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var pool model.Pool
	var fee, createdBlock, createdTimestamp int64
	err := row.Scan(
		&pool.PoolID, &pool.Currency0, &pool.Currency1, &fee, &pool.TickSpacing, &pool.Hooks,
		&pool.SqrtPriceX96, &pool.Tick, &pool.Liquidity,
		&pool.TVLToken0, &pool.TVLToken1,
		&pool.Token0Price, &pool.Token1Price,
		&createdBlock, &createdTimestamp, &pool.CreatedTxHash,
	)
	if err != nil {
		return model.Pool{}, err
	}
	pool.Fee = uint32(fee)
	pool.CreatedBlock = uint64(createdBlock)
	pool.CreatedTimestamp = uint64(createdTimestamp)
	return pool, nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
