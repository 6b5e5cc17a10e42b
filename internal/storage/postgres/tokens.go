package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

const tokenSelectColumns = `address, decimals, symbol, name,
	volume::text, volume_usd::text, untracked_volume_usd::text, fees_usd::text,
	total_value_locked::text, total_value_locked_usd::text,
	derived_native::text, tx_count, whitelist_pools`

// EnsureToken inserts a token row with defaults if absent.
func (s *Store) EnsureToken(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (address) VALUES ($1)
		ON CONFLICT (address) DO NOTHING
	`, address)
	return err
}

// GetToken loads one token row.
func (s *Store) GetToken(ctx context.Context, address string) (model.Token, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tokenSelectColumns+` FROM tokens WHERE address = $1`, address)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, false, nil
		}
		return model.Token{}, false, err
	}
	return token, true, nil
}

// PatchTokenMetadata fills in fetched ERC-20 metadata where the row
// still carries defaults.
func (s *Store) PatchTokenMetadata(ctx context.Context, address string, decimals uint8, symbol, name string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET
			decimals = $2,
			symbol = $3,
			name = $4,
			updated_at = now()
		WHERE address = $1 AND symbol = $5
	`, address, int16(decimals), symbol, name, model.DefaultSymbol)
	return err
}

// ApplySwapToToken folds one swap leg into the cumulative token stats.
// All deltas are decimal strings; derivedNative replaces the stored value.
func (s *Store) ApplySwapToToken(ctx context.Context, address, volumeDelta, volumeUSDDelta, untrackedUSDDelta, feesUSDDelta, tvlDelta, derivedNative string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET
			volume = volume + $2::numeric,
			volume_usd = volume_usd + $3::numeric,
			untracked_volume_usd = untracked_volume_usd + $4::numeric,
			fees_usd = fees_usd + $5::numeric,
			total_value_locked = total_value_locked + $6::numeric,
			derived_native = $7::numeric,
			tx_count = tx_count + 1,
			updated_at = now()
		WHERE address = $1
	`, address, volumeDelta, volumeUSDDelta, untrackedUSDDelta, feesUSDDelta, tvlDelta, derivedNative)
	return err
}

// UpdateTokenTVLUSD refreshes the USD valuation of the locked amount.
func (s *Store) UpdateTokenTVLUSD(ctx context.Context, address, tvlUSD string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET total_value_locked_usd = $2::numeric, updated_at = now()
		WHERE address = $1
	`, address, tvlUSD)
	return err
}

// AddWhitelistPool links a pool to the token's whitelist set. The array
// update is idempotent.
func (s *Store) AddWhitelistPool(ctx context.Context, address, poolID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (address, whitelist_pools) VALUES ($1, ARRAY[$2])
		ON CONFLICT (address) DO UPDATE SET
			whitelist_pools = (
				CASE WHEN $2 = ANY (tokens.whitelist_pools)
					THEN tokens.whitelist_pools
					ELSE array_append(tokens.whitelist_pools, $2)
				END
			),
			updated_at = now()
	`, address, poolID)
	return err
}

func scanToken(row pgx.Row) (model.Token, error) {
	var token model.Token
	var decimals int16
	var txCount int64
	err := row.Scan(
		&token.Address, &decimals, &token.Symbol, &token.Name,
		&token.Volume, &token.VolumeUSD, &token.UntrackedVolumeUSD, &token.FeesUSD,
		&token.TotalValueLocked, &token.TotalValueLockedUSD,
		&token.DerivedNative, &txCount, &token.WhitelistPools,
	)
	if err != nil {
		return model.Token{}, err
	}
	token.Decimals = uint8(decimals)
	token.TxCount = uint64(txCount)
	return token, nil
}
