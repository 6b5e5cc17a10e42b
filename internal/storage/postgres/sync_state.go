package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/homelanderlovecoding/v4-chart-api/internal/model"
)

// GetSyncState loads the sync row for one pool manager.
func (s *Store) GetSyncState(ctx context.Context, poolManagerAddress string) (model.SyncState, bool, error) {
	var state model.SyncState
	var lastSynced, current int64
	row := s.pool.QueryRow(ctx, `
		SELECT pool_manager_address, last_synced_block, current_block, is_initial_sync_complete, last_synced_at
		FROM sync_state WHERE pool_manager_address = $1
	`, poolManagerAddress)
	if err := row.Scan(&state.PoolManagerAddress, &lastSynced, &current, &state.IsInitialSyncComplete, &state.LastSyncedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncState{}, false, nil
		}
		return model.SyncState{}, false, err
	}
	state.LastSyncedBlock = uint64(lastSynced)
	state.CurrentBlock = uint64(current)
	return state, true, nil
}

// SaveSyncState upserts the sync row.
func (s *Store) SaveSyncState(ctx context.Context, state model.SyncState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (pool_manager_address, last_synced_block, current_block, is_initial_sync_complete, last_synced_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (pool_manager_address) DO UPDATE SET
			last_synced_block = EXCLUDED.last_synced_block,
			current_block = EXCLUDED.current_block,
			is_initial_sync_complete = EXCLUDED.is_initial_sync_complete,
			last_synced_at = now()
	`, state.PoolManagerAddress, int64(state.LastSyncedBlock), int64(state.CurrentBlock), state.IsInitialSyncComplete)
	return err
}
