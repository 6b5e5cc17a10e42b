package model

import "time"

// SyncState tracks ingest progress for one pool manager.
// LastSyncedBlock is inclusive; resume replays from LastSyncedBlock+1.
type SyncState struct {
	PoolManagerAddress    string    `json:"pool_manager_address"`
	LastSyncedBlock       uint64    `json:"last_synced_block"`
	CurrentBlock          uint64    `json:"current_block"`
	IsInitialSyncComplete bool      `json:"is_initial_sync_complete"`
	LastSyncedAt          time.Time `json:"last_synced_at"`
}
