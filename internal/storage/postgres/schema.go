package postgres

// Raw on-chain integers are NUMERIC(78,0); USD-derived values NUMERIC(38,18).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		pool_id TEXT PRIMARY KEY,
		currency0 TEXT NOT NULL,
		currency1 TEXT NOT NULL,
		fee BIGINT NOT NULL,
		tick_spacing INTEGER NOT NULL,
		hooks TEXT NOT NULL,
		sqrt_price_x96 NUMERIC(78,0) NOT NULL DEFAULT 0,
		tick INTEGER NOT NULL DEFAULT 0,
		liquidity NUMERIC(78,0) NOT NULL DEFAULT 0,
		total_value_locked_token0 NUMERIC(78,0) NOT NULL DEFAULT 0,
		total_value_locked_token1 NUMERIC(78,0) NOT NULL DEFAULT 0,
		token0_price NUMERIC(60,24) NOT NULL DEFAULT 0,
		token1_price NUMERIC(60,24) NOT NULL DEFAULT 0,
		created_block BIGINT NOT NULL,
		created_timestamp BIGINT NOT NULL,
		created_tx_hash TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS pools_currency0_idx ON pools (currency0)`,
	`CREATE INDEX IF NOT EXISTS pools_currency1_idx ON pools (currency1)`,

	`CREATE TABLE IF NOT EXISTS swap_events (
		tx_hash TEXT NOT NULL,
		log_index BIGINT NOT NULL,
		pool_id TEXT NOT NULL,
		token0 TEXT NOT NULL,
		token1 TEXT NOT NULL,
		sender TEXT NOT NULL,
		amount0 NUMERIC(78,0) NOT NULL,
		amount1 NUMERIC(78,0) NOT NULL,
		sqrt_price_x96 NUMERIC(78,0) NOT NULL,
		liquidity NUMERIC(78,0) NOT NULL,
		tick INTEGER NOT NULL,
		fee BIGINT NOT NULL,
		block_number BIGINT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		PRIMARY KEY (tx_hash, log_index)
	)`,
	`CREATE INDEX IF NOT EXISTS swap_events_pool_idx ON swap_events (pool_id)`,
	`CREATE INDEX IF NOT EXISTS swap_events_ts_idx ON swap_events (block_timestamp)`,

	`CREATE TABLE IF NOT EXISTS tokens (
		address TEXT PRIMARY KEY,
		decimals SMALLINT NOT NULL DEFAULT 18,
		symbol TEXT NOT NULL DEFAULT 'UNKNOWN',
		name TEXT NOT NULL DEFAULT 'Unknown Token',
		volume NUMERIC(78,0) NOT NULL DEFAULT 0,
		volume_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
		untracked_volume_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
		fees_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
		total_value_locked NUMERIC(78,0) NOT NULL DEFAULT 0,
		total_value_locked_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
		derived_native NUMERIC(60,24) NOT NULL DEFAULT 0,
		tx_count BIGINT NOT NULL DEFAULT 0,
		whitelist_pools TEXT[] NOT NULL DEFAULT '{}',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS candles_minute (` + candleColumns + `)`,
	`CREATE TABLE IF NOT EXISTS candles_hour (` + candleColumns + `)`,
	`CREATE TABLE IF NOT EXISTS candles_day (` + candleColumns + `)`,

	`CREATE TABLE IF NOT EXISTS sync_state (
		pool_manager_address TEXT PRIMARY KEY,
		last_synced_block BIGINT NOT NULL DEFAULT 0,
		current_block BIGINT NOT NULL DEFAULT 0,
		is_initial_sync_complete BOOLEAN NOT NULL DEFAULT FALSE,
		last_synced_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const candleColumns = `
	token_address TEXT NOT NULL,
	bucket_start BIGINT NOT NULL,
	status TEXT NOT NULL DEFAULT 'current',
	volume NUMERIC(78,0) NOT NULL DEFAULT 0,
	volume_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
	untracked_volume_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
	total_value_locked NUMERIC(78,0) NOT NULL DEFAULT 0,
	total_value_locked_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
	price_usd NUMERIC(60,24) NOT NULL DEFAULT 0,
	fees_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
	open NUMERIC(60,24) NOT NULL DEFAULT 0,
	high NUMERIC(60,24) NOT NULL DEFAULT 0,
	low NUMERIC(60,24) NOT NULL DEFAULT 0,
	close NUMERIC(60,24) NOT NULL DEFAULT 0,
	tx_count BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (token_address, bucket_start)
`
