package model

// SwapRecord is a persisted swap event, keyed by (tx_hash, log_index).
// Sign convention for amounts: positive flows into the pool.
type SwapRecord struct {
	TxHash         string `json:"tx_hash"`
	LogIndex       uint64 `json:"log_index"`
	PoolID         string `json:"pool_id"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Sender         string `json:"sender"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`
	SqrtPriceX96   string `json:"sqrt_price_x96"`
	Liquidity      string `json:"liquidity"`
	Tick           int32  `json:"tick"`
	Fee            uint32 `json:"fee"`
	BlockNumber    uint64 `json:"block_number"`
	BlockTimestamp uint64 `json:"block_timestamp"`
}
