package model

// Pool is the materialized state of one pool under the pool manager.
// Big values (sqrt price, liquidity, TVL) are decimal strings.
type Pool struct {
	PoolID           string `json:"pool_id"`
	Currency0        string `json:"currency0"`
	Currency1        string `json:"currency1"`
	Fee              uint32 `json:"fee"`
	TickSpacing      int32  `json:"tick_spacing"`
	Hooks            string `json:"hooks"`
	SqrtPriceX96     string `json:"sqrt_price_x96"`
	Tick             int32  `json:"tick"`
	Liquidity        string `json:"liquidity"`
	TVLToken0        string `json:"total_value_locked_token0"`
	TVLToken1        string `json:"total_value_locked_token1"`
	Token0Price      string `json:"token0_price"`
	Token1Price      string `json:"token1_price"`
	CreatedBlock     uint64 `json:"created_block"`
	CreatedTimestamp uint64 `json:"created_timestamp"`
	CreatedTxHash    string `json:"created_tx_hash"`
}
