package model

// LogMeta carries the chain coordinates shared by every decoded event.
type LogMeta struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	TxHash      string `json:"tx_hash"`
	Timestamp   uint64 `json:"timestamp"`
}

// InitializeEvent is a decoded pool manager Initialize log.
type InitializeEvent struct {
	LogMeta
	PoolID       string `json:"pool_id"`
	Currency0    string `json:"currency0"`
	Currency1    string `json:"currency1"`
	Fee          uint32 `json:"fee"`
	TickSpacing  int32  `json:"tick_spacing"`
	Hooks        string `json:"hooks"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// SwapEvent is a decoded pool manager Swap log.
type SwapEvent struct {
	LogMeta
	PoolID       string `json:"pool_id"`
	Sender       string `json:"sender"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
	Fee          uint32 `json:"fee"`
}

// ModifyLiquidityEvent is a decoded pool manager ModifyLiquidity log.
type ModifyLiquidityEvent struct {
	LogMeta
	PoolID         string `json:"pool_id"`
	Sender         string `json:"sender"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	LiquidityDelta string `json:"liquidity_delta"`
	Salt           string `json:"salt"`
}
