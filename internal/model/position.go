package model

// PositionRecord is the replay output for one liquidity position: holdings
// and fee income tracked across the replayed events, plus a PnL estimate
// against the position's opening deposit.
type PositionRecord struct {
	ChainID      uint64  `json:"chain_id"`
	PoolAddress  string  `json:"pool_address"`
	TokenID      uint64  `json:"token_id"`
	Owner        string  `json:"owner"`
	TickLower    int32   `json:"tick_lower"`
	TickUpper    int32   `json:"tick_upper"`
	Liquidity    float64 `json:"liquidity"`
	Holdings0    float64 `json:"holdings0"`
	Holdings1    float64 `json:"holdings1"`
	FeesAccrued0 float64 `json:"fees_accrued0"`
	FeesAccrued1 float64 `json:"fees_accrued1"`
	Collected0   float64 `json:"collected0"`
	Collected1   float64 `json:"collected1"`
	PnL0         float64 `json:"pnl0"`
	PnL1         float64 `json:"pnl1"`
	Active       bool    `json:"active"`
}
