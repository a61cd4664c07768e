package model

// SwapRequest is one simulated weighted-pool swap read from JSONL. Exactly
// one of AmountIn and AmountOut should be positive: AmountIn requests an
// out-given-in swap, AmountOut an in-given-out swap.
type SwapRequest struct {
	TokenIn   int     `json:"token_in"`
	TokenOut  int     `json:"token_out"`
	AmountIn  float64 `json:"amount_in,omitempty"`
	AmountOut float64 `json:"amount_out,omitempty"`
}
