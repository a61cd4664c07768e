package model

// QuoteRecord reports a read-only weighted-pool quote.
type QuoteRecord struct {
	Pool      string    `json:"pool,omitempty"`
	TokenIn   int       `json:"token_in"`
	TokenOut  int       `json:"token_out"`
	AmountIn  float64   `json:"amount_in"`
	AmountOut float64   `json:"amount_out"`
	SpotPrice float64   `json:"spot_price"`
	Fee       float64   `json:"fee"`
	Invariant float64   `json:"invariant"`
	Balances  []float64 `json:"balances"`
	QuotedAt  string    `json:"quoted_at"`
}

// PoolStateRecord is a weighted-pool snapshot emitted after each applied
// swap during a simulation.
type PoolStateRecord struct {
	Pool         string    `json:"pool,omitempty"`
	Seq          int       `json:"seq"`
	TokenIn      int       `json:"token_in"`
	TokenOut     int       `json:"token_out"`
	AmountIn     float64   `json:"amount_in"`
	AmountOut    float64   `json:"amount_out"`
	Balances     []float64 `json:"balances"`
	ProtocolFees []float64 `json:"protocol_fees"`
	Invariant    float64   `json:"invariant"`
}
