// Package pool implements in-memory AMM pool models: a weighted
// constant-mean pool and a concentrated-liquidity replayer.
package pool

import (
	"fmt"
	"math"
)

const (
	// DefaultFee is the total swap fee fraction applied when none is configured.
	DefaultFee = 0.0003
	// WeightTolerance bounds |sum(weights) - 1| accepted at construction.
	// Summation is compensated, so the tolerance covers genuine input error
	// rather than accumulation order.
	WeightTolerance = 1e-9
	// weightSumSlack pads the tolerance boundary by a few ulps of 1.0.
	// Weights meant to sum to exactly 1 ± WeightTolerance carry rounding of
	// their own, and the boundary is inclusive.
	weightSumSlack = 1e-15
)

// Weighted is a constant-mean pool: reserves of N tokens with fixed
// normalized weights. The invariant Π balances[i]^weights[i] is preserved
// by swaps up to fees. Reads may run concurrently; mutations must be
// serialized by the caller.
type Weighted struct {
	balances     []float64
	weights      []float64
	fee          float64
	factoryFee   float64
	protocolFees []float64
}

// NewWeighted validates and builds a pool. Balances and weights must be
// index-aligned and non-empty, every weight strictly positive with the sum
// equal to 1 within WeightTolerance, every balance non-negative, and both
// fee fractions in [0,1). factoryFee is the share of each collected fee
// diverted to the protocol instead of liquidity providers.
func NewWeighted(balances, weights []float64, fee, factoryFee float64) (*Weighted, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: empty weights", ErrInvalidWeights)
	}
	if len(balances) != len(weights) {
		return nil, fmt.Errorf("%w: %d balances for %d weights", ErrInvalidBalances, len(balances), len(weights))
	}
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: weight[%d] = %v", ErrInvalidWeights, i, w)
		}
	}
	if sum := kahanSum(weights); math.Abs(sum-1)-WeightTolerance > weightSumSlack {
		return nil, fmt.Errorf("%w: sum = %v", ErrInvalidWeights, sum)
	}
	for i, b := range balances {
		if b < 0 {
			return nil, fmt.Errorf("%w: balance[%d] = %v", ErrInvalidBalances, i, b)
		}
	}
	if fee < 0 || fee >= 1 {
		return nil, fmt.Errorf("%w: fee = %v", ErrInvalidFee, fee)
	}
	if factoryFee < 0 || factoryFee >= 1 {
		return nil, fmt.Errorf("%w: factory fee = %v", ErrInvalidFee, factoryFee)
	}

	p := &Weighted{
		balances:     make([]float64, len(balances)),
		weights:      make([]float64, len(weights)),
		fee:          fee,
		factoryFee:   factoryFee,
		protocolFees: make([]float64, len(balances)),
	}
	copy(p.balances, balances)
	copy(p.weights, weights)
	return p, nil
}

// Invariant returns the weighted geometric mean Π balances[i]^weights[i].
// A zero balance with a positive weight yields 0: the pool has no liquidity
// on that token, which is a legal terminal state. A negative balance is a
// post-construction corruption and fails with ErrInvalidBalances.
func (p *Weighted) Invariant() (float64, error) {
	return computeInvariant(p.weights, p.balances)
}

func computeInvariant(weights, balances []float64) (float64, error) {
	invariant := 1.0
	for i, b := range balances {
		if b < 0 {
			return 0, fmt.Errorf("%w: balance[%d] = %v", ErrInvalidBalances, i, b)
		}
		invariant *= math.Pow(b, weights[i])
	}
	return invariant, nil
}

// SpotPrice returns the marginal price of token i in terms of token j,
// (balances[j]/weights[j]) / (balances[i]/weights[i]), derived from the
// invariant's partial derivatives.
func (p *Weighted) SpotPrice(i, j int) (float64, error) {
	if err := p.checkPair(i, j); err != nil {
		return 0, err
	}
	if p.balances[i] == 0 || p.balances[j] == 0 {
		return 0, fmt.Errorf("%w: zero reserve", ErrInsufficientLiquidity)
	}
	return (p.balances[j] / p.weights[j]) / (p.balances[i] / p.weights[i]), nil
}

// SwapGivenIn quotes and applies a swap of amountIn of tokenIn for tokenOut.
// The fee is deducted from the input before pricing, so the invariant over
// (balanceIn + effectiveIn, balanceOut - amountOut) matches the pre-trade
// invariant. On success the in-reserve grows by amountIn minus the protocol
// cut (the LP share of the fee stays in the pool) and the out-reserve
// shrinks by amountOut. On any error the pool is unchanged.
func (p *Weighted) SwapGivenIn(tokenIn, tokenOut int, amountIn float64) (float64, error) {
	if err := p.checkPair(tokenIn, tokenOut); err != nil {
		return 0, err
	}
	if amountIn <= 0 {
		return 0, fmt.Errorf("%w: amount in = %v", ErrAmountTooLow, amountIn)
	}

	balIn, balOut := p.balances[tokenIn], p.balances[tokenOut]
	effectiveIn := amountIn * (1 - p.fee)
	ratio := balIn / (balIn + effectiveIn)
	amountOut := balOut * (1 - math.Pow(ratio, p.weights[tokenIn]/p.weights[tokenOut]))

	if amountOut >= balOut {
		return 0, fmt.Errorf("%w: out %v of %v", ErrInsufficientLiquidity, amountOut, balOut)
	}

	p.applySwap(tokenIn, tokenOut, amountIn, amountOut)
	return amountOut, nil
}

// SwapGivenOut quotes and applies a swap that withdraws exactly amountOut of
// tokenOut, returning the amountIn of tokenIn charged (fee added on the way
// in). Bookkeeping mirrors SwapGivenIn.
func (p *Weighted) SwapGivenOut(tokenIn, tokenOut int, amountOut float64) (float64, error) {
	if err := p.checkPair(tokenIn, tokenOut); err != nil {
		return 0, err
	}
	if amountOut <= 0 {
		return 0, fmt.Errorf("%w: amount out = %v", ErrAmountTooLow, amountOut)
	}

	balIn, balOut := p.balances[tokenIn], p.balances[tokenOut]
	if amountOut >= balOut {
		return 0, fmt.Errorf("%w: out %v of %v", ErrInsufficientLiquidity, amountOut, balOut)
	}

	ratio := balOut / (balOut - amountOut)
	effectiveIn := balIn * (math.Pow(ratio, p.weights[tokenOut]/p.weights[tokenIn]) - 1)
	amountIn := effectiveIn / (1 - p.fee)

	p.applySwap(tokenIn, tokenOut, amountIn, amountOut)
	return amountIn, nil
}

func (p *Weighted) applySwap(tokenIn, tokenOut int, amountIn, amountOut float64) {
	factoryCut := amountIn * p.fee * p.factoryFee
	p.balances[tokenIn] += amountIn - factoryCut
	p.balances[tokenOut] -= amountOut
	p.protocolFees[tokenIn] += factoryCut
}

func (p *Weighted) checkPair(i, j int) error {
	if i < 0 || i >= len(p.balances) || j < 0 || j >= len(p.balances) {
		return fmt.Errorf("%w: (%d, %d) with %d tokens", ErrInvalidTokenIndex, i, j, len(p.balances))
	}
	if i == j {
		return fmt.Errorf("%w: same token on both sides", ErrInvalidTokenIndex)
	}
	return nil
}

// Tokens returns the number of tokens in the pool.
func (p *Weighted) Tokens() int { return len(p.balances) }

// Fee returns the total swap fee fraction.
func (p *Weighted) Fee() float64 { return p.fee }

// FactoryFee returns the protocol share of the swap fee.
func (p *Weighted) FactoryFee() float64 { return p.factoryFee }

// Balances returns a copy of the current reserves.
func (p *Weighted) Balances() []float64 { return copyFloats(p.balances) }

// Weights returns a copy of the normalized weights.
func (p *Weighted) Weights() []float64 { return copyFloats(p.weights) }

// ProtocolFees returns a copy of the per-token fees owed to the factory.
func (p *Weighted) ProtocolFees() []float64 { return copyFloats(p.protocolFees) }

func copyFloats(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

// kahanSum adds values with compensation so the result does not depend on
// accumulation order at the last-bit level.
func kahanSum(values []float64) float64 {
	var sum, comp float64
	for _, v := range values {
		y := v - comp
		t := sum + y
		comp = (t - sum) - y
		sum = t
	}
	return sum
}
