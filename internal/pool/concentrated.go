package pool

import (
	"fmt"
	"math"
)

// ppmScale converts fee values carried in pool metadata (parts per million,
// e.g. 2500 for 0.25%) to fractions.
const ppmScale = 1e-6

// Position tracks one liquidity range and its accounting across a replay.
type Position struct {
	TokenID        uint64
	Owner          string
	TickLower      int32
	TickUpper      int32
	Liquidity      float64
	StartLiquidity float64
	Holdings0      float64
	Holdings1      float64
	StartHoldings0 float64
	StartHoldings1 float64
	FeesAccrued0   float64
	FeesAccrued1   float64
	Collected0     float64
	Collected1     float64
	Active         bool
}

// Concentrated replays concentrated-liquidity pool events and tracks
// per-position reserves and fee income. Holdings are estimates recomputed
// from liquidity and price after each event, so they drift from on-chain
// values by float rounding but stay close enough for profit tracking.
// Not safe for concurrent use.
type Concentrated struct {
	token0      string
	token1      string
	fee         float64
	protocolFee float64
	tickSpacing int32

	sqrtPrice   float64
	tick        int32
	liquidity   float64
	initialized bool

	positions []*Position
	byID      map[uint64]*Position

	totalFees0    float64
	totalFees1    float64
	protocolFees0 float64
	protocolFees1 float64
}

// NewConcentrated builds a pool from its static metadata. feePPM and
// protocolFeePPM are parts-per-million as carried in pool metadata and
// factory settings.
func NewConcentrated(token0, token1 string, feePPM, protocolFeePPM uint32, tickSpacing int32) (*Concentrated, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing must be positive: %d", tickSpacing)
	}
	return &Concentrated{
		token0:      token0,
		token1:      token1,
		fee:         float64(feePPM) * ppmScale,
		protocolFee: float64(protocolFeePPM) * ppmScale,
		tickSpacing: tickSpacing,
		byID:        make(map[uint64]*Position),
	}, nil
}

// Initialize sets the starting price and derives the tick from it.
func (p *Concentrated) Initialize(sqrtPrice float64) error {
	if sqrtPrice <= 0 {
		return fmt.Errorf("sqrt price must be positive: %v", sqrtPrice)
	}
	p.sqrtPrice = sqrtPrice
	p.tick = SqrtPriceToTick(sqrtPrice)
	p.initialized = true
	return nil
}

// InitializeWithTick sets the starting price and cross-checks the
// event-carried tick against the computed one.
func (p *Concentrated) InitializeWithTick(sqrtPrice float64, tick int32) error {
	if err := p.Initialize(sqrtPrice); err != nil {
		return err
	}
	if computed := SqrtPriceToTick(sqrtPrice); computed != tick {
		p.initialized = false
		return fmt.Errorf("%w: event %d, computed %d", ErrTickMismatch, tick, computed)
	}
	p.tick = tick
	return nil
}

// Mint adds liquidity for a position. A known token id increases the
// existing position; a new id opens one.
func (p *Concentrated) Mint(tokenID uint64, owner string, tickLower, tickUpper int32, liquidity, amount0, amount1 float64) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if tickLower >= tickUpper {
		return fmt.Errorf("invalid tick range [%d, %d)", tickLower, tickUpper)
	}

	if pos, ok := p.byID[tokenID]; ok {
		pos.Liquidity += liquidity
		pos.Holdings0 += amount0
		pos.Holdings1 += amount1
		p.refreshInRangeLiquidity()
		return nil
	}

	pos := &Position{
		TokenID:        tokenID,
		Owner:          owner,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		Liquidity:      liquidity,
		StartLiquidity: liquidity,
		Holdings0:      amount0,
		Holdings1:      amount1,
		StartHoldings0: amount0,
		StartHoldings1: amount1,
		Active:         true,
	}
	p.positions = append(p.positions, pos)
	p.byID[tokenID] = pos
	p.refreshInRangeLiquidity()
	return nil
}

// Burn removes liquidity from a position. The event-carried amounts become
// the position's pending holdings (they stay in the pool until collected).
// Dust left by rounding is clamped to zero.
func (p *Concentrated) Burn(tokenID uint64, liquidity, amount0, amount1 float64) error {
	pos, ok := p.byID[tokenID]
	if !ok {
		return fmt.Errorf("%w: burn token id %d", ErrUnknownPosition, tokenID)
	}

	pos.Liquidity -= liquidity
	if pos.Liquidity < liquidityDust {
		pos.Liquidity = 0
	}
	pos.Holdings0 = amount0
	pos.Holdings1 = amount1
	p.refreshInRangeLiquidity()
	return nil
}

// liquidityDust is the residual below which a burned position counts as
// fully closed; matches the rounding slack the replayed events carry.
const liquidityDust = 1e-6

// Collect pays out owed tokens from a position and closes it once nothing
// remains.
func (p *Concentrated) Collect(tokenID uint64, amount0, amount1 float64) error {
	pos, ok := p.byID[tokenID]
	if !ok {
		return fmt.Errorf("%w: collect token id %d", ErrUnknownPosition, tokenID)
	}

	pos.Collected0 += amount0
	pos.Collected1 += amount1

	remaining0 := pos.Holdings0 + pos.FeesAccrued0 - pos.Collected0
	remaining1 := pos.Holdings1 + pos.FeesAccrued1 - pos.Collected1
	if pos.Liquidity == 0 && remaining0+remaining1 <= 0 {
		pos.Active = false
	}

	p.refreshHoldings()
	return nil
}

// Swap applies a swap with the event's signed amounts and commits the
// computed post-swap price, tick, and liquidity.
func (p *Concentrated) Swap(amount0, amount1 float64) error {
	res, err := p.computeSwap(amount0, amount1)
	if err != nil {
		return err
	}
	p.commitSwap(res, res.sqrtPrice, res.tick)
	return nil
}

// SwapWithCheck applies a swap and validates the computed tick against the
// event-carried one. Within tolerance (in hundredths of a tick spacing,
// matching basis points) the event values win, so replay error does not
// compound; beyond it the swap is rejected and the pool left unchanged.
func (p *Concentrated) SwapWithCheck(amount0, amount1, eventSqrtPrice float64, eventTick int32, tolerance float64) error {
	res, err := p.computeSwap(amount0, amount1)
	if err != nil {
		return err
	}
	if diff := math.Abs(float64(res.tick - eventTick)); diff > tolerance*100 {
		return fmt.Errorf("%w: event %d, computed %d", ErrTickMismatch, eventTick, res.tick)
	}
	p.commitSwap(res, eventSqrtPrice, eventTick)
	return nil
}

// swapResult stages a swap so nothing mutates until the walk succeeds.
type swapResult struct {
	sqrtPrice  float64
	tick       int32
	liquidity  float64
	feeSide0   bool
	totalFee   float64
	accruals   map[uint64]float64
}

func (p *Concentrated) computeSwap(amount0, amount1 float64) (*swapResult, error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}

	var zeroForOne bool
	var amountIn, totalFee float64
	switch {
	case amount0 > 0:
		zeroForOne = true
		totalFee = amount0 * p.fee
		amountIn = amount0 - totalFee
	case amount1 > 0:
		zeroForOne = false
		totalFee = amount1 * p.fee
		amountIn = amount1 - totalFee
	default:
		return nil, fmt.Errorf("%w: (%v, %v)", ErrSwapAmounts, amount0, amount1)
	}

	res := &swapResult{
		feeSide0: zeroForOne,
		totalFee: totalFee,
		accruals: make(map[uint64]float64),
	}

	// Clamp the working tick into the span covered by live positions so a
	// stale tick cannot strand the walk outside all liquidity.
	tick := p.clampTick(p.tick)
	cur, lower, upper := TickRange(tick, p.tickSpacing)
	sqrtPrice := p.sqrtPrice
	remaining := amountIn
	liquidity := p.liquidity

	for remaining > 0 {
		var active []*Position
		if zeroForOne {
			active = p.activeIn(cur, true)
		} else {
			active = p.activeIn(cur, false)
		}

		if len(active) == 0 {
			if !p.stepPossible(cur, zeroForOne) {
				// Walked past all live liquidity; the remainder of the
				// event's input cannot be priced and is dropped.
				break
			}
			cur, lower, upper = p.step(cur, lower, upper, zeroForOne)
			sqrtPrice = TickToSqrtPrice(cur)
			continue
		}

		liquidity = 0
		for _, pos := range active {
			liquidity += pos.Liquidity
		}
		if liquidity <= 0 {
			break
		}

		var bound float64
		if zeroForOne {
			bound = TickToSqrtPrice(lower)
		} else {
			bound = TickToSqrtPrice(upper)
		}

		var avail float64
		if zeroForOne {
			avail = Amount0Delta(sqrtPrice, bound, liquidity)
		} else {
			avail = Amount1Delta(sqrtPrice, bound, liquidity)
		}

		if avail > remaining {
			var next float64
			if zeroForOne {
				next = NextSqrtPriceFromAmount0(sqrtPrice, liquidity, remaining)
			} else {
				next = NextSqrtPriceFromAmount1(sqrtPrice, liquidity, remaining)
			}
			p.accrue(res, active, remaining, liquidity)
			sqrtPrice = next
			remaining = 0
			break
		}

		p.accrue(res, active, avail, liquidity)
		remaining -= avail
		cur, lower, upper = p.step(cur, lower, upper, zeroForOne)
		sqrtPrice = TickToSqrtPrice(cur)
	}

	res.sqrtPrice = sqrtPrice
	res.tick = SqrtPriceToTick(sqrtPrice)
	res.liquidity = liquidity
	return res, nil
}

// accrue stages the gross fee for the input consumed in the current range,
// split across active positions by their share of in-range liquidity.
func (p *Concentrated) accrue(res *swapResult, active []*Position, netAmount, liquidity float64) {
	gross := netAmount/(1-p.fee) - netAmount
	perL := gross / liquidity
	for _, pos := range active {
		res.accruals[pos.TokenID] += pos.Liquidity * perL
	}
}

func (p *Concentrated) commitSwap(res *swapResult, sqrtPrice float64, tick int32) {
	for id, amount := range res.accruals {
		pos := p.byID[id]
		if res.feeSide0 {
			pos.FeesAccrued0 += amount
		} else {
			pos.FeesAccrued1 += amount
		}
	}
	if res.feeSide0 {
		p.totalFees0 += res.totalFee
		p.protocolFees0 += res.totalFee * p.protocolFee
	} else {
		p.totalFees1 += res.totalFee
		p.protocolFees1 += res.totalFee * p.protocolFee
	}

	p.sqrtPrice = sqrtPrice
	p.tick = tick
	p.liquidity = res.liquidity
	p.refreshHoldings()
}

// activeIn returns positions whose range covers the tick. The bound that is
// inclusive depends on swap direction, matching how ranges hand over at
// their edges while the price moves.
func (p *Concentrated) activeIn(tick int32, zeroForOne bool) []*Position {
	var active []*Position
	for _, pos := range p.positions {
		if pos.Liquidity <= 0 {
			continue
		}
		var in bool
		if zeroForOne {
			in = pos.TickLower < tick && pos.TickUpper >= tick
		} else {
			in = pos.TickLower <= tick && pos.TickUpper > tick
		}
		if in {
			active = append(active, pos)
		}
	}
	return active
}

func (p *Concentrated) step(cur, lower, upper int32, zeroForOne bool) (int32, int32, int32) {
	if zeroForOne {
		cur = lower
		lower = cur - p.tickSpacing
		return cur, lower, cur + p.tickSpacing
	}
	cur = upper
	upper = cur + p.tickSpacing
	return cur, cur - p.tickSpacing, upper
}

func (p *Concentrated) stepPossible(cur int32, zeroForOne bool) bool {
	low, high, ok := p.liveTickSpan()
	if !ok {
		return false
	}
	if zeroForOne {
		return cur > low
	}
	return cur < high
}

func (p *Concentrated) clampTick(tick int32) int32 {
	low, high, ok := p.liveTickSpan()
	if !ok {
		return tick
	}
	if tick < low {
		return low
	}
	if tick > high {
		return high
	}
	return tick
}

func (p *Concentrated) liveTickSpan() (low, high int32, ok bool) {
	for _, pos := range p.positions {
		if pos.Liquidity <= 0 {
			continue
		}
		if !ok {
			low, high, ok = pos.TickLower, pos.TickUpper, true
			continue
		}
		if pos.TickLower < low {
			low = pos.TickLower
		}
		if pos.TickUpper > high {
			high = pos.TickUpper
		}
	}
	return low, high, ok
}

func (p *Concentrated) refreshInRangeLiquidity() {
	tick := SqrtPriceToTick(p.sqrtPrice)
	var sum float64
	for _, pos := range p.positions {
		if pos.Liquidity > 0 && pos.TickLower <= tick && pos.TickUpper > tick {
			sum += pos.Liquidity
		}
	}
	p.liquidity = sum
}

// refreshHoldings re-estimates what each position's liquidity is worth at
// the current price.
func (p *Concentrated) refreshHoldings() {
	for _, pos := range p.positions {
		pos.Holdings0, pos.Holdings1 = AmountsForLiquidity(
			p.sqrtPrice,
			TickToSqrtPrice(pos.TickLower),
			TickToSqrtPrice(pos.TickUpper),
			pos.Liquidity,
		)
	}
}

// Price returns token1 per token0 at the current sqrt price.
func (p *Concentrated) Price() float64 { return p.sqrtPrice * p.sqrtPrice }

// SqrtPrice returns the current sqrt price.
func (p *Concentrated) SqrtPrice() float64 { return p.sqrtPrice }

// Tick returns the current tick.
func (p *Concentrated) Tick() int32 { return p.tick }

// Liquidity returns the in-range liquidity after the last event.
func (p *Concentrated) Liquidity() float64 { return p.liquidity }

// Tokens returns the pool's token identifiers.
func (p *Concentrated) Tokens() (string, string) { return p.token0, p.token1 }

// TotalFees returns cumulative swap fees collected per token.
func (p *Concentrated) TotalFees() (fee0, fee1 float64) { return p.totalFees0, p.totalFees1 }

// ProtocolFees returns the protocol's share of collected fees per token.
func (p *Concentrated) ProtocolFees() (fee0, fee1 float64) { return p.protocolFees0, p.protocolFees1 }

// Positions returns copies of all positions in creation order.
func (p *Concentrated) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// ActivePositions returns copies of open positions with live liquidity.
func (p *Concentrated) ActivePositions() []Position {
	var out []Position
	for _, pos := range p.positions {
		if pos.Active && pos.Liquidity > 0 {
			out = append(out, *pos)
		}
	}
	return out
}
