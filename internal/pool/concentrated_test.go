package pool

import (
	"errors"
	"math"
	"testing"
)

func newCLPool(t *testing.T) *Concentrated {
	t.Helper()
	p, err := NewConcentrated("TOKEN0", "TOKEN1", 3000, 0, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestConcentratedRequiresInitialize(t *testing.T) {
	p := newCLPool(t)
	if err := p.Mint(1, "0xabc", -600, 600, 1e6, 100, 100); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := p.Swap(1000, -900); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeWithTick(t *testing.T) {
	p := newCLPool(t)
	if err := p.InitializeWithTick(TickToSqrtPrice(120), 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tick() != 120 {
		t.Fatalf("expected tick 120, got %d", p.Tick())
	}

	p2 := newCLPool(t)
	if err := p2.InitializeWithTick(TickToSqrtPrice(120), 500); !errors.Is(err, ErrTickMismatch) {
		t.Fatalf("expected ErrTickMismatch, got %v", err)
	}
}

func TestMintTracksInRangeLiquidity(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Mint(1, "0xaaa", -600, 600, 1e6, 100, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Liquidity() != 1e6 {
		t.Fatalf("expected in-range liquidity 1e6, got %v", p.Liquidity())
	}

	// Out-of-range mint does not add to in-range liquidity.
	if err := p.Mint(2, "0xbbb", 1200, 1800, 5e5, 50, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Liquidity() != 1e6 {
		t.Fatalf("expected in-range liquidity unchanged, got %v", p.Liquidity())
	}

	// Minting the same token id increases the existing position.
	if err := p.Mint(1, "0xaaa", -600, 600, 1e6, 100, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Liquidity() != 2e6 {
		t.Fatalf("expected in-range liquidity 2e6, got %v", p.Liquidity())
	}
}

func TestMintRejectsBadRange(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(1, "0xaaa", 600, -600, 1e6, 0, 0); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestSwapSingleRangeAccruesFees(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(1, "0xaaa", -600, 600, 1e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// token1 in, small enough to stay inside the current range.
	if err := p.Swap(-900, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Tick() <= 0 {
		t.Fatalf("token1 input must raise the tick: got %d", p.Tick())
	}

	net := 1000 * (1 - 0.003)
	wantGross := net/(1-0.003) - net
	pos := p.Positions()[0]
	if math.Abs(pos.FeesAccrued1-wantGross) > 1e-9 {
		t.Fatalf("fee accrual mismatch: got %v want %v", pos.FeesAccrued1, wantGross)
	}
	if pos.FeesAccrued0 != 0 {
		t.Fatalf("no token0 fees expected, got %v", pos.FeesAccrued0)
	}

	fee0, fee1 := p.TotalFees()
	if fee0 != 0 || math.Abs(fee1-1000*0.003) > 1e-9 {
		t.Fatalf("pool fee totals mismatch: (%v, %v)", fee0, fee1)
	}
}

func TestSwapSplitsFeesByLiquidityShare(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(1, "0xaaa", -600, 600, 1e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(2, "0xbbb", -600, 600, 3e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Swap(-900, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions := p.Positions()
	if positions[0].FeesAccrued1 <= 0 || positions[1].FeesAccrued1 <= 0 {
		t.Fatalf("both positions should earn fees: %v, %v", positions[0].FeesAccrued1, positions[1].FeesAccrued1)
	}
	ratio := positions[1].FeesAccrued1 / positions[0].FeesAccrued1
	if math.Abs(ratio-3) > 1e-9 {
		t.Fatalf("fees should split 3:1 by liquidity, got ratio %v", ratio)
	}
}

func TestSwapCrossesTicks(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(1, "0xaaa", -6000, 6000, 1e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Enough token1 to push the price through several spacings.
	if err := p.Swap(-1, 20000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tick() < 60 {
		t.Fatalf("expected the swap to cross at least one spacing, got tick %d", p.Tick())
	}
	// The input was fully consumed inside the range, so its gross fee is
	// fully accrued to the only position.
	pos := p.Positions()[0]
	if math.Abs(pos.FeesAccrued1-20000*0.003) > 1e-6 {
		t.Fatalf("fee accrual mismatch: got %v want %v", pos.FeesAccrued1, 20000*0.003)
	}
}

func TestSwapRejectsBadAmounts(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Swap(-10, -20); !errors.Is(err, ErrSwapAmounts) {
		t.Fatalf("expected ErrSwapAmounts, got %v", err)
	}
}

func TestSwapWithCheckRejectsMisalignedTick(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(1, "0xaaa", -600, 600, 1e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := p.SqrtPrice()
	err := p.SwapWithCheck(-900, 1000, TickToSqrtPrice(5000), 5000, 0.01)
	if !errors.Is(err, ErrTickMismatch) {
		t.Fatalf("expected ErrTickMismatch, got %v", err)
	}
	if p.SqrtPrice() != before {
		t.Fatalf("rejected swap must not move the price")
	}
	if p.Positions()[0].FeesAccrued1 != 0 {
		t.Fatalf("rejected swap must not accrue fees")
	}
}

func TestSwapWithCheckAdoptsEventValues(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(1, "0xaaa", -600, 600, 1e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Compute the expected post-swap state, then replay against an event
	// carrying a tick one off but within tolerance.
	shadow := newCLPool(t)
	if err := shadow.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shadow.Mint(1, "0xaaa", -600, 600, 1e6, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shadow.Swap(-900, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eventTick := shadow.Tick() + 1
	eventSqrt := TickToSqrtPrice(eventTick)
	if err := p.SwapWithCheck(-900, 1000, eventSqrt, eventTick, 0.05); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tick() != eventTick {
		t.Fatalf("event tick should win within tolerance: got %d want %d", p.Tick(), eventTick)
	}
	if p.SqrtPrice() != eventSqrt {
		t.Fatalf("event sqrt price should win within tolerance")
	}
}

func TestBurnAndCollectClosePosition(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sqrtPrice := TickToSqrtPrice(0)
	liquidity := LiquidityForAmounts(1000, 1000, sqrtPrice, -600, 600)
	a0, a1 := AmountsForLiquidity(sqrtPrice, TickToSqrtPrice(-600), TickToSqrtPrice(600), liquidity)

	if err := p.Mint(7, "0xccc", -600, 600, liquidity, a0, a1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Burn(7, liquidity, a0, a1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Liquidity() != 0 {
		t.Fatalf("expected zero in-range liquidity after burn, got %v", p.Liquidity())
	}
	if err := p.Collect(7, a0, a1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions := p.Positions()
	if positions[0].Active {
		t.Fatalf("fully collected position should be closed")
	}
	if got := p.ActivePositions(); len(got) != 0 {
		t.Fatalf("expected no active positions, got %d", len(got))
	}
}

func TestBurnClampsResidualToZero(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(TickToSqrtPrice(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Mint(3, "0xddd", -600, 600, 1000, 10, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Burn(3, 1000-1e-9, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Positions()[0].Liquidity; got != 0 {
		t.Fatalf("dust residual should clamp to zero, got %v", got)
	}

	if err := p.Mint(3, "0xddd", -600, 600, 1000, 10, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Burn(3, 1000+1e-9, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Positions()[0].Liquidity; got != 0 {
		t.Fatalf("over-burn should clamp liquidity to zero, got %v", got)
	}
}

func TestBurnUnknownPosition(t *testing.T) {
	p := newCLPool(t)
	if err := p.Initialize(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Burn(99, 1, 0, 0); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected ErrUnknownPosition, got %v", err)
	}
	if err := p.Collect(99, 0, 0); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected ErrUnknownPosition, got %v", err)
	}
}
