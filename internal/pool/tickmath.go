package pool

import (
	"fmt"
	"math"
	"math/big"
)

// q96 scales X96 fixed-point sqrt prices.
var q96 = new(big.Float).SetFloat64(math.Pow(2, 96))

// SqrtPriceFromX96 converts a decimal-string Q64.96 sqrt price to a float.
func SqrtPriceFromX96(value string) (float64, error) {
	x96, ok := new(big.Float).SetString(value)
	if !ok {
		return 0, fmt.Errorf("invalid sqrtPriceX96: %q", value)
	}
	out, _ := new(big.Float).Quo(x96, q96).Float64()
	return out, nil
}

// SqrtPriceToTick returns the tick holding the sqrt price: floor of
// log_sqrt(1.0001)(sqrtPrice). The log is rounded at 1e-6 first so prices
// sitting on a tick boundary do not land one tick low.
func SqrtPriceToTick(sqrtPrice float64) int32 {
	raw := math.Log(sqrtPrice) / math.Log(math.Sqrt(1.0001))
	return int32(math.Floor(math.Round(raw*1e6) / 1e6))
}

// TickToSqrtPrice returns 1.0001^(tick/2).
func TickToSqrtPrice(tick int32) float64 {
	return math.Pow(1.0001, float64(tick)/2)
}

// TickRange returns the tick together with its enclosing spacing-aligned
// lower and upper bounds.
func TickRange(tick, spacing int32) (current, lower, upper int32) {
	lower = floorDiv(tick, spacing) * spacing
	return tick, lower, lower + spacing
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Amount0Delta returns the token0 reserve held by liquidity between two
// sqrt prices: L * (1/sqrtA - 1/sqrtB) with sqrtA <= sqrtB.
func Amount0Delta(sqrtA, sqrtB, liquidity float64) float64 {
	if sqrtA > sqrtB {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	return liquidity * (1/sqrtA - 1/sqrtB)
}

// Amount1Delta returns the token1 reserve held by liquidity between two
// sqrt prices: L * (sqrtB - sqrtA) with sqrtA <= sqrtB.
func Amount1Delta(sqrtA, sqrtB, liquidity float64) float64 {
	if sqrtA > sqrtB {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	return liquidity * (sqrtB - sqrtA)
}

// AmountsForLiquidity returns the token0/token1 reserves a position of the
// given liquidity holds at the current sqrt price, depending on whether the
// price sits below, inside, or above the [sqrtA, sqrtB] range.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity float64) (amount0, amount1 float64) {
	if sqrtA > sqrtB {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	switch {
	case sqrtPrice <= sqrtA:
		amount0 = Amount0Delta(sqrtA, sqrtB, liquidity)
	case sqrtPrice < sqrtB:
		amount0 = Amount0Delta(sqrtPrice, sqrtB, liquidity)
		amount1 = Amount1Delta(sqrtA, sqrtPrice, liquidity)
	default:
		amount1 = Amount1Delta(sqrtA, sqrtB, liquidity)
	}
	return amount0, amount1
}

// NextSqrtPriceFromAmount0 returns the sqrt price after adding amountIn of
// token0 against the given liquidity.
func NextSqrtPriceFromAmount0(sqrtPrice, liquidity, amountIn float64) float64 {
	return 1 / (amountIn/liquidity + 1/sqrtPrice)
}

// NextSqrtPriceFromAmount1 returns the sqrt price after adding amountIn of
// token1 against the given liquidity.
func NextSqrtPriceFromAmount1(sqrtPrice, liquidity, amountIn float64) float64 {
	return sqrtPrice + amountIn/liquidity
}

// LiquidityForAmounts estimates the liquidity minted for the given reserves
// at the current price inside [tickLower, tickUpper]: the binding side wins.
func LiquidityForAmounts(amount0, amount1, sqrtPrice float64, tickLower, tickUpper int32) float64 {
	sqrtA := TickToSqrtPrice(tickLower)
	sqrtB := TickToSqrtPrice(tickUpper)

	l0 := amount0 / (1/sqrtPrice - 1/sqrtB)
	l1 := amount1 / (sqrtPrice - sqrtA)
	return math.Min(l0, l1)
}
