package pool

import "errors"

var (
	// ErrInvalidWeights is returned when weights are empty, non-positive,
	// or do not sum to 1 within WeightTolerance.
	ErrInvalidWeights = errors.New("weights must be positive and sum to 1")
	// ErrInvalidBalances is returned on a balances/weights length mismatch
	// or a negative balance.
	ErrInvalidBalances = errors.New("balances must be non-negative and match weights")
	// ErrInvalidFee is returned when a fee fraction is outside [0,1).
	ErrInvalidFee = errors.New("fee must be in [0,1)")
	// ErrInvalidTokenIndex is returned for an out-of-range or self-referencing token pair.
	ErrInvalidTokenIndex = errors.New("invalid token index")
	// ErrInsufficientLiquidity is returned when a swap would drain the out-token reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrAmountTooLow is returned for a non-positive swap amount.
	ErrAmountTooLow = errors.New("amount is too low")
)

var (
	// ErrNotInitialized is returned when a concentrated pool receives an event before Initialize.
	ErrNotInitialized = errors.New("pool is not initialized")
	// ErrUnknownPosition is returned when a burn or collect cannot be matched to a position.
	ErrUnknownPosition = errors.New("no position matches token id")
	// ErrTickMismatch is returned when an event-carried tick disagrees with the computed one.
	ErrTickMismatch = errors.New("tick does not match computed value")
	// ErrSwapAmounts is returned when neither swap amount is positive.
	ErrSwapAmounts = errors.New("swap needs one positive input amount")
)
