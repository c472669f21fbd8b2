package engine

import "errors"

// Sentinel errors. Operations wrap these with context via fmt.Errorf;
// callers test with errors.Is. Every failure leaves the engine state
// exactly as it was before the call.
var (
	// validation
	ErrZeroAmount          = errors.New("input amount must be positive")
	ErrInvalidToken        = errors.New("token not whitelisted")
	ErrInvalidExecutionFee = errors.New("execution fee must be less than input amount")
	ErrOrderMismatch       = errors.New("order data does not match stored hash")
	ErrOrderExists         = errors.New("order id already exists")
	ErrZeroAddress         = errors.New("zero address")

	// authorization
	ErrPaused           = errors.New("paused")
	ErrUnauthorized     = errors.New("caller not authorized")
	ErrExecutorMismatch = errors.New("caller is not the order executor")

	// state
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStrategy    = errors.New("no strategy set for token")
	ErrNoExistingStrategy = errors.New("no previous strategy exists")
	ErrSameStrategy       = errors.New("new strategy same as previous")
	ErrNoShares           = errors.New("no shares outstanding")
	ErrInvalidHandler     = errors.New("handler not registered")

	// external
	ErrSlippage = errors.New("handler could not satisfy minimum output")
)
