package market

import (
	"errors"

	"amm-backend/internal/fixedpoint"
)

// Arithmetic
var (
	ErrOverflow           = fixedpoint.ErrOverflow
	ErrUnderflow          = fixedpoint.ErrUnderflow
	ErrDivisionByZero     = fixedpoint.ErrDivisionByZero
	ErrInvalidCalculation = fixedpoint.ErrInvalidCalculation
)

// Market creation and lookup
var (
	ErrMarketNotFound  = errors.New("market not found")
	ErrInvalidQuestion = errors.New("question must be 1-100 bytes")
	ErrInvalidDuration = errors.New("invalid market duration")
	ErrInvalidFee      = errors.New("fee must be between 0 and 10000 bps")
	ErrInvalidCurve    = errors.New("invalid market maker curve")
	ErrInvalidOutcome  = errors.New("outcome must be YES or NO")
	ErrUnauthorized    = errors.New("unauthorized action")
)

// Trade preconditions
var (
	ErrNoLiquidity           = errors.New("market has no liquidity, add liquidity before trading")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for this trade")
	ErrAmountTooSmall        = errors.New("trade amount too small, minimum amount not met")
	ErrAmountTooLarge        = errors.New("trade amount too large, exceeds maximum limit")
	ErrInsufficientFunds     = errors.New("insufficient funds")
)

// Lifecycle gating
var (
	ErrMarketNotActive  = errors.New("market is not active, trading is disabled")
	ErrMarketResolved   = errors.New("market is already resolved, cannot trade on settled markets")
	ErrMarketExpired    = errors.New("market has expired, cannot trade after end time")
	ErrMarketNotExpired = errors.New("market has not expired yet, cannot resolve")
)

// Settlement gating
var (
	ErrOracleNotMatched  = errors.New("oracle authority does not match")
	ErrAlreadyResolved   = errors.New("market already resolved")
	ErrMarketNotResolved = errors.New("market not resolved yet, cannot claim winnings")
	ErrNotWinner         = errors.New("claim is not on the winning outcome")
	ErrNoWinnings        = errors.New("no winnings to claim")
	ErrAlreadyClaimed    = errors.New("winnings already claimed")
)

// Claim-unit preconditions
var (
	ErrInsufficientTokens        = errors.New("insufficient token balance for this operation")
	ErrZeroTokenMint             = errors.New("cannot mint zero tokens")
	ErrZeroTokenBurn             = errors.New("cannot burn zero tokens")
	ErrExcessiveLiquidityRemoval = errors.New("cannot remove more liquidity than provided")
	ErrNoLPTokens                = errors.New("no LP tokens to burn")
)
