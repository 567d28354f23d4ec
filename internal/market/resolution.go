package market

import (
	"time"

	"amm-backend/internal/fixedpoint"
)

// SignerCheck reports whether the invoking party is the expected identity.
type SignerCheck func(expected string) bool

// Resolve settles the market on outcome. Only the oracle authority may
// resolve, and only once.
func (m *Market) Resolve(isSigner SignerCheck, outcome Outcome, at time.Time) error {
	if outcome != OutcomeYes && outcome != OutcomeNo {
		return ErrInvalidOutcome
	}
	if m.Resolved {
		return ErrAlreadyResolved
	}
	if isSigner == nil || !isSigner(m.OracleAuthority) {
		return ErrOracleNotMatched
	}

	m.Resolved = true
	m.IsActive = false
	m.WinningOutcome = &outcome
	m.ResolvedAt = &at
	return nil
}

// Payout returns the share of vault owed for units of side:
// units * vault / outstanding winning units.
func (m *Market) Payout(side Outcome, units, vault uint64) (uint64, error) {
	if !m.Resolved || m.WinningOutcome == nil {
		return 0, ErrMarketNotResolved
	}
	if side != *m.WinningOutcome {
		return 0, ErrNotWinner
	}
	if units == 0 {
		return 0, ErrNoWinnings
	}
	supply := m.Tokens(side)
	if units > supply {
		return 0, ErrInsufficientTokens
	}
	return fixedpoint.MulDiv(units, vault, supply)
}

// Redeem retires units of the winning side after their payout was made.
// Later claimants divide the remaining vault by the remaining supply, so
// claim order does not change anyone's share beyond rounding.
func (m *Market) Redeem(units uint64) error {
	if !m.Resolved || m.WinningOutcome == nil {
		return ErrMarketNotResolved
	}
	side := *m.WinningOutcome
	left, err := fixedpoint.Sub(m.Tokens(side), units)
	if err != nil {
		return ErrInsufficientTokens
	}
	m.setTokens(side, left)
	return nil
}
