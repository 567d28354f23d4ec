package market

import (
	"errors"

	"amm-backend/internal/fixedpoint"
)

// Deposit adds amount base units of liquidity and returns the LP units to
// mint. The first deposit seeds both pools with half the amount and mints
// LP units 1:1; later deposits mint pro rata to the existing supply.
// The market is left untouched on error.
func (m *Market) Deposit(amount uint64) (uint64, error) {
	if m.Resolved {
		return 0, ErrMarketResolved
	}
	if amount == 0 {
		return 0, ErrZeroTokenMint
	}

	yesPool, noPool := m.YesPool, m.NoPool
	var minted uint64
	if m.TotalLiquidity == 0 {
		yesPool = amount / 2
		noPool = amount / 2
		minted = amount
	} else {
		var err error
		minted, err = fixedpoint.MulDiv(amount, m.TotalLpSupply, m.TotalLiquidity)
		if errors.Is(err, fixedpoint.ErrDivisionByZero) {
			return 0, ErrInvalidCalculation
		}
		if err != nil {
			return 0, err
		}
		if minted == 0 {
			return 0, ErrZeroTokenMint
		}
	}

	liquidity, err := fixedpoint.Add(m.TotalLiquidity, amount)
	if err != nil {
		return 0, err
	}
	supply, err := fixedpoint.Add(m.TotalLpSupply, minted)
	if err != nil {
		return 0, err
	}

	m.YesPool, m.NoPool = yesPool, noPool
	m.TotalLiquidity = liquidity
	m.TotalLpSupply = supply
	return minted, nil
}

// Withdraw burns lpUnits and returns the base units owed to the provider.
func (m *Market) Withdraw(lpUnits uint64) (uint64, error) {
	if m.Resolved {
		return 0, ErrMarketResolved
	}
	if lpUnits == 0 {
		return 0, ErrZeroTokenBurn
	}
	if m.TotalLpSupply == 0 {
		return 0, ErrNoLPTokens
	}
	if lpUnits > m.TotalLpSupply {
		return 0, ErrExcessiveLiquidityRemoval
	}

	amount, err := fixedpoint.MulDiv(lpUnits, m.TotalLiquidity, m.TotalLpSupply)
	if err != nil {
		return 0, err
	}
	liquidity, err := fixedpoint.Sub(m.TotalLiquidity, amount)
	if err != nil {
		return 0, err
	}
	supply, err := fixedpoint.Sub(m.TotalLpSupply, lpUnits)
	if err != nil {
		return 0, err
	}

	m.TotalLiquidity = liquidity
	m.TotalLpSupply = supply
	return amount, nil
}
