package amm

import (
	"amm-backend/internal/fixedpoint"
	"amm-backend/internal/market"
)

func buyConstantProduct(s State, side market.Outcome, amountIn uint64) (Fill, error) {
	if s.YesPool == 0 || s.NoPool == 0 {
		return Fill{}, market.ErrNoLiquidity
	}
	if amountIn == 0 {
		return Fill{}, market.ErrAmountTooSmall
	}

	fee, err := fixedpoint.Bps(amountIn, s.FeeBps)
	if err != nil {
		return Fill{}, err
	}
	net, err := fixedpoint.Sub(amountIn, fee)
	if err != nil || net == 0 {
		return Fill{}, market.ErrAmountTooSmall
	}

	product := fixedpoint.Product(s.YesPool, s.NoPool)

	same, opposing := s.YesPool, s.NoPool
	if side == market.OutcomeNo {
		same, opposing = s.NoPool, s.YesPool
	}

	newOpposing, err := fixedpoint.Add(opposing, net)
	if err != nil {
		return Fill{}, err
	}
	// Truncating division keeps k' >= k: tokens out never exceed the
	// exact real-valued amount.
	newSame, err := fixedpoint.Quo(product, newOpposing)
	if err != nil {
		return Fill{}, err
	}
	if newSame == 0 {
		return Fill{}, market.ErrInsufficientLiquidity
	}
	tokensOut, err := fixedpoint.Sub(same, newSame)
	if err != nil {
		return Fill{}, market.ErrInvalidCalculation
	}
	if tokensOut == 0 {
		return Fill{}, market.ErrAmountTooSmall
	}

	f := Fill{
		Side:         side,
		TokensIssued: tokensOut,
		CurrencyOwed: amountIn,
		Fee:          fee,
	}
	if side == market.OutcomeYes {
		f.YesPool, f.NoPool = newSame, newOpposing
	} else {
		f.YesPool, f.NoPool = newOpposing, newSame
	}
	return f, nil
}
