// Package amm prices outcome-claim purchases.
//
// Two curves are supported and selected by the market's curve tag:
//
//   - constant product: the trader's currency deepens the opposing pool and
//     the purchased side is re-derived from yes*no = k.
//   - LMSR: the trader names a claim quantity and pays the change in
//     C(yes, no) = b * ln(exp(yes/b) + exp(no/b)).
//
// Both share the same contract, Buy(curve, state, side, intent) -> Fill, and
// are pure functions of their arguments.
package amm

import (
	"github.com/shopspring/decimal"

	"amm-backend/internal/fixedpoint"
	"amm-backend/internal/market"
)

// State is the pricing input taken from a market.
type State struct {
	YesPool        uint64
	NoPool         uint64
	YesTokens      uint64
	NoTokens       uint64
	LiquidityParam uint64
	CurrencyScale  uint64
	ClaimDecimals  uint8
	FeeBps         uint32
}

// StateOf extracts the pricing state of m.
func StateOf(m *market.Market) State {
	return State{
		YesPool:        m.YesPool,
		NoPool:         m.NoPool,
		YesTokens:      m.YesTokens,
		NoTokens:       m.NoTokens,
		LiquidityParam: m.LiquidityParam,
		CurrencyScale:  m.CurrencyScale,
		ClaimDecimals:  m.ClaimDecimals,
		FeeBps:         m.FeeBps,
	}
}

// Fill is the result of pricing one buy.
type Fill struct {
	Side         market.Outcome `json:"side"`
	TokensIssued uint64         `json:"tokens_issued"` // claim base units
	CurrencyOwed uint64         `json:"currency_owed"` // base units, fee included
	Fee          uint64         `json:"fee"`
	YesPool      uint64         `json:"yes_pool"`
	NoPool       uint64         `json:"no_pool"`
}

// Buy prices a purchase of side on the given curve. For the constant
// product curve intent is the currency paid in base units; for LMSR it is
// the number of whole claim units requested.
func Buy(curve market.Curve, s State, side market.Outcome, intent uint64) (Fill, error) {
	if side != market.OutcomeYes && side != market.OutcomeNo {
		return Fill{}, market.ErrInvalidOutcome
	}
	switch curve {
	case market.CurveConstantProduct:
		return buyConstantProduct(s, side, intent)
	case market.CurveLMSR:
		return buyLMSR(s, side, intent)
	default:
		return Fill{}, market.ErrInvalidCurve
	}
}

// Apply books f on m: pools, outstanding claims and collected fees.
func Apply(m *market.Market, f Fill) error {
	var err error
	yesTokens, noTokens := m.YesTokens, m.NoTokens
	if f.Side == market.OutcomeYes {
		yesTokens, err = fixedpoint.Add(yesTokens, f.TokensIssued)
	} else {
		noTokens, err = fixedpoint.Add(noTokens, f.TokensIssued)
	}
	if err != nil {
		return err
	}
	fees, err := fixedpoint.Add(m.FeesCollected, f.Fee)
	if err != nil {
		return err
	}

	m.YesPool, m.NoPool = f.YesPool, f.NoPool
	m.YesTokens, m.NoTokens = yesTokens, noTokens
	m.FeesCollected = fees
	return nil
}

// PriceYes returns the instantaneous YES price as a probability in [0, 1].
func PriceYes(curve market.Curve, s State) (decimal.Decimal, error) {
	switch curve {
	case market.CurveConstantProduct:
		total := decimal.NewFromUint64(s.YesPool).Add(decimal.NewFromUint64(s.NoPool))
		if total.IsZero() {
			return decimal.NewFromFloat(0.5), nil
		}
		// Buying YES deepens NO, so the YES price rises with the NO reserve.
		return decimal.NewFromUint64(s.NoPool).DivRound(total, fixedpoint.Precision), nil
	case market.CurveLMSR:
		return lmsrPriceYes(s)
	default:
		return decimal.Zero, market.ErrInvalidCurve
	}
}
