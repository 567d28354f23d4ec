package amm

import (
	"fmt"

	"github.com/shopspring/decimal"

	"amm-backend/internal/fixedpoint"
	"amm-backend/internal/market"
)

// LMSRCost evaluates C(yes, no) = b * ln(exp(yes/b) + exp(no/b)) in whole
// units. It is computed as m + b*ln(exp((yes-m)/b) + exp((no-m)/b)) with
// m = max(yes, no) so the exponentials never exceed 1.
func LMSRCost(b, yes, no decimal.Decimal) (decimal.Decimal, error) {
	if !b.IsPositive() {
		return decimal.Zero, fixedpoint.ErrDivisionByZero
	}
	// Domain of the unshifted exponentials.
	if yes.DivRound(b, fixedpoint.Precision).GreaterThan(fixedpoint.MaxExpArg) ||
		no.DivRound(b, fixedpoint.Precision).GreaterThan(fixedpoint.MaxExpArg) {
		return decimal.Zero, fmt.Errorf("lmsr cost: %w", fixedpoint.ErrOverflow)
	}

	m := decimal.Max(yes, no)
	ey, err := fixedpoint.Exp(yes.Sub(m).DivRound(b, fixedpoint.Precision))
	if err != nil {
		return decimal.Zero, err
	}
	en, err := fixedpoint.Exp(no.Sub(m).DivRound(b, fixedpoint.Precision))
	if err != nil {
		return decimal.Zero, err
	}
	ln, err := fixedpoint.Ln(ey.Add(en))
	if err != nil {
		return decimal.Zero, err
	}
	return m.Add(b.Mul(ln)), nil
}

// LMSRMaxLoss is the operator's worst-case loss, b * ln 2, in whole units.
func LMSRMaxLoss(b uint64) (decimal.Decimal, error) {
	ln2, err := fixedpoint.Ln(decimal.NewFromInt(2))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromUint64(b).Mul(ln2), nil
}

func buyLMSR(s State, side market.Outcome, tokensWhole uint64) (Fill, error) {
	if s.LiquidityParam == 0 {
		return Fill{}, market.ErrNoLiquidity
	}
	if tokensWhole == 0 {
		return Fill{}, market.ErrAmountTooSmall
	}

	claimScale, err := fixedpoint.Pow10(s.ClaimDecimals)
	if err != nil {
		return Fill{}, err
	}
	delta, err := fixedpoint.ToBaseUnits(tokensWhole, claimScale)
	if err != nil {
		return Fill{}, err
	}

	yesAfter, noAfter := s.YesTokens, s.NoTokens
	if side == market.OutcomeYes {
		yesAfter, err = fixedpoint.Add(yesAfter, delta)
	} else {
		noAfter, err = fixedpoint.Add(noAfter, delta)
	}
	if err != nil {
		return Fill{}, err
	}

	cost, err := lmsrCostDelta(s, claimScale, yesAfter, noAfter)
	if err != nil {
		return Fill{}, err
	}

	fee, err := fixedpoint.Bps(cost, s.FeeBps)
	if err != nil {
		return Fill{}, err
	}
	owed, err := fixedpoint.Add(cost, fee)
	if err != nil {
		return Fill{}, err
	}

	return Fill{
		Side:         side,
		TokensIssued: delta,
		CurrencyOwed: owed,
		Fee:          fee,
		YesPool:      s.YesPool,
		NoPool:       s.NoPool,
	}, nil
}

// lmsrCostDelta returns round(C(after) - C(before)) in currency base units.
func lmsrCostDelta(s State, claimScale, yesAfter, noAfter uint64) (uint64, error) {
	b := decimal.NewFromUint64(s.LiquidityParam)

	yesBefore, err := fixedpoint.Scaled(s.YesTokens, claimScale)
	if err != nil {
		return 0, err
	}
	noBefore, err := fixedpoint.Scaled(s.NoTokens, claimScale)
	if err != nil {
		return 0, err
	}
	yesNext, err := fixedpoint.Scaled(yesAfter, claimScale)
	if err != nil {
		return 0, err
	}
	noNext, err := fixedpoint.Scaled(noAfter, claimScale)
	if err != nil {
		return 0, err
	}

	before, err := LMSRCost(b, yesBefore, noBefore)
	if err != nil {
		return 0, err
	}
	after, err := LMSRCost(b, yesNext, noNext)
	if err != nil {
		return 0, err
	}

	diff := after.Sub(before)
	if diff.IsNegative() {
		return 0, fixedpoint.ErrInvalidCalculation
	}
	return fixedpoint.ToUint64(diff.Mul(decimal.NewFromUint64(s.CurrencyScale)))
}

func lmsrPriceYes(s State) (decimal.Decimal, error) {
	if s.LiquidityParam == 0 {
		return decimal.Zero, market.ErrNoLiquidity
	}
	claimScale, err := fixedpoint.Pow10(s.ClaimDecimals)
	if err != nil {
		return decimal.Zero, err
	}
	yes, err := fixedpoint.Scaled(s.YesTokens, claimScale)
	if err != nil {
		return decimal.Zero, err
	}
	no, err := fixedpoint.Scaled(s.NoTokens, claimScale)
	if err != nil {
		return decimal.Zero, err
	}

	// Softmax with the larger quantity factored out.
	b := decimal.NewFromUint64(s.LiquidityParam)
	m := decimal.Max(yes, no)
	ey, err := fixedpoint.Exp(yes.Sub(m).DivRound(b, fixedpoint.Precision))
	if err != nil {
		return decimal.Zero, err
	}
	en, err := fixedpoint.Exp(no.Sub(m).DivRound(b, fixedpoint.Precision))
	if err != nil {
		return decimal.Zero, err
	}
	return ey.DivRound(ey.Add(en), fixedpoint.Precision), nil
}
