package amm

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"amm-backend/internal/fixedpoint"
	"amm-backend/internal/market"
)

const (
	scale    = 1_000_000_000
	decimals = 9
)

func TestConstantProductBuy(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		side       market.Outcome
		amountIn   uint64
		wantTokens uint64
		wantYes    uint64
		wantNo     uint64
		wantFee    uint64
	}{
		{"buy yes from genesis", State{YesPool: 50, NoPool: 50}, market.OutcomeYes, 10, 9, 41, 60, 0},
		{"buy no from genesis", State{YesPool: 50, NoPool: 50}, market.OutcomeNo, 10, 9, 60, 41, 0},
		{"fee reduces the amount entering the curve", State{YesPool: 50, NoPool: 50, FeeBps: 1_000}, market.OutcomeYes, 10, 8, 42, 59, 1},
		{"skewed pool", State{YesPool: 100, NoPool: 1}, market.OutcomeYes, 1, 50, 50, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Buy(market.CurveConstantProduct, tt.state, tt.side, tt.amountIn)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTokens, f.TokensIssued)
			assert.Equal(t, tt.amountIn, f.CurrencyOwed)
			assert.Equal(t, tt.wantFee, f.Fee)
			assert.Equal(t, tt.wantYes, f.YesPool)
			assert.Equal(t, tt.wantNo, f.NoPool)
		})
	}
}

func TestConstantProductDeterministic(t *testing.T) {
	s := State{YesPool: 50, NoPool: 50}
	first, err := Buy(market.CurveConstantProduct, s, market.OutcomeYes, 10)
	require.NoError(t, err)
	second, err := Buy(market.CurveConstantProduct, s, market.OutcomeYes, 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConstantProductErrors(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		amount  uint64
		wantErr error
	}{
		{"empty pool", State{}, 10, market.ErrNoLiquidity},
		{"zero amount", State{YesPool: 50, NoPool: 50}, 0, market.ErrAmountTooSmall},
		{"drains the pool", State{YesPool: 1, NoPool: 1}, 10, market.ErrInsufficientLiquidity},
		{"opposing pool overflows", State{YesPool: 10, NoPool: math.MaxUint64 - 1}, 10, market.ErrOverflow},
		{"fee eats the whole trade", State{YesPool: 50, NoPool: 50, FeeBps: 10_000}, 10, market.ErrAmountTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Buy(market.CurveConstantProduct, tt.state, market.OutcomeYes, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuyRejectsUnknownInputs(t *testing.T) {
	_, err := Buy(market.CurveConstantProduct, State{YesPool: 5, NoPool: 5}, market.Outcome("MAYBE"), 1)
	require.ErrorIs(t, err, market.ErrInvalidOutcome)

	_, err = Buy(market.Curve("linear"), State{YesPool: 5, NoPool: 5}, market.OutcomeYes, 1)
	require.ErrorIs(t, err, market.ErrInvalidCurve)
}

func TestConstantProductInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64Range(2, 1<<40).Draw(t, "seed")
		s := State{YesPool: seed / 2, NoPool: seed / 2}
		if s.YesPool == 0 {
			return
		}
		steps := rapid.IntRange(1, 30).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			side := market.OutcomeYes
			if rapid.Bool().Draw(t, "no") {
				side = market.OutcomeNo
			}
			amount := rapid.Uint64Range(1, 1<<40).Draw(t, "amount")

			before := new(big.Int).Mul(new(big.Int).SetUint64(s.YesPool), new(big.Int).SetUint64(s.NoPool))
			f, err := Buy(market.CurveConstantProduct, s, side, amount)
			if err != nil {
				continue
			}
			after := new(big.Int).Mul(new(big.Int).SetUint64(f.YesPool), new(big.Int).SetUint64(f.NoPool))
			if after.Cmp(before) < 0 {
				t.Fatalf("product decreased: %s -> %s", before, after)
			}
			if f.YesPool == 0 || f.NoPool == 0 {
				t.Fatalf("pool drained: %d/%d", f.YesPool, f.NoPool)
			}
			s.YesPool, s.NoPool = f.YesPool, f.NoPool
		}
	})
}

func lmsrState(b uint64) State {
	return State{LiquidityParam: b, CurrencyScale: scale, ClaimDecimals: decimals}
}

func TestLMSRBuyMatchesClosedForm(t *testing.T) {
	f, err := Buy(market.CurveLMSR, lmsrState(100), market.OutcomeYes, 10)
	require.NoError(t, err)

	want := 100 * (math.Log(math.Exp(0.1)+1) - math.Ln2) * scale
	assert.InDelta(t, want, float64(f.CurrencyOwed), 1_000)
	assert.Equal(t, uint64(10*scale), f.TokensIssued)
	assert.Zero(t, f.Fee)
}

func TestLMSRFee(t *testing.T) {
	s := lmsrState(100)
	plain, err := Buy(market.CurveLMSR, s, market.OutcomeNo, 10)
	require.NoError(t, err)

	s.FeeBps = 200
	charged, err := Buy(market.CurveLMSR, s, market.OutcomeNo, 10)
	require.NoError(t, err)
	assert.Equal(t, plain.CurrencyOwed*2/100, charged.Fee)
	assert.Equal(t, plain.CurrencyOwed+charged.Fee, charged.CurrencyOwed)
}

func TestLMSRPathIndependent(t *testing.T) {
	s := lmsrState(50)
	whole, err := Buy(market.CurveLMSR, s, market.OutcomeYes, 20)
	require.NoError(t, err)

	first, err := Buy(market.CurveLMSR, s, market.OutcomeYes, 10)
	require.NoError(t, err)
	s.YesTokens += first.TokensIssued
	second, err := Buy(market.CurveLMSR, s, market.OutcomeYes, 10)
	require.NoError(t, err)

	assert.InDelta(t, float64(whole.CurrencyOwed), float64(first.CurrencyOwed+second.CurrencyOwed), 2)
}

func TestLMSRExponentOverflow(t *testing.T) {
	_, err := Buy(market.CurveLMSR, lmsrState(1), market.OutcomeYes, 1_000)
	require.ErrorIs(t, err, market.ErrOverflow)
}

func TestLMSRCostBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.Uint64Range(1, 10_000).Draw(t, "b")
		yes := rapid.Uint64Range(0, 1_000).Draw(t, "yes")
		no := rapid.Uint64Range(0, 1_000).Draw(t, "no")
		side := market.OutcomeYes
		if rapid.Bool().Draw(t, "no side") {
			side = market.OutcomeNo
		}
		tokens := rapid.Uint64Range(1, 500).Draw(t, "tokens")

		s := lmsrState(b)
		s.YesTokens, s.NoTokens = yes*scale, no*scale
		f, err := Buy(market.CurveLMSR, s, side, tokens)

		yesAfter, noAfter := yes, no
		if side == market.OutcomeYes {
			yesAfter += tokens
		} else {
			noAfter += tokens
		}
		if exceedsExpDomain(yesAfter, b) || exceedsExpDomain(noAfter, b) {
			if !errors.Is(err, market.ErrOverflow) {
				t.Fatalf("expected overflow for q=(%d,%d) b=%d, got %v", yesAfter, noAfter, b, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error for q=(%d,%d) b=%d: %v", yesAfter, noAfter, b, err)
		}
		// A claim never costs more than it can pay out.
		if f.CurrencyOwed > tokens*scale {
			t.Fatalf("cost %d exceeds max payout %d", f.CurrencyOwed, tokens*scale)
		}
	})
}

// exceedsExpDomain reports whether q/b is past the largest exponent the
// cost function accepts.
func exceedsExpDomain(q, b uint64) bool {
	ratio := decimal.NewFromUint64(q).DivRound(decimal.NewFromUint64(b), fixedpoint.Precision)
	return ratio.GreaterThan(fixedpoint.MaxExpArg)
}

func TestLMSRBoundedLoss(t *testing.T) {
	const b = 100
	s := lmsrState(b)
	var collected uint64
	for i := 0; i < 50; i++ {
		f, err := Buy(market.CurveLMSR, s, market.OutcomeYes, 20)
		require.NoError(t, err)
		s.YesTokens += f.TokensIssued
		collected += f.CurrencyOwed
	}

	maxLoss, err := LMSRMaxLoss(b)
	require.NoError(t, err)
	// If YES wins, every YES unit pays one currency unit.
	loss := decimal.NewFromUint64(s.YesTokens).Sub(decimal.NewFromUint64(collected))
	bound := maxLoss.Mul(decimal.NewFromInt(scale)).Add(decimal.NewFromInt(50))
	assert.True(t, loss.LessThanOrEqual(bound), "loss %s exceeds bound %s", loss, bound)
}

func TestPriceYes(t *testing.T) {
	p, err := PriceYes(market.CurveConstantProduct, State{YesPool: 41, NoPool: 60})
	require.NoError(t, err)
	assert.InDelta(t, 60.0/101.0, p.InexactFloat64(), 1e-12)

	p, err = PriceYes(market.CurveLMSR, lmsrState(100))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.InexactFloat64(), 1e-15)

	s := lmsrState(100)
	s.YesTokens = 50 * scale
	p, err = PriceYes(market.CurveLMSR, s)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-0.5)), p.InexactFloat64(), 1e-12)
}

func TestApply(t *testing.T) {
	m := &market.Market{YesPool: 50, NoPool: 50, FeesCollected: 3}
	require.NoError(t, Apply(m, Fill{Side: market.OutcomeYes, TokensIssued: 9, Fee: 1, YesPool: 41, NoPool: 60}))
	assert.Equal(t, uint64(41), m.YesPool)
	assert.Equal(t, uint64(60), m.NoPool)
	assert.Equal(t, uint64(9), m.YesTokens)
	assert.Equal(t, uint64(4), m.FeesCollected)

	err := Apply(m, Fill{Side: market.OutcomeYes, TokensIssued: math.MaxUint64})
	require.ErrorIs(t, err, market.ErrOverflow)
	assert.Equal(t, uint64(9), m.YesTokens)
}
