package engine

import (
	"amm-backend/internal/market"
)

// Position is an account's holdings in one market.
type Position struct {
	Account   string `json:"account"`
	MarketID  string `json:"market_id"`
	YesTokens uint64 `json:"yes_tokens"`
	NoTokens  uint64 `json:"no_tokens"`
	LPUnits   uint64 `json:"lp_units"`
	Claimed   bool   `json:"claimed"`
}

// Empty reports whether the position holds nothing.
func (p *Position) Empty() bool {
	return p.YesTokens == 0 && p.NoTokens == 0 && p.LPUnits == 0
}

// Balance returns an account's free currency balance.
func (e *Engine) Balance(account string) uint64 {
	return e.custody.Balance(account)
}

// Position returns account's holdings in a market.
func (e *Engine) Position(account, marketID string) (*Position, error) {
	if _, ok := e.markets.Get(marketID); !ok {
		return nil, market.ErrMarketNotFound
	}
	return e.position(account, marketID), nil
}

// Positions returns every non-empty position held by account.
func (e *Engine) Positions(account string) []*Position {
	var positions []*Position
	for _, m := range e.markets.List() {
		pos := e.position(account, m.ID)
		if !pos.Empty() || pos.Claimed {
			positions = append(positions, pos)
		}
	}
	return positions
}

func (e *Engine) position(account, marketID string) *Position {
	return &Position{
		Account:   account,
		MarketID:  marketID,
		YesTokens: e.custody.ClaimBalance(OutcomeClaim(marketID, market.OutcomeYes), account),
		NoTokens:  e.custody.ClaimBalance(OutcomeClaim(marketID, market.OutcomeNo), account),
		LPUnits:   e.custody.ClaimBalance(LPClaim(marketID), account),
		Claimed:   e.hasClaimed(marketID, account),
	}
}
