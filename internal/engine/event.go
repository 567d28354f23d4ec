package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed state change.
type EventType string

const (
	EventMarketCreated EventType = "market_created"
	EventMarketUpdated EventType = "market_updated"
	EventLiquidity     EventType = "liquidity"
	EventFill          EventType = "fill"
	EventResolved      EventType = "resolved"
	EventClaim         EventType = "claim"
)

// Event is emitted after an operation commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	MarketID  string      `json:"market_id"`
	Account   string      `json:"account,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func newEvent(typ EventType, marketID, account string, data interface{}, at time.Time) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		MarketID:  marketID,
		Account:   account,
		Data:      data,
		Timestamp: at,
	}
}

// LiquidityChange is the payload of a liquidity event.
type LiquidityChange struct {
	Provider       string `json:"provider"`
	Deposit        bool   `json:"deposit"`
	Amount         uint64 `json:"amount"`
	LPUnits        uint64 `json:"lp_units"`
	TotalLiquidity uint64 `json:"total_liquidity"`
	TotalLpSupply  uint64 `json:"total_lp_supply"`
}

// ClaimPayout is the payload of a claim event.
type ClaimPayout struct {
	Claimant string `json:"claimant"`
	Units    uint64 `json:"units"`
	Payout   uint64 `json:"payout"`
}
