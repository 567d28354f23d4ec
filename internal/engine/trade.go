package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"amm-backend/internal/amm"
	"amm-backend/internal/market"
)

// FillRecord is a completed buy against a market's curve.
type FillRecord struct {
	ID           string         `json:"id"`
	MarketID     string         `json:"market_id"`
	Trader       string         `json:"trader"`
	Side         market.Outcome `json:"side"`
	TokensIssued uint64         `json:"tokens_issued"`
	CurrencyPaid uint64         `json:"currency_paid"`
	Fee          uint64         `json:"fee"`
	YesPool      uint64         `json:"yes_pool"`
	NoPool       uint64         `json:"no_pool"`
	Version      uint64         `json:"version"` // market version after the fill
	Timestamp    time.Time      `json:"timestamp"`
	SequenceNum  uint64         `json:"sequence_num"`
}

var fillSequence uint64

// NewFillRecord creates a record for a committed fill.
func NewFillRecord(m *market.Market, trader string, f amm.Fill, at time.Time) *FillRecord {
	return &FillRecord{
		ID:           uuid.New().String(),
		MarketID:     m.ID,
		Trader:       trader,
		Side:         f.Side,
		TokensIssued: f.TokensIssued,
		CurrencyPaid: f.CurrencyOwed,
		Fee:          f.Fee,
		YesPool:      f.YesPool,
		NoPool:       f.NoPool,
		Version:      m.Version,
		Timestamp:    at,
		SequenceNum:  atomic.AddUint64(&fillSequence, 1),
	}
}

// FillHistory stores the most recent fills across all markets
type FillHistory struct {
	mu     sync.RWMutex
	fills  []*FillRecord
	maxLen int
}

// NewFillHistory creates a new fill history with max capacity
func NewFillHistory(maxLen int) *FillHistory {
	return &FillHistory{
		fills:  make([]*FillRecord, 0, maxLen),
		maxLen: maxLen,
	}
}

// Add records a new fill
func (h *FillHistory) Add(fill *FillRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.fills = append(h.fills, fill)

	// Trim if exceeds max length
	if len(h.fills) > h.maxLen {
		h.fills = h.fills[len(h.fills)-h.maxLen:]
	}
}

// Recent returns up to n of the newest fills for marketID, oldest first.
// An empty marketID matches every market.
func (h *FillHistory) Recent(marketID string, n int) []*FillRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []*FillRecord
	for i := len(h.fills) - 1; i >= 0 && len(result) < n; i-- {
		if marketID == "" || h.fills[i].MarketID == marketID {
			result = append(result, h.fills[i])
		}
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}
