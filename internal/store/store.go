// Package store persists the engine's event stream and the latest snapshot
// of every market.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"amm-backend/internal/engine"
	"amm-backend/internal/market"
)

var ErrClosed = errors.New("journal closed")

// Record is a persisted event.
type Record struct {
	ID        string           `json:"id"`
	Type      engine.EventType `json:"type"`
	MarketID  string           `json:"market_id"`
	Account   string           `json:"account,omitempty"`
	Data      json.RawMessage  `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewRecord serializes ev.
func NewRecord(ev engine.Event) (Record, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	return Record{
		ID:        ev.ID,
		Type:      ev.Type,
		MarketID:  ev.MarketID,
		Account:   ev.Account,
		Data:      data,
		Timestamp: ev.Timestamp,
	}, nil
}

// Journal is an append-only event log plus a market snapshot table.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, marketID string, limit int) ([]Record, error)
	SaveMarket(ctx context.Context, m *market.Market) error
	Close()
}

// MemoryJournal keeps records in process memory.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []Record
	markets map[string]*market.Market
	closed  bool
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{markets: make(map[string]*market.Market)}
}

func (j *MemoryJournal) Append(_ context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.records = append(j.records, rec)
	return nil
}

// List returns the newest limit records for marketID, newest first. A
// non-positive limit returns all of them.
func (j *MemoryJournal) List(_ context.Context, marketID string, limit int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Record
	for i := len(j.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if marketID == "" || j.records[i].MarketID == marketID {
			out = append(out, j.records[i])
		}
	}
	return out, nil
}

func (j *MemoryJournal) SaveMarket(_ context.Context, m *market.Market) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	// Snapshots can arrive out of order; keep the newest version.
	if cur, ok := j.markets[m.ID]; ok && cur.Version > m.Version {
		return nil
	}
	j.markets[m.ID] = m.Clone()
	return nil
}

// Markets returns the saved snapshots ordered by id.
func (j *MemoryJournal) Markets() []*market.Market {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*market.Market, 0, len(j.markets))
	for _, m := range j.markets {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (j *MemoryJournal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
}
