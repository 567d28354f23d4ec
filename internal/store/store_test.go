package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-backend/internal/engine"
	"amm-backend/internal/market"
)

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	for i, id := range []string{"e1", "e2", "e3"} {
		marketID := "m1"
		if i == 1 {
			marketID = "m2"
		}
		rec, err := NewRecord(engine.Event{ID: id, Type: engine.EventFill, MarketID: marketID, Data: i})
		require.NoError(t, err)
		require.NoError(t, j.Append(ctx, rec))
	}

	got, err := j.List(ctx, "m1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e1", got[1].ID)

	got, err = j.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e3", got[0].ID)

	require.NoError(t, j.SaveMarket(ctx, &market.Market{ID: "m1", Version: 3}))
	require.NoError(t, j.SaveMarket(ctx, &market.Market{ID: "m1", Version: 2}))
	markets := j.Markets()
	require.Len(t, markets, 1)
	assert.Equal(t, uint64(3), markets[0].Version)

	j.Close()
	require.ErrorIs(t, j.Append(ctx, Record{}), ErrClosed)
}

func TestRecorderPersistsEventsAndSnapshots(t *testing.T) {
	j := NewMemoryJournal()
	snapshot := &market.Market{ID: "m1", Version: 7}
	r := NewRecorder(j, func(id string) (*market.Market, error) {
		if id != "m1" {
			return nil, market.ErrMarketNotFound
		}
		return snapshot, nil
	}, 8)

	r.Record(engine.Event{ID: "e1", Type: engine.EventFill, MarketID: "m1", Timestamp: time.Now()})
	r.Record(engine.Event{ID: "e2", Type: engine.EventClaim, MarketID: "missing"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context still flushes the queue.
	require.NoError(t, r.Run(ctx))

	recs, err := j.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	markets := j.Markets()
	require.Len(t, markets, 1)
	assert.Equal(t, uint64(7), markets[0].Version)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(NewMemoryJournal(), nil, 1)
	r.Record(engine.Event{ID: "e1"})
	r.Record(engine.Event{ID: "e2"})
	assert.Len(t, r.events, 1)
}
