package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-backend/internal/engine"
	"amm-backend/internal/market"
	"amm-backend/internal/store"
)

// Runs only against a disposable database named by TEST_DATABASE_URL.
func TestJournalRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn, 2)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, pool))

	j := NewJournal(pool)
	defer j.Close()

	marketID := uuid.New().String()
	rec, err := store.NewRecord(engine.Event{
		ID:        uuid.New().String(),
		Type:      engine.EventFill,
		MarketID:  marketID,
		Account:   "bob",
		Data:      map[string]uint64{"tokens_issued": 9},
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, rec))
	require.NoError(t, j.Append(ctx, rec))

	got, err := j.List(ctx, marketID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, engine.EventFill, got[0].Type)
	assert.JSONEq(t, `{"tokens_issued": 9}`, string(got[0].Data))

	m := &market.Market{ID: marketID, Question: "q", Curve: market.CurveConstantProduct, Version: 2}
	require.NoError(t, j.SaveMarket(ctx, m))
	stale := m.Clone()
	stale.Version = 1
	stale.IsActive = true
	require.NoError(t, j.SaveMarket(ctx, stale))

	var version int64
	var active bool
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT version, is_active FROM markets WHERE id = $1", marketID,
	).Scan(&version, &active))
	assert.Equal(t, int64(2), version)
	assert.False(t, active)
}
