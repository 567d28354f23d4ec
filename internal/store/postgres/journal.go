package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"amm-backend/internal/engine"
	"amm-backend/internal/market"
	"amm-backend/internal/store"
)

// Journal implements store.Journal on PostgreSQL.
type Journal struct {
	pool *pgxpool.Pool
}

var _ store.Journal = (*Journal)(nil)

// NewJournal creates a journal backed by the given connection pool.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Append inserts rec. Replaying a record with a known id is a no-op.
func (j *Journal) Append(ctx context.Context, rec store.Record) error {
	const query = `
		INSERT INTO market_events (id, type, market_id, account, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err := j.pool.Exec(ctx, query,
		rec.ID, string(rec.Type), rec.MarketID, rec.Account, []byte(rec.Data), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the newest limit records for marketID, newest first. An
// empty marketID lists every market; a non-positive limit lists everything.
func (j *Journal) List(ctx context.Context, marketID string, limit int) ([]store.Record, error) {
	query := `SELECT id, type, market_id, account, data, created_at FROM market_events`
	args := []any{}
	if marketID != "" {
		query += ` WHERE market_id = $1`
		args = append(args, marketID)
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Record, error) {
		var rec store.Record
		var typ string
		var data []byte
		if err := row.Scan(&rec.ID, &typ, &rec.MarketID, &rec.Account, &data, &rec.Timestamp); err != nil {
			return rec, err
		}
		rec.Type = engine.EventType(typ)
		rec.Data = json.RawMessage(data)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return records, nil
}

// SaveMarket upserts the market snapshot, keeping the highest version.
func (j *Journal) SaveMarket(ctx context.Context, m *market.Market) error {
	state, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("postgres: marshal market %s: %w", m.ID, err)
	}

	var winning *string
	if m.WinningOutcome != nil {
		w := string(*m.WinningOutcome)
		winning = &w
	}

	const query = `
		INSERT INTO markets (id, question, curve, is_active, resolved, winning_outcome, version, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			is_active       = EXCLUDED.is_active,
			resolved        = EXCLUDED.resolved,
			winning_outcome = EXCLUDED.winning_outcome,
			version         = EXCLUDED.version,
			state           = EXCLUDED.state,
			updated_at      = NOW()
		WHERE markets.version <= EXCLUDED.version`

	_, err = j.pool.Exec(ctx, query,
		m.ID, m.Question, string(m.Curve), m.IsActive, m.Resolved, winning, int64(m.Version), state,
	)
	if err != nil {
		return fmt.Errorf("postgres: save market %s: %w", m.ID, err)
	}
	return nil
}

// Close shuts down the connection pool.
func (j *Journal) Close() {
	j.pool.Close()
}
