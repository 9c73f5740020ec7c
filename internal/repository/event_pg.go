package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
)

type PostgresEventRepo struct {
	db *sqlx.DB
}

func NewPostgresEventRepo(db *sqlx.DB) *PostgresEventRepo {
	repo := &PostgresEventRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

type eventRow struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Exchange  string    `db:"exchange"`
	Caller    string    `db:"caller"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *PostgresEventRepo) Insert(ctx context.Context, event *model.Event) error {
	if event == nil {
		return nil
	}
	payload, _ := json.Marshal(event.Payload)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO engine_events (id, type, exchange, caller, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, string(event.Type), event.Exchange, event.Caller.Hex(), payload, event.CreatedAt)
	return err
}

// List returns newest first, optionally filtered by type.
func (r *PostgresEventRepo) List(ctx context.Context, eventType model.EventType, limit int) ([]*model.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows := []eventRow{}
	var err error
	if eventType != "" {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT id, type, exchange, caller, payload, created_at FROM engine_events
			WHERE type = $1 ORDER BY created_at DESC LIMIT $2`, string(eventType), limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT id, type, exchange, caller, payload, created_at FROM engine_events
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}

	events := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		event := &model.Event{
			ID:        row.ID,
			Type:      model.EventType(row.Type),
			Exchange:  row.Exchange,
			Caller:    common.HexToAddress(row.Caller),
			CreatedAt: row.CreatedAt,
		}
		if len(row.Payload) > 0 {
			_ = json.Unmarshal(row.Payload, &event.Payload)
		} else {
			event.Payload = map[string]interface{}{}
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *PostgresEventRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS engine_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			exchange TEXT,
			caller TEXT,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_engine_events_type ON engine_events(type, created_at DESC)`)
	return nil
}

func (r *PostgresEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM engine_events WHERE created_at < $1`, cutoff)
	return err
}
