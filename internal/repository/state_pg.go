package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/jmoiron/sqlx"
)

type PostgresStateStore struct {
	db *sqlx.DB
	id string
}

func NewPostgresStateStore(db *sqlx.DB, id string) *PostgresStateStore {
	if id == "" {
		id = "default"
	}
	repo := &PostgresStateStore{db: db, id: id}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresStateStore) Load(ctx context.Context) (*model.EngineState, error) {
	var raw []byte
	err := r.db.QueryRowxContext(ctx, `SELECT state FROM engine_state WHERE id = $1`, r.id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.EngineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode engine state: %w", err)
	}
	if state.Exchanges == nil {
		state.Exchanges = make(map[string]*model.ExchangeSettings)
	}
	return &state, nil
}

// Save upserts the state row; an older version never overwrites a newer one.
func (r *PostgresStateStore) Save(ctx context.Context, state *model.EngineState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO engine_state (id, version, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
		WHERE engine_state.version < EXCLUDED.version
	`, r.id, state.Version, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: version %d", ErrStaleState, state.Version)
	}
	return nil
}

func (r *PostgresStateStore) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS engine_state (
			id TEXT PRIMARY KEY,
			version BIGINT NOT NULL,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}
