package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func newStateStore(t *testing.T) (*PostgresStateStore, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS engine_state").WillReturnResult(sqlmock.NewResult(0, 0))
	return NewPostgresStateStore(db, "eth2x"), mock
}

func TestPostgresStateStore_LoadEmpty(t *testing.T) {
	store, mock := newStateStore(t)

	mock.ExpectQuery("SELECT state FROM engine_state WHERE id = \\$1").
		WithArgs("eth2x").
		WillReturnError(sql.ErrNoRows)

	state, err := store.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStateStore_LoadDecodes(t *testing.T) {
	store, mock := newStateStore(t)

	saved := model.NewEngineState(model.Settings{})
	saved.TwapLeverageRatio = decimal.RequireFromString("2.3")
	saved.EnabledExchanges = []string{"uniswap"}
	saved.Exchanges["uniswap"] = &model.ExchangeSettings{TwapMaxTradeSize: decimal.NewFromInt(5)}
	saved.Version = 4
	raw, err := json.Marshal(saved)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT state FROM engine_state").
		WithArgs("eth2x").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(raw))

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(4), state.Version)
	assert.True(t, state.InTwap())
	ex, ok := state.Exchange("uniswap")
	require.True(t, ok)
	assert.True(t, ex.TwapMaxTradeSize.Equal(decimal.NewFromInt(5)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStateStore_SaveRejectsStaleVersion(t *testing.T) {
	store, mock := newStateStore(t)
	state := model.NewEngineState(model.Settings{})
	state.Version = 3

	mock.ExpectExec("INSERT INTO engine_state").
		WithArgs("eth2x", int64(3), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Save(context.Background(), state))

	mock.ExpectExec("INSERT INTO engine_state").
		WithArgs("eth2x", int64(3), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.Save(context.Background(), state)
	assert.ErrorIs(t, err, ErrStaleState)

	assert.NoError(t, mock.ExpectationsWereMet())
}
