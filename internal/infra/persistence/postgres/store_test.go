package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"testrig/pkg/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sessions")).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(context.Background(), "")
	require.NoError(t, err)
	return store, mock
}

func TestNewStoreEnsuresTable(t *testing.T) {
	store, mock := newMockStore(t)
	require.NotNil(t, store.DB())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStorePingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()
	_, err = NewStore(context.Background(), "postgres://example")
	require.ErrorContains(t, err, "ping postgres")
}

func TestSaveUpsertsInTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := domain.SessionRecord{ID: "s1", Trainee: "kim", CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("s1", "kim", now, now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), domain.SessionRecord{ID: "s1"})
	require.ErrorContains(t, err, "upsert session s1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDecodesPayload(t *testing.T) {
	store, mock := newMockStore(t)
	payload, err := json.Marshal(domain.SessionRecord{ID: "s1", Trainee: "kim", State: domain.SimulatorState{Phase: domain.PhaseSummary}})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM sessions WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM sessions WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	rec, ok, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.PhaseSummary, rec.State.Phase)

	_, ok, err = store.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAndDelete(t *testing.T) {
	store, mock := newMockStore(t)
	a, _ := json.Marshal(domain.SessionRecord{ID: "a"})
	b, _ := json.Marshal(domain.SessionRecord{ID: "b"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM sessions ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(a).AddRow(b))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = $1")).
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = $1")).
		WithArgs("zzz").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[1].ID)

	removed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = store.Delete(ctx, "zzz")
	require.NoError(t, err)
	require.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
