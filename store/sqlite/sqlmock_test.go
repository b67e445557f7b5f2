package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func newMockStore(t *testing.T) (*sqlite.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewWithDB(db), mock
}

func TestSQLMock_WithTx_RollbackOnInsertFailure(t *testing.T) {
	// GIVEN: The leave insert fails inside a transaction
	// WHEN: WithTx runs
	// THEN: The transaction is rolled back, never committed

	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leaves")).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.WithTx(ctx, func(s leave.Store) error {
		_, err := s.InsertLeave(ctx, leave.Record{AgentID: 1, Kind: leave.KindSick, Start: d("2024-03-01"), End: d("2024-03-02"), DaysTaken: 2})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_WithTx_CommitOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agents SET balance = ? WHERE id = ?")).
		WithArgs("5", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(ctx, func(s leave.Store) error {
		return s.UpdateAgentBalance(ctx, 1, decimal.NewFromInt(5))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UpdateBalance_UnknownAgent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE agents SET balance = ? WHERE id = ?")).
		WithArgs("5", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateAgentBalance(context.Background(), 42, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, leave.ErrAgentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetAgent_NotFoundIsNil(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM agents WHERE id = ?")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "last_name", "first_name", "reference", "grade", "balance"}))

	a, err := store.GetAgent(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetAgent_CorruptBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM agents WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "last_name", "first_name", "reference", "grade", "balance"}).
			AddRow(7, "Tazi", "Youssef", "P-7", "", "lots"))

	_, err := store.GetAgent(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt balance")
}

func TestSQLMock_GetLeave_ScansRow(t *testing.T) {
	store, mock := newMockStore(t)

	cols := []string{"id", "agent_id", "kind", "justification", "covering_agent_id",
		"start_date", "end_date", "days_taken", "status", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM leaves WHERE id = ?")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, 1, "annual", "family", 2, "2024-03-01", "2024-03-04", 2, "cancelled", "2024-02-20T08:00:00Z"))

	rec, err := store.GetLeave(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, leave.KindAnnual, rec.Kind)
	assert.Equal(t, leave.StatusCancelled, rec.Status)
	require.NotNil(t, rec.CoveringAgentID)
	assert.Equal(t, leave.AgentID(2), *rec.CoveringAgentID)
	assert.Equal(t, "[2024-03-01, 2024-03-04]", rec.Range().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreateAgent_DuplicateReference(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO agents")).
		WillReturnError(errors.New("UNIQUE constraint failed: agents.reference"))

	_, err := store.CreateAgent(context.Background(), leave.Agent{LastName: "Tazi", Reference: "P-1"})
	assert.ErrorIs(t, err, leave.ErrReferenceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
