package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestUoW(t *testing.T) (*sql.DB, *db.SQLiteUnitOfWork) {
	t.Helper()
	database, err := db.OpenDB(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database, db.NewSQLiteUnitOfWork(database)
}

func insertProject(ctx context.Context, tx db.DBTX, id, code string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects (id, code, name, created_at, updated_at)
		VALUES (?, ?, 'Test', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`, id, code)
	return err
}

func projectExists(t *testing.T, database *sql.DB, id string) bool {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&n))
	return n == 1
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	database, uow := openTestUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		return insertProject(ctx, tx, "p1", "CAP-001")
	})
	require.NoError(t, err)
	assert.True(t, projectExists(t, database, "p1"), "row should exist after commit")
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	database, uow := openTestUoW(t)
	sentinel := errors.New("deliberate failure")

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p2", "CAP-002"); err != nil {
			return err
		}
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, projectExists(t, database, "p2"), "row should not exist after rollback")
}

func TestWithinTx_RollbackOnSecondWriteFailure(t *testing.T) {
	database, uow := openTestUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p3", "CAP-003"); err != nil {
			return err
		}
		// Same code violates the unique index.
		return insertProject(ctx, tx, "p4", "CAP-003")
	})
	require.Error(t, err)
	assert.False(t, projectExists(t, database, "p3"), "first write must be rolled back too")
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	database, uow := openTestUoW(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertProject(ctx, tx, "p5", "CAP-005")
			panic("boom")
		})
	})
	assert.False(t, projectExists(t, database, "p5"), "row should not exist after panic rollback")
}

func TestWithinTx_NestedCallJoinsOuter(t *testing.T) {
	database, uow := openTestUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p6", "CAP-006"); err != nil {
			return err
		}
		// A second BeginTx on the single in-memory connection would block.
		return uow.WithinTx(ctx, func(ctx context.Context, inner db.DBTX) error {
			return insertProject(ctx, inner, "p7", "CAP-007")
		})
	})
	require.NoError(t, err)
	assert.True(t, projectExists(t, database, "p6"))
	assert.True(t, projectExists(t, database, "p7"))
}

func TestWithinTx_NestedFailureRollsBackOuter(t *testing.T) {
	database, uow := openTestUoW(t)
	sentinel := errors.New("inner failure")

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p8", "CAP-008"); err != nil {
			return err
		}
		return uow.WithinTx(ctx, func(ctx context.Context, inner db.DBTX) error {
			return sentinel
		})
	})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, projectExists(t, database, "p8"))
}
