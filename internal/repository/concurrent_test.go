package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConcurrentTestDB creates a file-backed SQLite database in a temp directory.
// Unlike :memory:, a file-backed DB shares state across all connections in the
// pool, which is required to test real concurrent access with WAL mode.
func newConcurrentTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	database, err := db.OpenDB(filepath.Join(dir, "concurrent_test.db"))
	require.NoError(t, err, "failed to create concurrent test database")
	t.Cleanup(func() { database.Close() })
	return database
}

// Two writers holding the same row version: exactly one wins, the other
// sees ErrConflict instead of silently overwriting.
func TestConcurrentAccess_OptimisticNodeUpdate(t *testing.T) {
	database := newConcurrentTestDB(t)
	ctx := context.Background()
	proj := seedProject(t, database)
	repo := NewSQLiteWBSNodeRepo(database)

	root := testutil.NewTestNode(proj.ID, "1", "Plant")
	require.NoError(t, repo.Create(ctx, root))

	const writers = 4
	copies := make([]*domain.WBSNode, writers)
	for i := range copies {
		n, err := repo.GetByID(ctx, root.ID)
		require.NoError(t, err)
		n.Description = fmt.Sprintf("writer %d", i)
		copies[i] = n
	}

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range copies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Update(ctx, copies[i])
		}(i)
	}
	wg.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrConflict):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, writers-1, conflicted)

	fetched, err := repo.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.RowVersion)
}

// Readers listing a project's budgets never see an error while a writer
// keeps adding budgets.
func TestConcurrentAccess_ReadDuringWrite(t *testing.T) {
	database := newConcurrentTestDB(t)
	ctx := context.Background()
	proj := seedProject(t, database)
	repo := NewSQLiteBudgetRepo(database)

	var wg sync.WaitGroup
	wg.Add(1)
	writeErrs := make(chan error, 20)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			b := testutil.NewTestBudget(proj.ID, fmt.Sprintf("Budget %d", i),
				testutil.WithVersion(fmt.Sprintf("v%d", i+1)),
				testutil.WithItem(fmt.Sprintf("LAB-%02d", i), "10", "100"))
			if err := repo.Create(ctx, b); err != nil {
				writeErrs <- err
			}
		}
	}()

	readErrs := make(chan error, 40)
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := repo.ListByProject(ctx, proj.ID, false); err != nil {
					readErrs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(writeErrs)
	close(readErrs)

	for err := range writeErrs {
		t.Errorf("write error: %v", err)
	}
	for err := range readErrs {
		t.Errorf("read error: %v", err)
	}

	budgets, err := repo.ListByProject(ctx, proj.ID, false)
	require.NoError(t, err)
	assert.Len(t, budgets, 20)
	for _, b := range budgets {
		assert.Len(t, b.Items, 1)
	}
}
