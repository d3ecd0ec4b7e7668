package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRepo_CreateAndGetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteProjectRepo(db)
	ctx := context.Background()

	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	proj := testutil.NewTestProject("Refinery Upgrade", testutil.WithStartDate(start), testutil.WithProjectCurrency("EUR"))
	require.NoError(t, repo.Create(ctx, proj))

	fetched, err := repo.GetByID(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, proj.ID, fetched.ID)
	assert.Equal(t, proj.Code, fetched.Code)
	assert.Equal(t, "Refinery Upgrade", fetched.Name)
	assert.Equal(t, "EUR", fetched.Currency)
	assert.True(t, fetched.IsActive)
	require.NotNil(t, fetched.StartDate)
	assert.Equal(t, "2025-09-01", fetched.StartDate.Format("2006-01-02"))
	assert.True(t, proj.CreatedAt.Equal(fetched.CreatedAt))
}

func TestProjectRepo_GetByCode_CaseInsensitive(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteProjectRepo(db)
	ctx := context.Background()

	proj := testutil.NewTestProject("Pipeline", testutil.WithProjectCode("PIPE-204"))
	require.NoError(t, repo.Create(ctx, proj))

	fetched, err := repo.GetByCode(ctx, "pipe-204")
	require.NoError(t, err)
	assert.Equal(t, proj.ID, fetched.ID)
	assert.Equal(t, "PIPE-204", fetched.Code)
}

func TestProjectRepo_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteProjectRepo(db)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestProjectRepo_CreateDuplicateCode(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteProjectRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestProject("A", testutil.WithProjectCode("DUP-01"))))
	err := repo.Create(ctx, testutil.NewTestProject("B", testutil.WithProjectCode("DUP-01")))
	assert.Error(t, err)
}

func TestProjectRepo_List_ExcludesInactive(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteProjectRepo(db)
	ctx := context.Background()

	active := testutil.NewTestProject("Active", testutil.WithProjectCode("AAA-01"))
	closed := testutil.NewTestProject("Closed", testutil.WithProjectCode("BBB-01"), testutil.WithInactive())
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, closed))

	projects, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, active.ID, projects[0].ID)

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAA-01", all[0].Code)
	assert.Equal(t, "BBB-01", all[1].Code)
}

func TestProjectRepo_Update(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteProjectRepo(db)
	ctx := context.Background()

	proj := testutil.NewTestProject("Old Name")
	require.NoError(t, repo.Create(ctx, proj))

	proj.Name = "New Name"
	proj.Description = "expanded scope"
	proj.UpdatedAt = proj.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, proj))

	fetched, err := repo.GetByID(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", fetched.Name)
	assert.Equal(t, "expanded scope", fetched.Description)
	assert.Nil(t, fetched.StartDate)

	missing := testutil.NewTestProject("Ghost")
	err = repo.Update(ctx, missing)
	assert.True(t, domain.IsNotFound(err))
}
