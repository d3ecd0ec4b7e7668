package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetRepo_CreateAndGetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	proj := seedProject(t, db)
	repo := NewSQLiteBudgetRepo(db)
	ctx := context.Background()

	b, err := domain.NewBudget(domain.NewBudgetInput{
		ID:                   "budget-1",
		ProjectID:            proj.ID,
		Name:                 "Original Budget",
		Currency:             "eur",
		ExchangeRate:         decimal.NewNullDecimal(decimal.RequireFromString("1.0850")),
		TotalAmount:          decimal.NewFromInt(250000),
		ContingencyPct:       decimal.NewFromInt(10),
		ManagementReservePct: decimal.NewFromInt(5),
		CreatedBy:            "alice",
	}, testutil.Now)
	require.NoError(t, err)
	_, err = b.AddBudgetItem(domain.BudgetItemInput{
		ID:          "item-1",
		ItemCode:    "LAB-001",
		Description: "Welders",
		CostType:    domain.CostLabor,
		Quantity:    decimal.NewFromInt(120),
		UnitRate:    decimal.RequireFromString("85.50"),
	}, "alice", testutil.Now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, b))

	fetched, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original Budget", fetched.Name)
	assert.Equal(t, "v1", fetched.Version)
	assert.Equal(t, "EUR", fetched.Currency)
	assert.Equal(t, domain.BudgetDraft, fetched.Status)
	assert.Equal(t, domain.BudgetOriginal, fetched.Type)
	assert.Equal(t, "alice", fetched.CreatedBy)
	assert.Equal(t, 1, fetched.RowVersion)
	assert.True(t, decimal.RequireFromString("1.085").Equal(fetched.ExchangeRate))
	assert.True(t, b.ContingencyAmount.Equal(fetched.ContingencyAmount))
	assert.True(t, b.ManagementReserve.Equal(fetched.ManagementReserve))
	assert.True(t, b.TotalBudget().Equal(fetched.TotalBudget()))

	require.Len(t, fetched.Items, 1)
	item := fetched.Items[0]
	assert.Equal(t, "LAB-001", item.ItemCode)
	assert.True(t, decimal.RequireFromString("10260").Equal(item.Amount))
	assert.False(t, item.IsAmountOverridden)
	assert.Nil(t, item.ControlAccountID)
}

func TestBudgetRepo_UpdateWorkflowAndRevisions(t *testing.T) {
	db := testutil.NewTestDB(t)
	proj := seedProject(t, db)
	repo := NewSQLiteBudgetRepo(db)
	ctx := context.Background()

	b := testutil.NewTestBudget(proj.ID, "Control Budget", testutil.WithItem("MAT-01", "5", "200"))
	require.NoError(t, repo.Create(ctx, b))

	loaded, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	later := testutil.Now.Add(time.Hour)
	require.NoError(t, loaded.UpdateFinancials(decimal.NewFromInt(120000), decimal.Zero, decimal.Zero, "bob", later))
	_, err = loaded.CreateRevisionRecord("rev-1", 1, "scope growth", "bob", later)
	require.NoError(t, err)
	require.NoError(t, loaded.SubmitForApproval("bob", later))
	require.NoError(t, loaded.Approve("carol", "ok", later))
	require.NoError(t, repo.Update(ctx, loaded))
	assert.Equal(t, 2, loaded.RowVersion)

	fetched, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetApproved, fetched.Status)
	require.NotNil(t, fetched.ApprovedBy)
	assert.Equal(t, "carol", *fetched.ApprovedBy)
	assert.Equal(t, "ok", fetched.ApprovalComments)
	require.NotNil(t, fetched.UpdatedBy)
	assert.Equal(t, "carol", *fetched.UpdatedBy)
	assert.Equal(t, 1, fetched.RevisionCount)
	require.Len(t, fetched.Revisions, 1)
	rev := fetched.Revisions[0]
	assert.Equal(t, 1, rev.RevisionNumber)
	assert.True(t, rev.PreviousAmount.IsZero(), "first revision starts from zero")
	assert.True(t, decimal.NewFromInt(120000).Equal(rev.NewAmount))
	assert.False(t, rev.IsApproved)

	// Approving the revision only touches the approval columns.
	_, err = fetched.ApproveRevision(1, "carol", later)
	require.NoError(t, err)
	rev.Reason = "rewritten"
	require.NoError(t, repo.Update(ctx, fetched))

	again, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, again.Revisions, 1)
	assert.True(t, again.Revisions[0].IsApproved)
	assert.Equal(t, "scope growth", again.Revisions[0].Reason)
}

func TestBudgetRepo_UpdateStaleVersionConflicts(t *testing.T) {
	db := testutil.NewTestDB(t)
	proj := seedProject(t, db)
	repo := NewSQLiteBudgetRepo(db)
	ctx := context.Background()

	b := testutil.NewTestBudget(proj.ID, "Budget")
	require.NoError(t, repo.Create(ctx, b))

	first, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, first.UpdateDetails("First", "", "a", testutil.Now))
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.UpdateDetails("Second", "", "b", testutil.Now))
	err = repo.Update(ctx, second)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestBudgetRepo_SoftDeletedItemsAndBudgets(t *testing.T) {
	db := testutil.NewTestDB(t)
	proj := seedProject(t, db)
	repo := NewSQLiteBudgetRepo(db)
	ctx := context.Background()

	keep := testutil.NewTestBudget(proj.ID, "Keep",
		testutil.WithItem("A-1", "1", "10"), testutil.WithItem("A-2", "2", "10"))
	drop := testutil.NewTestBudget(proj.ID, "Drop", testutil.WithVersion("v2"))
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, drop))

	loaded, err := repo.GetByID(ctx, keep.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.RemoveBudgetItem(loaded.Items[0].ID, "dave", testutil.Now))
	require.NoError(t, repo.Update(ctx, loaded))

	dropped, err := repo.GetByID(ctx, drop.ID)
	require.NoError(t, err)
	require.NoError(t, dropped.SoftDelete("dave", testutil.Now))
	require.NoError(t, repo.Update(ctx, dropped))

	live, err := repo.ListByProject(ctx, proj.ID, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, keep.ID, live[0].ID)
	require.Len(t, live[0].Items, 2, "deleted items stay loaded")
	assert.Len(t, live[0].ActiveItems(), 1)
	assert.True(t, decimal.NewFromInt(20).Equal(live[0].AllocatedAmount()))

	all, err := repo.ListByProject(ctx, proj.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBudgetRepo_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := NewSQLiteBudgetRepo(db).GetByID(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
}
