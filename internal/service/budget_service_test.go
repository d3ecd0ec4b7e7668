package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/repository"
	"github.com/alexanderramin/wbsledger/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftBudget(t *testing.T, svc BudgetService, projectID string) *domain.Budget {
	t.Helper()
	b, err := svc.Create(context.Background(), domain.NewBudgetInput{
		ProjectID:            projectID,
		Name:                 "Capex 2025",
		TotalAmount:          dec("100000"),
		ContingencyPct:       dec("10"),
		ManagementReservePct: dec("5"),
	})
	require.NoError(t, err)
	return b
}

func TestBudgetService_Create(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	obs := &recordingObserver{}
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser, obs)

	b := newDraftBudget(t, svc, proj.ID)
	assert.Equal(t, domain.BudgetDraft, b.Status)
	assert.Equal(t, "v1", b.Version)
	assert.Equal(t, proj.Currency, b.Currency, "currency defaults to the project's")
	assert.Equal(t, testUser, b.CreatedBy)
	assert.True(t, dec("10000").Equal(b.ContingencyAmount))
	assert.True(t, dec("5000").Equal(b.ManagementReserve))
	assert.True(t, dec("115000").Equal(b.TotalBudget()))

	fetched, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.RowVersion)
	assert.Equal(t, "create-budget", obs.last().Name)

	_, err = svc.Create(ctx, domain.NewBudgetInput{ProjectID: "missing", Name: "Orphan"})
	assert.True(t, domain.IsNotFound(err))
}

func TestBudgetService_ApprovalWorkflow(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	b := newDraftBudget(t, svc, proj.ID)

	_, err := svc.Transition(ctx, b.ID, ActionLock)
	assert.True(t, domain.IsInvalidState(err), "drafts cannot be locked")

	got, err := svc.Transition(ctx, b.ID, ActionSubmit)
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetUnderReview, got.Status)
	require.NotNil(t, got.SubmittedBy)
	assert.Equal(t, testUser, *got.SubmittedBy)

	got, err = svc.Approve(ctx, b.ID, " looks right ")
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetApproved, got.Status)
	assert.Equal(t, "looks right", got.ApprovalComments)

	_, err = svc.UpdateDetails(ctx, b.ID, "Renamed", "")
	assert.True(t, domain.IsInvalidState(err), "approved budgets are closed for edits")

	got, err = svc.Transition(ctx, b.ID, ActionSetBaseline)
	require.NoError(t, err)
	assert.True(t, got.IsBaseline)

	got, err = svc.Transition(ctx, b.ID, ActionLock)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)

	_, err = svc.Transition(ctx, b.ID, ActionRemoveBaseline)
	assert.True(t, domain.IsInvalidState(err), "locked baselines stay")
	_, err = svc.Transition(ctx, b.ID, ActionDelete)
	assert.True(t, domain.IsInvalidState(err))

	got, err = svc.Transition(ctx, b.ID, ActionUnlock)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
	got, err = svc.Transition(ctx, b.ID, ActionRemoveBaseline)
	require.NoError(t, err)
	assert.False(t, got.IsBaseline)

	stored, err := budgets.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetApproved, stored.Status)
	assert.Nil(t, stored.LockedBy)
	assert.Nil(t, stored.BaselineDate)
	assert.Equal(t, 7, stored.RowVersion)
}

func TestBudgetService_RejectAndReturnToDraft(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	b := newDraftBudget(t, svc, proj.ID)

	_, err := svc.Transition(ctx, b.ID, ActionSubmit)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, b.ID, "  ")
	assert.True(t, domain.IsValidation(err))

	got, err := svc.Reject(ctx, b.ID, "missing escalation")
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetRejected, got.Status)
	assert.Equal(t, "missing escalation", got.RejectionReason)

	got, err = svc.Transition(ctx, b.ID, ActionReturnToDraft)
	require.NoError(t, err)
	assert.Equal(t, domain.BudgetDraft, got.Status)
	assert.Empty(t, got.RejectionReason)
	assert.Nil(t, got.SubmittedBy)

	got, err = svc.Transition(ctx, b.ID, ActionDelete)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	_, err = svc.Get(ctx, b.ID)
	assert.True(t, domain.IsNotFound(err))
	live, err := svc.List(ctx, proj.ID, false)
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := svc.List(ctx, proj.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBudgetService_UnknownAction(t *testing.T) {
	_, _, budgets, _, uow := setupRepos(t)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)

	_, err := svc.Transition(context.Background(), "any", BudgetAction("explode"))
	assert.True(t, domain.IsValidation(err))
}

func TestBudgetService_Items(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	b := newDraftBudget(t, svc, proj.ID)

	concrete, err := svc.AddItem(ctx, b.ID, domain.BudgetItemInput{
		ItemCode:    "CIV-01",
		Description: "Concrete",
		CostType:    domain.CostMaterial,
		Quantity:    dec("120"),
		UnitRate:    dec("250"),
	})
	require.NoError(t, err)
	assert.True(t, dec("30000").Equal(concrete.Amount))

	_, err = svc.AddItem(ctx, b.ID, domain.BudgetItemInput{ItemCode: "civ-01", Description: "Dup"})
	assert.True(t, domain.IsValidation(err), "codes are unique ignoring case")

	labour, err := svc.AddItem(ctx, b.ID, domain.BudgetItemInput{ItemCode: "LAB-01", Description: "Crew", CostType: domain.CostLabor})
	require.NoError(t, err)
	labour, err = svc.OverrideItemAmount(ctx, b.ID, labour.ID, dec("80000"))
	require.NoError(t, err)
	assert.True(t, labour.IsAmountOverridden)

	stored, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOverAllocated())
	assert.True(t, dec("-10000").Equal(stored.UnallocatedAmount()))

	concrete, err = svc.UpdateItemAmount(ctx, b.ID, concrete.ID, dec("100"), dec("200"))
	require.NoError(t, err)
	assert.True(t, dec("20000").Equal(concrete.Amount))

	stored, err = svc.RemoveItem(ctx, b.ID, labour.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ActiveItems(), 1)
	assert.True(t, dec("20000").Equal(stored.AllocatedAmount()))

	_, err = svc.Transition(ctx, b.ID, ActionSubmit)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, b.ID, domain.BudgetItemInput{ItemCode: "EQ-01", Description: "Crane"})
	assert.True(t, domain.IsInvalidState(err), "items are frozen once submitted")

	reloaded, err := budgets.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Items, 2)
	assert.Len(t, reloaded.ActiveItems(), 1)
}

func TestBudgetService_AddItemRollsBackOnFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	projects := repository.NewSQLiteProjectRepo(database)
	budgets := repository.NewSQLiteBudgetRepo(database)
	ctx := context.Background()
	proj := seedProject(t, projects)

	b := newDraftBudget(t, NewBudgetService(budgets, testutil.NewTestUoW(database), testutil.TestClock(), testUser), proj.ID)

	failing := &testutil.FailingUoW{DB: database, Match: "INSERT INTO budget_items", Err: errors.New("disk full")}
	svc := NewBudgetService(budgets, failing, testutil.TestClock(), testUser)
	_, err := svc.AddItem(ctx, b.ID, domain.BudgetItemInput{ItemCode: "CIV-01", Description: "Concrete"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	stored, err := budgets.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
	assert.Equal(t, 1, stored.RowVersion, "budget header update rolled back with the item")
}

func TestBudgetService_RevisionRecords(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	b := newDraftBudget(t, svc, proj.ID)

	first, err := svc.RecordRevision(ctx, b.ID, "initial estimate")
	require.NoError(t, err)
	assert.Equal(t, 1, first.RevisionNumber)
	assert.True(t, first.PreviousAmount.IsZero())
	assert.True(t, dec("100000").Equal(first.NewAmount))

	_, err = svc.UpdateFinancials(ctx, b.ID, dec("125000"), dec("10"), dec("5"))
	require.NoError(t, err)

	second, err := svc.RecordRevision(ctx, b.ID, "scope growth")
	require.NoError(t, err)
	assert.Equal(t, 2, second.RevisionNumber)
	assert.True(t, dec("100000").Equal(second.PreviousAmount))
	assert.True(t, dec("25000").Equal(second.ChangeAmount()))

	_, err = svc.RecordRevision(ctx, b.ID, "")
	assert.True(t, domain.IsValidation(err))

	approved, err := svc.ApproveRevision(ctx, b.ID, 2)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	_, err = svc.ApproveRevision(ctx, b.ID, 2)
	assert.True(t, domain.IsInvalidState(err))
	_, err = svc.ApproveRevision(ctx, b.ID, 7)
	assert.True(t, domain.IsNotFound(err))

	stored, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RevisionCount)
	require.Len(t, stored.Revisions, 2)
	assert.False(t, stored.Revisions[0].IsApproved)
	assert.True(t, stored.Revisions[1].IsApproved)
	assert.Equal(t, "scope growth", stored.Revisions[1].Reason)
}

func TestBudgetService_Revise(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	parent := newDraftBudget(t, svc, proj.ID)

	_, err := svc.Revise(ctx, parent.ID, "", " ")
	assert.True(t, domain.IsValidation(err))

	child, err := svc.Revise(ctx, parent.ID, "", "owner change order")
	require.NoError(t, err)
	assert.Equal(t, "v1-R1", child.Version)
	require.NotNil(t, child.ParentBudgetID)
	assert.Equal(t, parent.ID, *child.ParentBudgetID)
	assert.Equal(t, domain.BudgetDraft, child.Status)

	stored, err := svc.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RevisionCount)
	require.Len(t, stored.Revisions, 1)
	assert.True(t, dec("100000").Equal(stored.Revisions[0].PreviousAmount))

	all, err := svc.List(ctx, proj.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Revise(ctx, "missing", "v2", "why")
	assert.True(t, domain.IsNotFound(err))
}

func TestBudgetService_VersionUniquePerProject(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	parent := newDraftBudget(t, svc, proj.ID)

	_, err := svc.Create(ctx, domain.NewBudgetInput{ProjectID: proj.ID, Name: "Second", TotalAmount: dec("10")})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err), "%v", err)
	assert.Contains(t, err.Error(), `version "v1" is already used`)

	_, err = svc.Create(ctx, domain.NewBudgetInput{ProjectID: proj.ID, Version: "V1", Name: "Shouty", TotalAmount: dec("10")})
	assert.True(t, domain.IsValidation(err), "versions compare without case")

	first, err := svc.Revise(ctx, parent.ID, "", "change order 1")
	require.NoError(t, err)
	assert.Equal(t, "v1-R1", first.Version)
	second, err := svc.Revise(ctx, parent.ID, "", "change order 2")
	require.NoError(t, err)
	assert.Equal(t, "v1-R2", second.Version)

	_, err = svc.Revise(ctx, parent.ID, "v1-r1", "clash")
	assert.True(t, domain.IsValidation(err))

	// A deleted budget frees its label for a new one.
	_, err = svc.Transition(ctx, second.ID, ActionDelete)
	require.NoError(t, err)
	third, err := svc.Revise(ctx, parent.ID, "", "change order 3")
	require.NoError(t, err)
	assert.Equal(t, "v1-R3", third.Version, "the sequence does not reuse deleted labels")
	reused, err := svc.Create(ctx, domain.NewBudgetInput{ProjectID: proj.ID, Version: "v1-R2", Name: "Reuse", TotalAmount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, "v1-R2", reused.Version)

	live, err := svc.List(ctx, proj.ID, false)
	require.NoError(t, err)
	assert.Len(t, live, 4)
}

func TestBudgetService_CreateExchangeRate(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)

	_, err := svc.Create(ctx, domain.NewBudgetInput{
		ProjectID: proj.ID, Name: "Zero fx", TotalAmount: dec("10"),
		ExchangeRate: decimal.NewNullDecimal(decimal.Zero),
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	all, err := svc.List(ctx, proj.ID, true)
	require.NoError(t, err)
	assert.Empty(t, all, "nothing is written on a rejected rate")
}

func TestBudgetService_ExchangeRate(t *testing.T) {
	projects, _, budgets, _, uow := setupRepos(t)
	ctx := context.Background()
	proj := seedProject(t, projects)
	svc := NewBudgetService(budgets, uow, testutil.TestClock(), testUser)
	b := newDraftBudget(t, svc, proj.ID)

	_, err := svc.UpdateExchangeRate(ctx, b.ID, "EUR", dec("0"))
	assert.True(t, domain.IsValidation(err))

	got, err := svc.UpdateExchangeRate(ctx, b.ID, "eur", dec("0.92"))
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)

	stored, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, dec("0.92").Equal(stored.ExchangeRate))
	require.NotNil(t, stored.UpdatedBy)
	assert.Equal(t, testUser, *stored.UpdatedBy)
}
