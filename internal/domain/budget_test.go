package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBudget(t *testing.T, total, contingency string) *Budget {
	t.Helper()
	b, err := NewBudget(NewBudgetInput{
		ID:             "b1",
		ProjectID:      "p1",
		Name:           "Original estimate",
		Currency:       "usd",
		TotalAmount:    dec(total),
		ContingencyPct: dec(contingency),
		CreatedBy:      "alice",
	}, testNow)
	require.NoError(t, err)
	return b
}

func approvedBudget(t *testing.T) *Budget {
	t.Helper()
	b := newTestBudget(t, "1000", "0")
	require.NoError(t, b.SubmitForApproval("alice", testNow))
	require.NoError(t, b.Approve("bob", "ok", testNow))
	return b
}

func TestNewBudget_ScenarioContingency(t *testing.T) {
	b := newTestBudget(t, "1000", "10")
	assertDecimal(t, "100", b.ContingencyAmount)
	assertDecimal(t, "1100", b.TotalBudget())
	assert.Equal(t, BudgetDraft, b.Status)
	assert.Equal(t, BudgetOriginal, b.Type)
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, "v1", b.Version)
	assertDecimal(t, "1", b.ExchangeRate)
}

func TestNewBudget_Validation(t *testing.T) {
	base := NewBudgetInput{ID: "b", ProjectID: "p", Name: "B", Currency: "USD", TotalAmount: dec("10")}
	cases := map[string]func(in *NewBudgetInput){
		"blank name":        func(in *NewBudgetInput) { in.Name = " " },
		"negative total":    func(in *NewBudgetInput) { in.TotalAmount = dec("-1") },
		"contingency > 100": func(in *NewBudgetInput) { in.ContingencyPct = dec("100.1") },
		"reserve < 0":       func(in *NewBudgetInput) { in.ManagementReservePct = dec("-1") },
		"bad currency":      func(in *NewBudgetInput) { in.Currency = "DOLLARS" },
		"negative rate":     func(in *NewBudgetInput) { in.ExchangeRate = decimal.NewNullDecimal(dec("-1.2")) },
		"zero rate":         func(in *NewBudgetInput) { in.ExchangeRate = decimal.NewNullDecimal(decimal.Zero) },
		"unknown type":      func(in *NewBudgetInput) { in.Type = "wishful" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := NewBudget(in, testNow)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "%v", err)
		})
	}
}

func TestBudgetStateMachine_HappyPath(t *testing.T) {
	b := newTestBudget(t, "1000", "0")

	require.NoError(t, b.SubmitForApproval("alice", testNow))
	assert.Equal(t, BudgetUnderReview, b.Status)
	require.NotNil(t, b.SubmittedBy)

	require.NoError(t, b.Approve("bob", "looks right", testNow))
	assert.Equal(t, BudgetApproved, b.Status)
	assert.Equal(t, "looks right", b.ApprovalComments)

	require.NoError(t, b.SetAsBaseline("bob", testNow))
	assert.True(t, b.IsBaseline)
	require.NotNil(t, b.BaselineDate)

	require.NoError(t, b.Lock("bob", testNow))
	assert.True(t, b.IsLocked)
	assert.True(t, IsInvalidState(b.Lock("bob", testNow)))

	assert.True(t, IsInvalidState(b.RemoveBaseline("bob", testNow)), "locked")
	require.NoError(t, b.Unlock("bob", testNow))
	require.NoError(t, b.RemoveBaseline("bob", testNow))
	assert.False(t, b.IsBaseline)
	assert.Nil(t, b.BaselineDate)
}

func TestBudgetStateMachine_IllegalTransitions(t *testing.T) {
	b := newTestBudget(t, "1000", "0")
	assert.True(t, IsInvalidState(b.SetAsBaseline("u", testNow)), "baseline from draft")
	assert.True(t, IsInvalidState(b.Approve("u", "", testNow)), "approve a draft")
	assert.True(t, IsInvalidState(b.Reject("u", "no", testNow)), "reject a draft")
	assert.True(t, IsInvalidState(b.Lock("u", testNow)), "lock a draft")
	assert.True(t, IsInvalidState(b.Unlock("u", testNow)), "unlock an unlocked budget")
	assert.True(t, IsInvalidState(b.ReturnToDraft("u", testNow)))
	assert.True(t, IsInvalidState(b.RemoveBaseline("u", testNow)))
	assert.Equal(t, BudgetDraft, b.Status)

	require.NoError(t, b.SubmitForApproval("u", testNow))
	assert.True(t, IsInvalidState(b.SubmitForApproval("u", testNow)))
	assert.True(t, IsValidation(b.SubmitForApproval(" ", testNow)), "user required")
}

func TestReject_RequiresReason(t *testing.T) {
	b := newTestBudget(t, "1000", "0")
	require.NoError(t, b.SubmitForApproval("alice", testNow))

	for _, reason := range []string{"", "   ", "\t\n"} {
		err := b.Reject("bob", reason, testNow)
		require.Error(t, err)
		assert.True(t, IsValidation(err), "reason %q", reason)
	}
	assert.Equal(t, BudgetUnderReview, b.Status)

	require.NoError(t, b.Reject("bob", "too high", testNow))
	assert.Equal(t, BudgetRejected, b.Status)
	assert.Equal(t, "too high", b.RejectionReason)
}

func TestReturnToDraft_ClearsMetadata(t *testing.T) {
	b := newTestBudget(t, "1000", "0")
	require.NoError(t, b.SubmitForApproval("alice", testNow))
	require.NoError(t, b.Reject("bob", "redo", testNow))

	require.NoError(t, b.ReturnToDraft("alice", testNow))
	assert.Equal(t, BudgetDraft, b.Status)
	assert.Nil(t, b.SubmittedBy)
	assert.Nil(t, b.SubmittedAt)
	assert.Nil(t, b.RejectedBy)
	assert.Nil(t, b.RejectedAt)
	assert.Empty(t, b.RejectionReason)
	assert.Nil(t, b.ApprovedBy)
}

func TestLock_BaselineAllowsLockWithoutApprovedStatus(t *testing.T) {
	b := approvedBudget(t)
	require.NoError(t, b.SetAsBaseline("bob", testNow))
	b.Status = BudgetUnderReview // reachable only through external edits
	assert.NoError(t, b.Lock("bob", testNow))
}

func TestUpdateFinancials(t *testing.T) {
	b := newTestBudget(t, "1000", "0")
	require.NoError(t, b.UpdateFinancials(dec("2000"), dec("7.5"), dec("2.345"), "alice", testNow))
	assertDecimal(t, "150", b.ContingencyAmount)
	assertDecimal(t, "46.9", b.ManagementReserve)
	assertDecimal(t, "2196.9", b.TotalBudget())

	err := b.UpdateFinancials(dec("2000"), dec("101"), dec("0"), "alice", testNow)
	assert.True(t, IsValidation(err))
	assertDecimal(t, "150", b.ContingencyAmount, "failed call leaves state untouched")
}

func TestModifiabilityGate(t *testing.T) {
	mutators := map[string]func(b *Budget) error{
		"financials": func(b *Budget) error {
			return b.UpdateFinancials(dec("1"), dec("0"), dec("0"), "u", testNow)
		},
		"details": func(b *Budget) error { return b.UpdateDetails("New", "", "u", testNow) },
		"exchange rate": func(b *Budget) error {
			return b.UpdateExchangeRate("EUR", dec("1.1"), "u", testNow)
		},
		"add item": func(b *Budget) error {
			_, err := b.AddBudgetItem(BudgetItemInput{ID: "i2", ItemCode: "NEW", Description: "New"}, "u", testNow)
			return err
		},
		"update item": func(b *Budget) error {
			_, err := b.UpdateBudgetItemAmount("i1", dec("1"), dec("1"), "u", testNow)
			return err
		},
		"override item": func(b *Budget) error {
			_, err := b.OverrideBudgetItemAmount("i1", dec("1"), "u", testNow)
			return err
		},
		"remove item": func(b *Budget) error { return b.RemoveBudgetItem("i1", "u", testNow) },
	}
	states := map[string]func(t *testing.T) *Budget{
		"under review": func(t *testing.T) *Budget {
			b := withItem(t, newTestBudget(t, "1000", "0"))
			require.NoError(t, b.SubmitForApproval("u", testNow))
			return b
		},
		"approved": func(t *testing.T) *Budget {
			b := withItem(t, newTestBudget(t, "1000", "0"))
			require.NoError(t, b.SubmitForApproval("u", testNow))
			require.NoError(t, b.Approve("u", "", testNow))
			return b
		},
		"rejected": func(t *testing.T) *Budget {
			b := withItem(t, newTestBudget(t, "1000", "0"))
			require.NoError(t, b.SubmitForApproval("u", testNow))
			require.NoError(t, b.Reject("u", "no", testNow))
			return b
		},
		// Draft but locked: not reachable through the state machine, still blocked.
		"locked draft": func(t *testing.T) *Budget {
			b := withItem(t, newTestBudget(t, "1000", "0"))
			b.IsLocked = true
			return b
		},
	}
	for state, build := range states {
		for name, mutate := range mutators {
			t.Run(state+"/"+name, func(t *testing.T) {
				b := build(t)
				before := b.TotalAmount
				err := mutate(b)
				require.Error(t, err)
				assert.True(t, IsInvalidState(err), "%v", err)
				assert.True(t, before.Equal(b.TotalAmount))
				assert.Len(t, b.ActiveItems(), 1)
			})
		}
	}
}

func withItem(t *testing.T, b *Budget) *Budget {
	t.Helper()
	_, err := b.AddBudgetItem(BudgetItemInput{
		ID: "i1", ItemCode: "LAB-01", Description: "Crew", CostType: CostLabor,
		Quantity: dec("10"), UnitRate: dec("25"),
	}, "u", testNow)
	require.NoError(t, err)
	return b
}

func TestBudgetItems_Allocation(t *testing.T) {
	b := withItem(t, newTestBudget(t, "1000", "0"))
	assertDecimal(t, "250", b.AllocatedAmount())
	assertDecimal(t, "750", b.UnallocatedAmount())
	assert.False(t, b.IsOverAllocated())

	override := dec("900")
	_, err := b.AddBudgetItem(BudgetItemInput{
		ID: "i2", ItemCode: "MAT-01", Description: "Steel", CostType: CostMaterial,
		Quantity: dec("3"), UnitRate: dec("100"), Amount: &override,
	}, "u", testNow)
	require.NoError(t, err)
	assertDecimal(t, "1150", b.AllocatedAmount())
	assertDecimal(t, "-150", b.UnallocatedAmount())
	assert.True(t, b.IsOverAllocated())

	require.NoError(t, b.RemoveBudgetItem("i2", "u", testNow))
	assertDecimal(t, "250", b.AllocatedAmount())
	assert.Len(t, b.Items, 2, "removed items are kept")
	assert.True(t, IsNotFound(b.RemoveBudgetItem("i2", "u", testNow)))
}

func TestBudgetItem_Validation(t *testing.T) {
	b := withItem(t, newTestBudget(t, "1000", "0"))
	longCode := make([]byte, MaxItemCodeLength+1)
	for i := range longCode {
		longCode[i] = 'X'
	}
	neg := dec("-1")
	cases := map[string]BudgetItemInput{
		"blank code":     {ItemCode: " ", Description: "d"},
		"long code":      {ItemCode: string(longCode), Description: "d"},
		"no description": {ItemCode: "C"},
		"neg quantity":   {ItemCode: "C", Description: "d", Quantity: neg},
		"neg rate":       {ItemCode: "C", Description: "d", UnitRate: neg},
		"neg amount":     {ItemCode: "C", Description: "d", Amount: &neg},
		"bad cost type":  {ItemCode: "C", Description: "d", CostType: "magic"},
		"duplicate code": {ItemCode: "lab-01", Description: "d"},
	}
	for name, in := range cases {
		_, err := b.AddBudgetItem(in, "u", testNow)
		require.Error(t, err, name)
		assert.True(t, IsValidation(err), "%s: %v", name, err)
	}
	assert.Len(t, b.Items, 1)
}

func TestUpdateAmount_Idempotent(t *testing.T) {
	b := withItem(t, newTestBudget(t, "1000", "0"))
	pairs := [][2]string{{"4", "12.5"}, {"0", "99"}, {"1.5", "0.333"}}
	for _, p := range pairs {
		q, r := dec(p[0]), dec(p[1])
		want := q.Mul(r)
		for range 2 {
			item, err := b.UpdateBudgetItemAmount("i1", q, r, "u", testNow)
			require.NoError(t, err)
			assert.True(t, want.Equal(item.Amount), "q=%s r=%s amount=%s", q, r, item.Amount)
			assert.False(t, item.IsAmountOverridden)
		}
		assert.True(t, want.Equal(b.AllocatedAmount()))
	}
}

func TestOverrideThenUpdateAmount(t *testing.T) {
	b := withItem(t, newTestBudget(t, "1000", "0"))
	item, err := b.OverrideBudgetItemAmount("i1", dec("333"), "u", testNow)
	require.NoError(t, err)
	assert.True(t, item.IsAmountOverridden)
	assertDecimal(t, "333", item.Amount)

	item, err = b.UpdateBudgetItemAmount("i1", dec("2"), dec("3"), "u", testNow)
	require.NoError(t, err)
	assertDecimal(t, "6", item.Amount)
	assert.False(t, item.IsAmountOverridden)

	_, err = b.UpdateBudgetItemAmount("missing", dec("1"), dec("1"), "u", testNow)
	assert.True(t, IsNotFound(err))
}

func TestCreateRevisionRecord(t *testing.T) {
	b := newTestBudget(t, "1000", "0")
	r1, err := b.CreateRevisionRecord("r1", 1, "initial", "alice", testNow)
	require.NoError(t, err)
	assertDecimal(t, "0", r1.PreviousAmount)
	assertDecimal(t, "1000", r1.NewAmount)
	assertDecimal(t, "1000", r1.ChangeAmount())
	assert.Equal(t, 1, b.RevisionCount)

	require.NoError(t, b.UpdateFinancials(dec("1200"), dec("0"), dec("0"), "alice", testNow))
	r2, err := b.CreateRevisionRecord("r2", 2, "scope growth", "alice", testNow)
	require.NoError(t, err)
	assertDecimal(t, "1000", r2.PreviousAmount)
	assertDecimal(t, "200", r2.ChangeAmount())

	_, err = b.CreateRevisionRecord("r4", 4, "skip", "alice", testNow)
	assert.True(t, IsValidation(err))
	_, err = b.CreateRevisionRecord("r2b", 2, "repeat", "alice", testNow)
	assert.True(t, IsValidation(err))
	_, err = b.CreateRevisionRecord("r3", 3, " ", "alice", testNow)
	assert.True(t, IsValidation(err))
	assert.Len(t, b.Revisions, 2)
	assert.Same(t, r2, b.LatestRevision())
}

func TestApproveRevision(t *testing.T) {
	b := newTestBudget(t, "1000", "0")
	_, err := b.CreateRevisionRecord("r1", 1, "initial", "alice", testNow)
	require.NoError(t, err)

	r, err := b.ApproveRevision(1, "bob", testNow)
	require.NoError(t, err)
	assert.True(t, r.IsApproved)
	assertDecimal(t, "1000", r.NewAmount)

	_, err = b.ApproveRevision(1, "bob", testNow)
	assert.True(t, IsInvalidState(err))
	_, err = b.ApproveRevision(7, "bob", testNow)
	assert.True(t, IsNotFound(err))
}

func TestNewRevisionOf(t *testing.T) {
	parent, err := NewBudget(NewBudgetInput{
		ID: "parent", ProjectID: "p1", Version: "v2", Name: "Control budget", Type: BudgetOriginal,
		Currency: "EUR", ExchangeRate: decimal.NewNullDecimal(dec("1.08")), TotalAmount: dec("5000"),
		ContingencyPct: dec("5"), ManagementReservePct: dec("2"), CreatedBy: "alice",
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, parent.SubmitForApproval("alice", testNow))
	require.NoError(t, parent.Approve("bob", "", testNow))

	rev, err := NewRevisionOf(parent, RevisionInput{ID: "child", Reason: "change order 7", RevisionID: "rev-1", CreatedBy: "carol"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, BudgetDraft, rev.Status)
	require.NotNil(t, rev.ParentBudgetID)
	assert.Equal(t, "parent", *rev.ParentBudgetID)
	assert.Equal(t, "v2-R1", rev.Version)
	assert.Equal(t, "Control budget", rev.Name)
	assert.Equal(t, "EUR", rev.Currency)
	assertDecimal(t, "1.08", rev.ExchangeRate)
	assertDecimal(t, "5000", rev.TotalAmount)
	assertDecimal(t, "250", rev.ContingencyAmount)
	assertDecimal(t, "100", rev.ManagementReserve)
	assert.False(t, rev.IsBaseline)

	require.Len(t, rev.Revisions, 1)
	assert.Equal(t, 1, rev.RevisionCount)
	assert.Equal(t, 1, rev.Revisions[0].RevisionNumber)
	assert.Equal(t, "child", rev.Revisions[0].BudgetID)
	assertDecimal(t, "5000", rev.Revisions[0].PreviousAmount)

	_, err = NewRevisionOf(parent, RevisionInput{ID: "x", CreatedBy: "carol"}, testNow)
	assert.True(t, IsValidation(err), "reason required")
}

func TestNewBudget_ExchangeRate(t *testing.T) {
	base := NewBudgetInput{ID: "b", ProjectID: "p", Name: "B", Currency: "EUR", TotalAmount: dec("10")}

	b, err := NewBudget(base, testNow)
	require.NoError(t, err)
	assertDecimal(t, "1", b.ExchangeRate)

	withRate := base
	withRate.ExchangeRate = decimal.NewNullDecimal(dec("0.92"))
	b, err = NewBudget(withRate, testNow)
	require.NoError(t, err)
	assertDecimal(t, "0.92", b.ExchangeRate)

	zero := base
	zero.ExchangeRate = decimal.NewNullDecimal(decimal.Zero)
	_, err = NewBudget(zero, testNow)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "exchange rate must be > 0")
}

func TestEnsureVersionAvailable(t *testing.T) {
	live := &Budget{ID: "a", Version: "v1"}
	deleted := &Budget{ID: "b", Version: "v2", IsDeleted: true}
	existing := []*Budget{live, deleted}

	err := EnsureVersionAvailable(existing, "V1", "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), `version "V1" is already used`)

	assert.NoError(t, EnsureVersionAvailable(existing, "v1", "a"), "a budget does not clash with itself")
	assert.NoError(t, EnsureVersionAvailable(existing, "v2", ""), "deleted budgets free their version")
	assert.NoError(t, EnsureVersionAvailable(nil, "v1", ""))
}

func TestNextRevisionVersion(t *testing.T) {
	parent := &Budget{ID: "p", Version: "v1"}
	pid := parent.ID
	assert.Equal(t, "v1-R1", NextRevisionVersion(parent, []*Budget{parent}))

	first := &Budget{ID: "r1", Version: "v1-R1", ParentBudgetID: &pid}
	assert.Equal(t, "v1-R2", NextRevisionVersion(parent, []*Budget{parent, first}))

	dropped := &Budget{ID: "r2", Version: "v1-R2", ParentBudgetID: &pid, IsDeleted: true}
	assert.Equal(t, "v1-R3", NextRevisionVersion(parent, []*Budget{parent, first, dropped}),
		"deleted revisions still advance the sequence")

	// A label taken by hand is skipped.
	manual := &Budget{ID: "m", Version: "v1-R2"}
	assert.Equal(t, "v1-R3", NextRevisionVersion(parent, []*Budget{parent, first, manual}))
}

func TestSoftDelete(t *testing.T) {
	b := newTestBudget(t, "1", "0")
	require.NoError(t, b.SoftDelete("alice", testNow))
	assert.True(t, b.IsDeleted)
	assert.True(t, IsNotFound(b.SoftDelete("alice", testNow)))
	assert.True(t, IsNotFound(b.SubmitForApproval("alice", testNow)))

	approved := approvedBudget(t)
	assert.True(t, IsInvalidState(approved.SoftDelete("alice", testNow)))

	baseline := approvedBudget(t)
	require.NoError(t, baseline.SetAsBaseline("bob", testNow))
	assert.True(t, IsInvalidState(baseline.SoftDelete("alice", testNow)))
}

func TestTotalBudget_EqualsSumOfParts(t *testing.T) {
	b := newTestBudget(t, "0", "0")
	require.NoError(t, b.UpdateFinancials(dec("12345.67"), dec("3"), dec("1.5"), "u", testNow))
	sum := decimal.Sum(b.TotalAmount, b.ContingencyAmount, b.ManagementReserve)
	assert.True(t, sum.Equal(b.TotalBudget()))
}
