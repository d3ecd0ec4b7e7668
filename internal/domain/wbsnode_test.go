package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWBSNode_KindFollowsElement(t *testing.T) {
	n := &WBSNode{ID: "n-1"}
	assert.Equal(t, NodeSummary, n.Kind(), "nil element is a summary")
	assert.True(t, n.CanHaveChildren())

	n.Element = PlanningPackageElement{EstimatedBudget: dec("10")}
	assert.Equal(t, NodePlanningPackage, n.Kind())
	assert.False(t, n.CanHaveChildren())
	_, ok := n.PlanningPackage()
	assert.True(t, ok)
}

func TestWBSNode_RequireWorkPackage(t *testing.T) {
	n := &WBSNode{ID: "n-1", Element: SummaryElement{}}
	_, err := n.RequireWorkPackage("update progress")
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
	assert.Contains(t, err.Error(), "update progress")

	detail, err := NewWorkPackageDetail("d-1", "n-1", "", dec("0"), "USD", testNow)
	require.NoError(t, err)
	n.Element = WorkPackageElement{Detail: detail}
	got, err := n.RequireWorkPackage("update progress")
	require.NoError(t, err)
	assert.Same(t, detail, got)

	n.Element = WorkPackageElement{}
	_, err = n.RequireWorkPackage("baseline")
	assert.True(t, IsInvalidState(err), "a work package element without detail is unusable")
}

func TestWBSNode_RenameAndDescribe(t *testing.T) {
	n := &WBSNode{ID: "n-1", Name: "Old"}
	assert.True(t, IsValidation(n.Rename("  ", testNow)))
	assert.Equal(t, "Old", n.Name)

	require.NoError(t, n.Rename(" New ", testNow))
	assert.Equal(t, "New", n.Name)

	assert.True(t, IsValidation(n.UpdateCode("1..2", testNow)))
	require.NoError(t, n.UpdateCode("1.2", testNow))
	assert.Equal(t, "1.2", n.Code)

	n.AssignControlAccount("CA-1", testNow)
	require.NotNil(t, n.ControlAccountID)
	n.AssignControlAccount("", testNow)
	assert.Nil(t, n.ControlAccountID)
	assert.Equal(t, testNow, n.UpdatedAt)
}
