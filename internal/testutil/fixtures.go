package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testCodeCounter atomic.Int64

// Project options
type ProjectOption func(*domain.Project)

func WithProjectCode(code string) ProjectOption {
	return func(p *domain.Project) {
		p.Code = code
	}
}

func WithProjectCurrency(c string) ProjectOption {
	return func(p *domain.Project) {
		p.Currency = c
	}
}

func WithStartDate(d time.Time) ProjectOption {
	return func(p *domain.Project) {
		p.StartDate = &d
	}
}

func WithInactive() ProjectOption {
	return func(p *domain.Project) {
		p.IsActive = false
	}
}

// NewTestProject builds an active project with a unique code like "PRJ-101".
func NewTestProject(name string, opts ...ProjectOption) *domain.Project {
	p := &domain.Project{
		ID:        uuid.New().String(),
		Code:      fmt.Sprintf("PRJ-%03d", 100+testCodeCounter.Add(1)),
		Name:      name,
		Currency:  "USD",
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WBS node options
type NodeOption func(*domain.WBSNode)

func WithParent(parent *domain.WBSNode) NodeOption {
	return func(n *domain.WBSNode) {
		id := parent.ID
		n.ParentID = &id
		n.Level = parent.Level + 1
		n.FullPath = parent.FullPath + domain.PathSeparator + n.Name
	}
}

func WithSequence(seq int) NodeOption {
	return func(n *domain.WBSNode) {
		n.Sequence = seq
	}
}

// AsWorkPackage attaches a not-started work package detail with the given budget.
func AsWorkPackage(budget string) NodeOption {
	return func(n *domain.WBSNode) {
		detail, err := domain.NewWorkPackageDetail(uuid.New().String(), n.ID,
			domain.ProgressPercentComplete, decimal.RequireFromString(budget), "USD", Now)
		if err != nil {
			panic(err)
		}
		n.Element = domain.WorkPackageElement{Detail: detail}
	}
}

// AsPlanningPackage marks the node as a planning package with an estimate.
func AsPlanningPackage(estimate string) NodeOption {
	return func(n *domain.WBSNode) {
		n.Element = domain.PlanningPackageElement{EstimatedBudget: decimal.RequireFromString(estimate)}
	}
}

func WithDeleted() NodeOption {
	return func(n *domain.WBSNode) {
		at := Now
		by := "tester"
		n.IsDeleted = true
		n.DeletedAt = &at
		n.DeletedBy = &by
	}
}

// NewTestNode builds a level-1 summary node. Options run in order, so
// WithParent should come before options that depend on the level.
func NewTestNode(projectID, code, name string, opts ...NodeOption) *domain.WBSNode {
	n := &domain.WBSNode{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Code:      code,
		Name:      name,
		Level:     1,
		Sequence:  1,
		FullPath:  name,
		Element:   domain.SummaryElement{},
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Budget options
type BudgetOption func(*domain.Budget)

func WithBudgetStatus(s domain.BudgetStatus) BudgetOption {
	return func(b *domain.Budget) {
		b.Status = s
	}
}

// WithVersion sets the version label. Live budgets of a project need
// distinct labels.
func WithVersion(v string) BudgetOption {
	return func(b *domain.Budget) {
		b.Version = v
	}
}

func WithTotal(total string) BudgetOption {
	return func(b *domain.Budget) {
		b.TotalAmount = decimal.RequireFromString(total)
	}
}

func WithLocked(by string) BudgetOption {
	return func(b *domain.Budget) {
		at := Now
		b.IsLocked = true
		b.LockedBy = &by
		b.LockedAt = &at
	}
}

// WithItem appends an active item with Amount = quantity x rate.
func WithItem(code, quantity, rate string) BudgetOption {
	return func(b *domain.Budget) {
		q := decimal.RequireFromString(quantity)
		r := decimal.RequireFromString(rate)
		b.Items = append(b.Items, &domain.BudgetItem{
			ID:          uuid.New().String(),
			BudgetID:    b.ID,
			ItemCode:    code,
			Description: "item " + code,
			CostType:    domain.CostLabor,
			Quantity:    q,
			UnitRate:    r,
			Amount:      q.Mul(r),
			SortOrder:   len(b.Items) + 1,
			CreatedAt:   Now,
			UpdatedAt:   Now,
		})
	}
}

// NewTestBudget builds a draft USD budget with a total of 100000.
func NewTestBudget(projectID, name string, opts ...BudgetOption) *domain.Budget {
	b := &domain.Budget{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		Version:      "v1",
		Name:         name,
		Status:       domain.BudgetDraft,
		Type:         domain.BudgetOriginal,
		Currency:     "USD",
		ExchangeRate: decimal.NewFromInt(1),
		TotalAmount:  decimal.NewFromInt(100000),
		CreatedBy:    "tester",
		CreatedAt:    Now,
		UpdatedAt:    Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Planning package options
type PlanningOption func(*domain.PlanningPackage)

func WithConversionDate(d time.Time) PlanningOption {
	return func(p *domain.PlanningPackage) {
		p.PlannedConversionDate = &d
	}
}

func WithPriority(n int) PlanningOption {
	return func(p *domain.PlanningPackage) {
		p.Priority = n
	}
}

func WithEstimate(budget, hours string) PlanningOption {
	return func(p *domain.PlanningPackage) {
		p.EstimatedBudget = decimal.RequireFromString(budget)
		p.EstimatedHours = decimal.RequireFromString(hours)
	}
}

func NewTestPlanningPackage(projectID, code, name string, opts ...PlanningOption) *domain.PlanningPackage {
	p := &domain.PlanningPackage{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Code:      code,
		Name:      name,
		Priority:  domain.DefaultPlanningPriority,
		IsActive:  true,
		CreatedBy: "tester",
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
