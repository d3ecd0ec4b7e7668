package service

import (
	"context"
	"time"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/alexanderramin/wbsledger/internal/importer"
	"github.com/shopspring/decimal"
)

type CreateProjectInput struct {
	Code        string
	Name        string
	Description string
	Currency    string
	StartDate   *time.Time
}

type ProjectService interface {
	Create(ctx context.Context, in CreateProjectInput) (*domain.Project, error)
	// Resolve accepts a project id or code.
	Resolve(ctx context.Context, ref string) (*domain.Project, error)
	List(ctx context.Context, includeInactive bool) ([]*domain.Project, error)
}

// WBSService applies tree operations to a project's WBS and persists the
// nodes they touch in one transaction.
type WBSService interface {
	AddRoot(ctx context.Context, projectID string, in domain.NewNodeInput) (*domain.WBSNode, error)
	AddChild(ctx context.Context, parentID string, in domain.NewNodeInput) (*domain.WBSNode, error)
	GetNode(ctx context.Context, id string) (*domain.WBSNode, error)
	Tree(ctx context.Context, projectID string) (*domain.Tree, error)
	Rollup(ctx context.Context, id string) (domain.NodeRollup, error)

	Rename(ctx context.Context, id, name string) (*domain.WBSNode, error)
	UpdateCode(ctx context.Context, id, code string) (*domain.WBSNode, error)
	Describe(ctx context.Context, id, description string, dict domain.WBSDictionary) (*domain.WBSNode, error)
	AssignControlAccount(ctx context.Context, id, controlAccountID string) (*domain.WBSNode, error)
	ConvertToWorkPackage(ctx context.Context, id, controlAccountID string, method domain.ProgressMethod) (*domain.WBSNode, error)
	ConvertToPlanningPackage(ctx context.Context, id, controlAccountID string) (*domain.WBSNode, error)
	ConvertPlanningPackageToWorkPackage(ctx context.Context, id string, method domain.ProgressMethod) (*domain.WBSNode, error)
	UpdatePlanningEstimate(ctx context.Context, id string, budget decimal.Decimal, conversion *time.Time) (*domain.WBSNode, error)
	Delete(ctx context.Context, id string) (*domain.WBSNode, error)
	Restore(ctx context.Context, id string) (*domain.WBSNode, error)

	AddCBSMapping(ctx context.Context, id, cbsID string, pct decimal.Decimal, primary bool) (*domain.WBSNode, error)
	RemoveCBSMapping(ctx context.Context, id, cbsID string) (*domain.WBSNode, error)

	UpdateProgress(ctx context.Context, id string, pct float64, physical *float64) (*domain.WBSNode, error)
	SetStatus(ctx context.Context, id string, status domain.WorkPackageStatus) (*domain.WBSNode, error)
	UpdateEarnedValue(ctx context.Context, id string, earned, planned decimal.Decimal) (*domain.WBSNode, error)
	UpdateActualCost(ctx context.Context, id string, actual decimal.Decimal) (*domain.WBSNode, error)
	UpdateCommittedCost(ctx context.Context, id string, committed decimal.Decimal) (*domain.WBSNode, error)
	UpdateBudget(ctx context.Context, id string, amount decimal.Decimal, currency string) (*domain.WBSNode, error)
	UpdateSchedule(ctx context.Context, id string, start, end time.Time) (*domain.WBSNode, error)
	UpdateFloat(ctx context.Context, id string, totalFloat, freeFloat int, critical bool) (*domain.WBSNode, error)
	AssignResponsibility(ctx context.Context, id, userID, disciplineID string) (*domain.WBSNode, error)
	Baseline(ctx context.Context, id string) (*domain.WBSNode, error)
}

// BudgetAction names a workflow transition that takes only the acting user.
type BudgetAction string

const (
	ActionSubmit         BudgetAction = "submit"
	ActionReturnToDraft  BudgetAction = "return-to-draft"
	ActionSetBaseline    BudgetAction = "set-baseline"
	ActionRemoveBaseline BudgetAction = "remove-baseline"
	ActionLock           BudgetAction = "lock"
	ActionUnlock         BudgetAction = "unlock"
	ActionDelete         BudgetAction = "delete"
)

type BudgetService interface {
	Create(ctx context.Context, in domain.NewBudgetInput) (*domain.Budget, error)
	// Revise creates a new draft budget derived from parentID.
	Revise(ctx context.Context, parentID, version, reason string) (*domain.Budget, error)
	Get(ctx context.Context, id string) (*domain.Budget, error)
	List(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.Budget, error)

	Transition(ctx context.Context, id string, action BudgetAction) (*domain.Budget, error)
	Approve(ctx context.Context, id, comments string) (*domain.Budget, error)
	Reject(ctx context.Context, id, reason string) (*domain.Budget, error)

	UpdateFinancials(ctx context.Context, id string, total, contingencyPct, reservePct decimal.Decimal) (*domain.Budget, error)
	UpdateDetails(ctx context.Context, id, name, description string) (*domain.Budget, error)
	UpdateExchangeRate(ctx context.Context, id, currency string, rate decimal.Decimal) (*domain.Budget, error)

	AddItem(ctx context.Context, budgetID string, in domain.BudgetItemInput) (*domain.BudgetItem, error)
	UpdateItemAmount(ctx context.Context, budgetID, itemID string, quantity, unitRate decimal.Decimal) (*domain.BudgetItem, error)
	OverrideItemAmount(ctx context.Context, budgetID, itemID string, amount decimal.Decimal) (*domain.BudgetItem, error)
	RemoveItem(ctx context.Context, budgetID, itemID string) (*domain.Budget, error)

	RecordRevision(ctx context.Context, id, reason string) (*domain.BudgetRevision, error)
	ApproveRevision(ctx context.Context, id string, number int) (*domain.BudgetRevision, error)
}

type PlanningService interface {
	Create(ctx context.Context, in domain.NewPlanningPackageInput) (*domain.PlanningPackage, error)
	Get(ctx context.Context, id string) (*domain.PlanningPackage, error)
	List(ctx context.Context, projectID string, includeDeleted bool) ([]*domain.PlanningPackage, error)
	UpdateSchedule(ctx context.Context, id string, start, end, conversion *time.Time) (*domain.PlanningPackage, error)
	UpdateEstimate(ctx context.Context, id string, budget, hours decimal.Decimal) (*domain.PlanningPackage, error)
	UpdatePriority(ctx context.Context, id string, priority int) (*domain.PlanningPackage, error)
	Convert(ctx context.Context, id string) (*domain.PlanningPackage, error)
	Delete(ctx context.Context, id string) (*domain.PlanningPackage, error)
	// Status derives the planning status at the service clock's now.
	Status(p *domain.PlanningPackage) domain.PlanningPackageStatus
}

type ImportOptions struct {
	// ProjectRef imports into an existing project (id or code) instead of
	// creating the one described in the file.
	ProjectRef string
	// DefaultCurrency applies when the file's project names no currency.
	DefaultCurrency string
	// DryRun applies the whole import and then rolls it back.
	DryRun bool
}

type ImportResult struct {
	Project     *domain.Project
	NodeCount   int
	BudgetCount int
	ItemCount   int
	DryRun      bool
}

// ImportService loads a WBS and its draft budgets from a JSON or YAML file.
// Either everything in the file is stored or nothing is.
type ImportService interface {
	ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error)
	Import(ctx context.Context, schema *importer.ImportSchema, opts ImportOptions) (*ImportResult, error)
}
