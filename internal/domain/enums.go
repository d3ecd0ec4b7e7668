package domain

type NodeKind string

const (
	NodeSummary         NodeKind = "summary"
	NodeWorkPackage     NodeKind = "work_package"
	NodePlanningPackage NodeKind = "planning_package"
)

// ValidNodeKinds is the canonical set of accepted node kind strings.
var ValidNodeKinds = map[string]bool{
	"summary": true, "work_package": true, "planning_package": true,
}

type ProgressMethod string

const (
	ProgressPercentComplete ProgressMethod = "percent_complete"
	ProgressMilestone       ProgressMethod = "milestone"
	ProgressUnitsComplete   ProgressMethod = "units_complete"
	ProgressLevelOfEffort   ProgressMethod = "level_of_effort"
	ProgressZeroHundred     ProgressMethod = "zero_hundred"
	ProgressFiftyFifty      ProgressMethod = "fifty_fifty"
)

// ValidProgressMethods is the canonical set of accepted progress methods.
var ValidProgressMethods = map[ProgressMethod]bool{
	ProgressPercentComplete: true,
	ProgressMilestone:       true,
	ProgressUnitsComplete:   true,
	ProgressLevelOfEffort:   true,
	ProgressZeroHundred:     true,
	ProgressFiftyFifty:      true,
}

type WorkPackageStatus string

const (
	WPNotStarted WorkPackageStatus = "not_started"
	WPInProgress WorkPackageStatus = "in_progress"
	WPCompleted  WorkPackageStatus = "completed"
	WPOnHold     WorkPackageStatus = "on_hold"
	WPCancelled  WorkPackageStatus = "cancelled"
)

type BudgetStatus string

const (
	BudgetDraft       BudgetStatus = "draft"
	BudgetUnderReview BudgetStatus = "under_review"
	BudgetApproved    BudgetStatus = "approved"
	BudgetRejected    BudgetStatus = "rejected"
)

type BudgetType string

const (
	BudgetOriginal     BudgetType = "original"
	BudgetRevised      BudgetType = "revised"
	BudgetSupplemental BudgetType = "supplemental"
	BudgetForecast     BudgetType = "forecast"
)

// ValidBudgetTypes is the canonical set of accepted budget types.
var ValidBudgetTypes = map[BudgetType]bool{
	BudgetOriginal:     true,
	BudgetRevised:      true,
	BudgetSupplemental: true,
	BudgetForecast:     true,
}

type CostType string

const (
	CostLabor       CostType = "labor"
	CostMaterial    CostType = "material"
	CostEquipment   CostType = "equipment"
	CostSubcontract CostType = "subcontract"
	CostOther       CostType = "other"
)

// ValidCostTypes is the canonical set of accepted cost types.
var ValidCostTypes = map[CostType]bool{
	CostLabor:       true,
	CostMaterial:    true,
	CostEquipment:   true,
	CostSubcontract: true,
	CostOther:       true,
}

type PlanningPackageStatus string

const (
	PlanningFuture             PlanningPackageStatus = "future"
	PlanningNearTerm           PlanningPackageStatus = "near_term"
	PlanningReadyForConversion PlanningPackageStatus = "ready_for_conversion"
	PlanningConverted          PlanningPackageStatus = "converted"
)
