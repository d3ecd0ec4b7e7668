package importer

import (
	"slices"
	"strings"
	"time"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Plan is a validated import ready to be applied in order.
type Plan struct {
	Project *ProjectPlan
	Nodes   []NodePlan
	Budgets []BudgetPlan
}

type ProjectPlan struct {
	Code        string
	Name        string
	Description string
	Currency    string
	StartDate   *time.Time
}

// NodePlan is one node creation plus the facts recorded on it afterwards.
type NodePlan struct {
	ParentCode string
	Input      domain.NewNodeInput

	Budget       *decimal.Decimal
	Progress     *float64
	PlannedStart *time.Time
	PlannedEnd   *time.Time

	Estimate  *decimal.Decimal
	ConvertBy *time.Time
}

type BudgetPlan struct {
	Input domain.NewBudgetInput
	Items []domain.BudgetItemInput
}

// Convert turns a validated ImportSchema into a Plan. Nodes are ordered by
// depth and then by code so every parent is created before its children.
// Call ValidateImportSchema first; Convert assumes the schema is valid.
func Convert(schema *ImportSchema) *Plan {
	plan := &Plan{}

	if p := schema.Project; p != nil {
		plan.Project = &ProjectPlan{
			Code:        p.Code,
			Name:        p.Name,
			Description: p.Description,
			Currency:    strings.ToUpper(p.Currency),
			StartDate:   parseOptionalDate(p.StartDate),
		}
	}

	for _, n := range schema.Nodes {
		plan.Nodes = append(plan.Nodes, NodePlan{
			ParentCode: ParentCode(n.Code),
			Input: domain.NewNodeInput{
				Code:             n.Code,
				Name:             n.Name,
				Description:      n.Description,
				Kind:             nodeKind(n),
				ControlAccountID: n.ControlAccount,
				ProgressMethod:   domain.ProgressMethod(n.Method),
			},
			Budget:       n.Budget,
			Progress:     n.Progress,
			PlannedStart: parseOptionalDate(n.PlannedStart),
			PlannedEnd:   parseOptionalDate(n.PlannedEnd),
			Estimate:     n.Estimate,
			ConvertBy:    parseOptionalDate(n.ConvertBy),
		})
	}
	slices.SortStableFunc(plan.Nodes, func(a, b NodePlan) int {
		da, db := strings.Count(a.Input.Code, "."), strings.Count(b.Input.Code, ".")
		if da != db {
			return da - db
		}
		return domain.CompareCodes(a.Input.Code, b.Input.Code)
	})

	for _, b := range schema.Budgets {
		bp := BudgetPlan{
			Input: domain.NewBudgetInput{
				Version:              b.Version,
				Name:                 b.Name,
				Description:          b.Description,
				Type:                 domain.BudgetType(b.Type),
				Currency:             strings.ToUpper(b.Currency),
				TotalAmount:          b.Total,
				ContingencyPct:       b.Contingency,
				ManagementReservePct: b.Reserve,
			},
		}
		for i, it := range b.Items {
			bp.Items = append(bp.Items, domain.BudgetItemInput{
				ControlAccountID: it.ControlAccount,
				ItemCode:         it.Code,
				Description:      it.Description,
				CostType:         domain.CostType(it.CostType),
				CostCategory:     it.Category,
				Quantity:         it.Quantity,
				UnitRate:         it.Rate,
				Amount:           it.Amount,
				UnitOfMeasure:    it.UnitOfMeasure,
				AccountingCode:   it.AccountingCode,
				SortOrder:        i + 1,
			})
		}
		plan.Budgets = append(plan.Budgets, bp)
	}

	return plan
}

func parseOptionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
