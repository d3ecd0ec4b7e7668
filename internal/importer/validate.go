package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/wbsledger/internal/domain"
)

const dateLayout = "2006-01-02"

// ValidateImportSchema checks the import schema for errors before conversion.
// Returns a slice of all validation errors found.
func ValidateImportSchema(schema *ImportSchema) []error {
	var errs []error

	if schema.Project != nil {
		errs = append(errs, validateProject(schema.Project)...)
	}
	errs = append(errs, validateNodes(schema.Nodes)...)
	errs = append(errs, validateBudgets(schema.Budgets)...)

	return errs
}

func validateProject(p *ProjectImport) []error {
	var errs []error

	if p.Code == "" {
		errs = append(errs, fmt.Errorf("project.code is required"))
	}
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("project.name is required"))
	}
	if p.Currency != "" {
		if err := domain.ValidateCurrency(strings.ToUpper(p.Currency)); err != nil {
			errs = append(errs, fmt.Errorf("project.currency: invalid value %q", p.Currency))
		}
	}
	errs = append(errs, validateOptionalDate("project.start_date", p.StartDate)...)

	return errs
}

// ParentCode returns the code a node is created under, or "" for a root.
func ParentCode(code string) string {
	i := strings.LastIndex(code, ".")
	if i < 0 {
		return ""
	}
	return code[:i]
}

func nodeKind(n NodeImport) domain.NodeKind {
	if n.Kind == "" {
		return domain.NodeSummary
	}
	return domain.NodeKind(n.Kind)
}

func validateNodes(nodes []NodeImport) []error {
	var errs []error

	kinds := make(map[string]domain.NodeKind, len(nodes))
	for i, n := range nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)

		if n.Code == "" {
			errs = append(errs, fmt.Errorf("%s.code is required", prefix))
		} else if err := domain.ValidateCode(n.Code); err != nil {
			errs = append(errs, fmt.Errorf("%s.code: invalid WBS code %q", prefix, n.Code))
		} else if _, dup := kinds[n.Code]; dup {
			errs = append(errs, fmt.Errorf("%s.code: duplicate code %q", prefix, n.Code))
		} else {
			kinds[n.Code] = nodeKind(n)
		}

		if n.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if !domain.ValidNodeKinds[string(nodeKind(n))] {
			errs = append(errs, fmt.Errorf("%s.kind: invalid value %q", prefix, n.Kind))
		}
	}

	for i, n := range nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)
		kind := nodeKind(n)

		parent := ParentCode(n.Code)
		if parent == "" && kind != domain.NodeSummary {
			errs = append(errs, fmt.Errorf("%s: top-level node %q must be a summary", prefix, n.Code))
		}
		if pk, ok := kinds[parent]; ok && pk != domain.NodeSummary {
			errs = append(errs, fmt.Errorf("%s: parent %q is a %s and cannot have children", prefix, parent, pk))
		}

		if kind != domain.NodeWorkPackage {
			if n.Method != "" || n.Budget != nil || n.Progress != nil || n.PlannedStart != "" || n.PlannedEnd != "" {
				errs = append(errs, fmt.Errorf("%s: method, budget, progress and planned dates apply to work packages only", prefix))
			}
		}
		if kind != domain.NodePlanningPackage && (n.Estimate != nil || n.ConvertBy != "") {
			errs = append(errs, fmt.Errorf("%s: estimate and convert_by apply to planning packages only", prefix))
		}

		if n.Method != "" && !domain.ValidProgressMethods[domain.ProgressMethod(n.Method)] {
			errs = append(errs, fmt.Errorf("%s.method: invalid value %q", prefix, n.Method))
		}
		if n.Budget != nil && n.Budget.IsNegative() {
			errs = append(errs, fmt.Errorf("%s.budget must be >= 0", prefix))
		}
		if n.Estimate != nil && n.Estimate.IsNegative() {
			errs = append(errs, fmt.Errorf("%s.estimate must be >= 0", prefix))
		}
		if n.Progress != nil && (*n.Progress < 0 || *n.Progress > 100) {
			errs = append(errs, fmt.Errorf("%s.progress must be between 0 and 100", prefix))
		}

		errs = append(errs, validateOptionalDate(prefix+".planned_start", n.PlannedStart)...)
		errs = append(errs, validateOptionalDate(prefix+".planned_end", n.PlannedEnd)...)
		errs = append(errs, validateOptionalDate(prefix+".convert_by", n.ConvertBy)...)
		if (n.PlannedStart == "") != (n.PlannedEnd == "") {
			errs = append(errs, fmt.Errorf("%s: planned_start and planned_end must be given together", prefix))
		} else if n.PlannedStart != "" {
			start, startErr := time.Parse(dateLayout, n.PlannedStart)
			end, endErr := time.Parse(dateLayout, n.PlannedEnd)
			if startErr == nil && endErr == nil && end.Before(start) {
				errs = append(errs, fmt.Errorf("%s.planned_end %q must not be before planned_start %q", prefix, n.PlannedEnd, n.PlannedStart))
			}
		}
	}

	return errs
}

func validateBudgets(budgets []BudgetImport) []error {
	var errs []error

	versions := make(map[string]bool)
	for i, b := range budgets {
		prefix := fmt.Sprintf("budgets[%d]", i)

		if b.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		version := strings.ToLower(domain.CoalesceStr(b.Version, "v1"))
		if versions[version] {
			errs = append(errs, fmt.Errorf("%s.version: duplicate version %q", prefix, version))
		}
		versions[version] = true

		if b.Type != "" && !domain.ValidBudgetTypes[domain.BudgetType(b.Type)] {
			errs = append(errs, fmt.Errorf("%s.type: invalid value %q", prefix, b.Type))
		}
		if b.Total.IsNegative() {
			errs = append(errs, fmt.Errorf("%s.total must be >= 0", prefix))
		}

		codes := make(map[string]bool)
		for j, it := range b.Items {
			ip := fmt.Sprintf("%s.items[%d]", prefix, j)
			if it.Code == "" {
				errs = append(errs, fmt.Errorf("%s.code is required", ip))
			} else if key := strings.ToLower(it.Code); codes[key] {
				errs = append(errs, fmt.Errorf("%s.code: duplicate code %q", ip, it.Code))
			} else {
				codes[key] = true
			}
			if it.Description == "" {
				errs = append(errs, fmt.Errorf("%s.description is required", ip))
			}
			if it.CostType != "" && !domain.ValidCostTypes[domain.CostType(it.CostType)] {
				errs = append(errs, fmt.Errorf("%s.cost_type: invalid value %q", ip, it.CostType))
			}
		}
	}

	return errs
}

func validateOptionalDate(field, value string) []error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return []error{fmt.Errorf("%s: invalid date format %q (expected YYYY-MM-DD)", field, value)}
	}
	return nil
}
