package formatter

import (
	"strconv"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/domain"
)

func itoa(n int) string { return strconv.Itoa(n) }

// FormatPlanningList renders planning packages; status derives each one's
// status at the caller's clock.
func FormatPlanningList(pkgs []*domain.PlanningPackage, currency string, status func(*domain.PlanningPackage) domain.PlanningPackageStatus) string {
	headers := []string{"ID", "CODE", "NAME", "PRIORITY", "ESTIMATE", "CONVERT BY", "STATUS"}
	rows := make([][]string, 0, len(pkgs))
	for _, p := range pkgs {
		rows = append(rows, []string{
			TruncID(p.ID),
			p.Code,
			Bold(p.Name),
			itoa(p.Priority),
			FormatMoney(p.EstimatedBudget, currency),
			FormatDate(p.PlannedConversionDate),
			PlanningStatusPill(status(p)),
		})
	}
	tbl := Table{Headers: headers, Rows: rows, RightAlign: map[int]bool{3: true, 4: true}}
	return RenderBox("Planning packages", strings.TrimRight(tbl.Render(), "\n"))
}

// FormatPlanningPackage renders one planning package card.
func FormatPlanningPackage(p *domain.PlanningPackage, currency string, status domain.PlanningPackageStatus) string {
	fields := []Field{
		{"id", p.ID},
		{"code", p.Code},
		{"status", PlanningStatusPill(status)},
		{"priority", itoa(p.Priority)},
		{"estimate", FormatMoney(p.EstimatedBudget, currency)},
		{"hours", p.EstimatedHours.String()},
		{"planned", FormatDate(p.PlannedStart) + " → " + FormatDate(p.PlannedEnd)},
		{"convert by", FormatDate(p.PlannedConversionDate)},
		{"control acct", FormatOptional(p.ControlAccountID)},
	}
	if p.IsConverted {
		fields = append(fields,
			Field{"converted", FormatDate(p.ConversionDate)},
			Field{"converted by", FormatOptional(p.ConvertedBy)},
		)
	}
	if p.Description != "" {
		fields = append(fields, Field{"description", p.Description})
	}
	return RenderBox(p.Name, RenderFields(fields))
}
