package formatter

import (
	"strings"

	"github.com/alexanderramin/wbsledger/internal/domain"
)

// WBSTreeItems flattens the live tree in pre-order, computing each node's
// rollup for the detail column.
func WBSTreeItems(t *domain.Tree, currency string) []TreeItem {
	var items []TreeItem
	var visit func(n *domain.WBSNode, lasts []bool)
	visit = func(n *domain.WBSNode, lasts []bool) {
		item := TreeItem{
			Code:  n.Code,
			Title: n.Name,
			Badge: KindBadge(n.Kind()),
			Lasts: lasts,
		}
		if d, ok := n.WorkPackage(); ok {
			item.Status = string(d.Status)
		}
		if r, err := t.Rollup(n.ID); err == nil {
			item.Detail = FormatMoney(r.TotalBudget, currency) + "  " + FormatPct(r.ProgressPct)
		}
		items = append(items, item)

		children := t.Children(n.ID)
		for i, c := range children {
			next := append(append([]bool{}, lasts...), i == len(children)-1)
			visit(c, next)
		}
	}
	roots := t.Roots()
	for i, r := range roots {
		visit(r, []bool{i == len(roots)-1})
	}
	return items
}

// FormatWBSTree renders the project's WBS as a boxed tree.
func FormatWBSTree(p *domain.Project, t *domain.Tree) string {
	items := WBSTreeItems(t, p.Currency)
	if len(items) == 0 {
		return RenderBox(p.Code+" WBS", Dim("No WBS nodes"))
	}
	return RenderBox(p.Code+" WBS", strings.TrimRight(RenderTree(items), "\n"))
}

// FormatNode renders one node with its rollup, work-package facts and CBS
// allocations.
func FormatNode(n *domain.WBSNode, rollup domain.NodeRollup, currency string) string {
	var sections []string

	fields := []Field{
		{"code", n.Code},
		{"path", n.FullPath},
		{"kind", KindBadge(n.Kind()) + " " + string(n.Kind())},
		{"level", itoa(n.Level)},
		{"control acct", FormatOptional(n.ControlAccountID)},
		{"budget", FormatMoney(rollup.TotalBudget, currency)},
		{"progress", RenderProgress(rollup.ProgressPct, 16)},
	}
	if n.Description != "" {
		fields = append(fields, Field{"description", n.Description})
	}
	if pp, ok := n.PlanningPackage(); ok {
		fields = append(fields,
			Field{"estimate", FormatMoney(pp.EstimatedBudget, currency)},
			Field{"convert by", FormatDate(pp.PlannedConversionDate)},
		)
	}
	sections = append(sections, RenderFields(fields))

	if d, ok := n.WorkPackage(); ok {
		sections = append(sections, Header("Work package")+"\n"+RenderFields([]Field{
			{"status", WorkPackageStatusPill(d.Status)},
			{"method", string(d.ProgressMethod)},
			{"planned", FormatDate(d.PlannedStart) + " → " + FormatDate(d.PlannedEnd)},
			{"actual", FormatDate(d.ActualStart) + " → " + FormatDate(d.ActualEnd)},
			{"baseline", FormatDate(d.BaselineDate)},
			{"ev / pv", FormatMoney(d.EarnedValue, d.Currency) + " / " + FormatMoney(d.PlannedValue, d.Currency)},
			{"actual cost", FormatMoney(d.ActualCost, d.Currency)},
			{"committed", FormatMoney(d.CommittedCost, d.Currency)},
			{"forecast", FormatMoney(d.ForecastCost, d.Currency)},
			{"cpi", FormatIndex(d.CPI)},
			{"spi", FormatIndex(d.SPI)},
		}))
	}

	if len(n.CBS.Mappings) > 0 {
		rows := make([][]string, 0, len(n.CBS.Mappings))
		for _, m := range n.CBS.Mappings {
			primary := ""
			if m.IsPrimary {
				primary = StyleGreen.Render("★")
			}
			state := StyleGreen.Render("active")
			if !m.IsActive() {
				state = Dim("ended " + FormatDate(m.EndDate))
			}
			rows = append(rows, []string{m.CBSID, FormatDecimalPct(m.AllocationPct), primary, state})
		}
		tbl := Table{Headers: []string{"CBS", "ALLOC", "PRIMARY", "STATE"}, Rows: rows, RightAlign: map[int]bool{1: true}}
		sections = append(sections, Header("CBS allocation")+"\n"+strings.TrimRight(tbl.Render(), "\n"))
	}

	return RenderBox(n.Name, strings.Join(sections, "\n\n"))
}
