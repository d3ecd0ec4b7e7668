package formatter

import (
	"strings"

	"github.com/alexanderramin/wbsledger/internal/domain"
)

// FormatBudgetList renders the budgets of a project.
func FormatBudgetList(budgets []*domain.Budget) string {
	headers := []string{"ID", "VERSION", "NAME", "TYPE", "TOTAL", "STATUS"}
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, []string{
			TruncID(b.ID),
			b.Version,
			Bold(b.Name),
			string(b.Type),
			FormatMoney(b.TotalBudget(), b.Currency),
			BudgetStatusPill(b),
		})
	}
	tbl := Table{Headers: headers, Rows: rows, RightAlign: map[int]bool{4: true}}
	return RenderBox("Budgets", strings.TrimRight(tbl.Render(), "\n"))
}

// FormatBudget renders the budget header, its active items and the
// revision history.
func FormatBudget(b *domain.Budget) string {
	unallocated := FormatMoney(b.UnallocatedAmount(), b.Currency)
	if b.IsOverAllocated() {
		unallocated = StyleRed.Render(unallocated + " over-allocated")
	}
	fields := []Field{
		{"id", b.ID},
		{"version", b.Version},
		{"status", BudgetStatusPill(b)},
		{"type", string(b.Type)},
		{"amount", FormatMoney(b.TotalAmount, b.Currency)},
		{"contingency", FormatMoney(b.ContingencyAmount, b.Currency) + Dim(" ("+FormatDecimalPct(b.ContingencyPct)+")")},
		{"mgmt reserve", FormatMoney(b.ManagementReserve, b.Currency) + Dim(" ("+FormatDecimalPct(b.ManagementReservePct)+")")},
		{"total budget", Bold(FormatMoney(b.TotalBudget(), b.Currency))},
		{"allocated", FormatMoney(b.AllocatedAmount(), b.Currency)},
		{"unallocated", unallocated},
		{"fx rate", b.ExchangeRate.String()},
	}
	if b.ParentBudgetID != nil {
		fields = append(fields, Field{"revises", TruncID(*b.ParentBudgetID)})
	}
	if b.ApprovalComments != "" {
		fields = append(fields, Field{"approval", b.ApprovalComments})
	}
	if b.RejectionReason != "" {
		fields = append(fields, Field{"rejected", StyleRed.Render(b.RejectionReason)})
	}
	sections := []string{RenderFields(fields)}

	if items := b.ActiveItems(); len(items) > 0 {
		rows := make([][]string, 0, len(items))
		for _, it := range items {
			amount := FormatMoney(it.Amount, "")
			if it.IsAmountOverridden {
				amount = StyleYellow.Render(amount + "*")
			}
			rows = append(rows, []string{
				TruncID(it.ID), it.ItemCode, it.Description, string(it.CostType),
				it.Quantity.String(), it.UnitRate.StringFixed(2), amount,
			})
		}
		tbl := Table{
			Headers:    []string{"ID", "CODE", "DESCRIPTION", "COST TYPE", "QTY", "RATE", "AMOUNT"},
			Rows:       rows,
			RightAlign: map[int]bool{4: true, 5: true, 6: true},
		}
		sections = append(sections, Header("Items")+"\n"+strings.TrimRight(tbl.Render(), "\n"))
	}

	if len(b.Revisions) > 0 {
		rows := make([][]string, 0, len(b.Revisions))
		for _, r := range b.Revisions {
			approved := Dim("pending")
			if r.IsApproved {
				approved = StyleGreen.Render("✔ " + FormatOptional(r.ApprovedBy))
			}
			rows = append(rows, []string{
				itoa(r.RevisionNumber),
				r.RevisionDate.Format("2006-01-02"),
				FormatMoney(r.PreviousAmount, ""),
				FormatMoney(r.NewAmount, ""),
				FormatMoney(r.ChangeAmount(), ""),
				r.Reason,
				approved,
			})
		}
		tbl := Table{
			Headers:    []string{"#", "DATE", "PREVIOUS", "NEW", "CHANGE", "REASON", "APPROVED"},
			Rows:       rows,
			RightAlign: map[int]bool{0: true, 2: true, 3: true, 4: true},
		}
		sections = append(sections, Header("Revisions")+"\n"+strings.TrimRight(tbl.Render(), "\n"))
	}

	return RenderBox(b.Name, strings.Join(sections, "\n\n"))
}
