package formatter

import (
	"github.com/alexanderramin/wbsledger/internal/domain"
)

// FormatProjectList renders projects inside a bordered box.
func FormatProjectList(projects []*domain.Project) string {
	headers := []string{"CODE", "NAME", "CURRENCY", "START", "STATUS"}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		status := StyleGreen.Render("● Active")
		if !p.IsActive {
			status = StyleDim.Render("○ Inactive")
		}
		rows = append(rows, []string{
			p.Code,
			Bold(p.Name),
			p.Currency,
			FormatDate(p.StartDate),
			status,
		})
	}
	return RenderBox("Projects", RenderTable(headers, rows))
}

// FormatProject renders a single project card.
func FormatProject(p *domain.Project) string {
	fields := []Field{
		{"code", p.Code},
		{"id", TruncID(p.ID)},
		{"currency", p.Currency},
		{"start", FormatDate(p.StartDate)},
		{"created", p.CreatedAt.Format("2006-01-02 15:04")},
	}
	if p.Description != "" {
		fields = append(fields, Field{"notes", p.Description})
	}
	return RenderBox(p.Name, RenderFields(fields))
}
