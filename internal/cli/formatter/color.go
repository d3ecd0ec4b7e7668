package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen      = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow     = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleYellowBold = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StyleRed        = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue       = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple     = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim        = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg         = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader     = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold       = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

var (
	indexOnTarget = decimal.NewFromInt(1)
	indexWarning  = decimal.RequireFromString("0.9")
)

// IndexStyle colors a CPI/SPI value: green at or above 1, yellow down to
// 0.9, red below. Undefined indices are dimmed.
func IndexStyle(idx decimal.NullDecimal) lipgloss.Style {
	switch {
	case !idx.Valid:
		return StyleDim
	case idx.Decimal.GreaterThanOrEqual(indexOnTarget):
		return StyleGreen
	case idx.Decimal.GreaterThanOrEqual(indexWarning):
		return StyleYellow
	default:
		return StyleRed
	}
}

// WorkPackageStatusPill returns a colored indicator such as "● In Progress".
func WorkPackageStatusPill(status domain.WorkPackageStatus) string {
	switch status {
	case domain.WPNotStarted:
		return StyleBlue.Render("○ Not Started")
	case domain.WPInProgress:
		return StyleYellow.Render("● In Progress")
	case domain.WPCompleted:
		return StyleGreen.Render("✔ Completed")
	case domain.WPOnHold:
		return StylePurple.Render("‖ On Hold")
	case domain.WPCancelled:
		return StyleDim.Render("✖ Cancelled")
	default:
		return StyleDim.Render(string(status))
	}
}

// BudgetStatusPill combines the workflow status with the baseline and lock
// flags, e.g. "● Approved ★ baseline 🔒".
func BudgetStatusPill(b *domain.Budget) string {
	var pill string
	switch b.Status {
	case domain.BudgetDraft:
		pill = StyleBlue.Render("○ Draft")
	case domain.BudgetUnderReview:
		pill = StyleYellow.Render("◐ Under Review")
	case domain.BudgetApproved:
		pill = StyleGreen.Render("● Approved")
	case domain.BudgetRejected:
		pill = StyleRed.Render("✖ Rejected")
	default:
		pill = StyleDim.Render(string(b.Status))
	}
	if b.IsBaseline {
		pill += " " + StylePurple.Render("★ baseline")
	}
	if b.IsLocked {
		pill += " " + StyleDim.Render("[locked]")
	}
	if b.IsDeleted {
		pill += " " + StyleDim.Render("[deleted]")
	}
	return pill
}

// PlanningStatusPill returns a colored planning-package status.
func PlanningStatusPill(status domain.PlanningPackageStatus) string {
	switch status {
	case domain.PlanningFuture:
		return StyleDim.Render("○ Future")
	case domain.PlanningNearTerm:
		return StyleYellow.Render("◐ Near Term")
	case domain.PlanningReadyForConversion:
		return StyleRed.Render("● Ready")
	case domain.PlanningConverted:
		return StyleGreen.Render("✔ Converted")
	default:
		return StyleDim.Render(string(status))
	}
}

// KindBadge is the short marker shown before a node title.
func KindBadge(kind domain.NodeKind) string {
	switch kind {
	case domain.NodeWorkPackage:
		return StyleGreen.Render("WP")
	case domain.NodePlanningPackage:
		return StylePurple.Render("PP")
	default:
		return StyleDim.Render("··")
	}
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
