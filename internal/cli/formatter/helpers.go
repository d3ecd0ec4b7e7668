package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2).
		PaddingTop(1).
		PaddingBottom(1)

	if title != "" {
		return boxStyle.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
	}
	return boxStyle.Render(content)
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// FormatMoney renders an amount with thousands separators and two decimals,
// e.g. "1,234,567.80 USD". The currency is omitted when blank.
func FormatMoney(amount decimal.Decimal, currency string) string {
	rounded := amount.Round(2)
	_, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")
	out := humanize.BigComma(rounded.Abs().Truncate(0).BigInt()) + "." + frac
	if rounded.IsNegative() {
		out = "-" + out
	}
	if currency != "" {
		out += " " + currency
	}
	return out
}

// FormatPct renders a 0..100 percentage with one decimal.
func FormatPct(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatDecimalPct renders a decimal percentage such as "12.5%".
func FormatDecimalPct(pct decimal.Decimal) string {
	return pct.String() + "%"
}

// FormatIndex renders CPI/SPI with four decimals, or "--" while undefined.
func FormatIndex(idx decimal.NullDecimal) string {
	if !idx.Valid {
		return IndexStyle(idx).Render("--")
	}
	return IndexStyle(idx).Render(idx.Decimal.StringFixed(4))
}

// FormatDate renders a calendar date, or a dimmed "--" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return Dim("--")
	}
	return t.Format(time.DateOnly)
}

// FormatOptional renders a string pointer, or a dimmed "--" for nil.
func FormatOptional(s *string) string {
	if s == nil || *s == "" {
		return Dim("--")
	}
	return *s
}

// Field is one label/value line of a detail view.
type Field struct {
	Label string
	Value string
}

// RenderFields aligns labels in a dimmed column followed by their values.
func RenderFields(fields []Field) string {
	width := 0
	for _, f := range fields {
		if w := lipgloss.Width(strings.ToUpper(f.Label)); w > width {
			width = w
		}
	}
	var b strings.Builder
	for _, f := range fields {
		label := strings.ToUpper(f.Label)
		pad := width - lipgloss.Width(label)
		b.WriteString(StyleDim.Render(label) + strings.Repeat(" ", pad+2) + f.Value + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
