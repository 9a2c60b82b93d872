package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SeparatorRow is a row that renders as a horizontal rule.
const SeparatorRow = "---"

// Table is a bordered text table. The first column is left-aligned and the
// rest are right-aligned, since they hold amounts and counts.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTable renders t with rounded borders.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = max(widths[i], lipgloss.Width(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(TableHeaderStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(TableBorderStyle.Render(left))
		for i, w := range widths {
			b.WriteString(TableBorderStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(TableBorderStyle.Render(mid))
			}
		}
		b.WriteString(TableBorderStyle.Render(right))
		b.WriteString("\n")
	}
	bar := TableBorderStyle.Render("│")

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		b.WriteString(bar)
		for i, h := range t.Headers {
			b.WriteString(TableHeaderStyle.Render(" " + pad(h, widths[i], i > 0) + " "))
			b.WriteString(bar)
		}
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == SeparatorRow {
			rule("├", "┼", "┤")
			continue
		}
		b.WriteString(bar)
		for i := range numCols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(TableCellStyle.Render(" " + pad(cell, widths[i], i > 0) + " "))
			b.WriteString(bar)
		}
		b.WriteString("\n")
	}
	rule("╰", "┴", "╯")

	return b.String()
}

// pad widens s to w display columns.
func pad(s string, w int, right bool) string {
	gap := w - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
