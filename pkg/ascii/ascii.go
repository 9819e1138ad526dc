// Package ascii renders aligned plain-text tables and boxes for terminal output
package ascii

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// StringWidth returns the display width of a string, accounting for
// multi-width runes (emoji, CJK, etc.).
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Pad right-pads s with spaces to the given display width.
func Pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Truncate shortens value so its display width fits width, appending "..."
// when there is room for it.
func Truncate(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

// Box builds a box containing the provided lines and returns it as a string.
// Lines are left-aligned with single-space padding on each side.
func Box(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	trimmed := make([]string, len(lines))
	maxWidth := 0
	for i, line := range lines {
		trimmed[i] = strings.TrimRight(line, " ")
		if w := StringWidth(trimmed[i]); w > maxWidth {
			maxWidth = w
		}
	}

	border := strings.Repeat("─", maxWidth+2)

	var sb strings.Builder
	sb.WriteString("┌" + border + "┐\n")
	for _, line := range trimmed {
		sb.WriteString("│ " + Pad(line, maxWidth) + " │\n")
	}
	sb.WriteString("└" + border + "┘\n")
	return sb.String()
}

// Table renders rows under headers as space-separated columns. Columns are
// sized to their widest cell; the last column is never padded. Cells wider
// than maxCell (when positive) are truncated.
func Table(headers []string, rows [][]string, maxCell int) string {
	cols := len(headers)
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		if maxCell > 0 {
			return Truncate(row[i], maxCell)
		}
		return row[i]
	}

	widths := make([]int, cols)
	all := append([][]string{headers}, rows...)
	for _, row := range all {
		for i := 0; i < cols; i++ {
			if w := StringWidth(cell(row, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	for _, row := range all {
		var line strings.Builder
		for i := 0; i < cols; i++ {
			if i > 0 {
				line.WriteString("  ")
			}
			if i == cols-1 {
				line.WriteString(cell(row, i))
				continue
			}
			line.WriteString(Pad(cell(row, i), widths[i]))
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}
