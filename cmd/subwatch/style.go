package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha subset.
const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorLavender lipgloss.Color = "#b4befe"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorText     lipgloss.Color = "#cdd6f4"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorLavender)
	labelStyle = lipgloss.NewStyle().Foreground(colorOverlay1)
	valueStyle = lipgloss.NewStyle().Foreground(colorText)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	errStyle   = lipgloss.NewStyle().Foreground(colorRed)
	mutedStyle = lipgloss.NewStyle().Foreground(colorOverlay1).Italic(true)
)

// priorityStyle colors an alert priority or finding severity.
func priorityStyle(p string) lipgloss.Style {
	switch p {
	case "urgent":
		return lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	case "high":
		return lipgloss.NewStyle().Foreground(colorPeach)
	case "medium":
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return lipgloss.NewStyle().Foreground(colorTeal)
	}
}

func heading(s string) string { return titleStyle.Render(s) }

func kv(label string, value any) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(fmt.Sprint(value))
}

func money(amount float64, currency string) string {
	if currency == "" || currency == "KRW" {
		return fmt.Sprintf("%.0f %s", amount, strings.TrimSpace(currency))
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// table renders rows as fixed-width columns sized to the widest cell.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}
	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = style.Width(widths[i]).Render(c)
		}
		return strings.Join(parts, "  ")
	}
	var b strings.Builder
	b.WriteString(line(header, labelStyle.Bold(true)))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(line(r, valueStyle))
	}
	return b.String()
}

// distribution renders a count map sorted by key.
func distribution(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
