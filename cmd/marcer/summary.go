package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"marcer/internal/interp"
	"marcer/internal/marc"
)

var (
	colorAccent = lipgloss.Color("#8BC34A")
	colorMuted  = lipgloss.Color("#6b7280")
	colorWarn   = lipgloss.Color("#FFC107")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted).Width(14)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

func summaryLine(label string, value int, warnIfNonZero bool) string {
	v := fmt.Sprint(value)
	if warnIfNonZero && value > 0 {
		v = warnStyle.Render(v)
	}
	return labelStyle.Render(label) + v
}

// renderSummary formats the end-of-run report.
func renderSummary(file string, stats marc.Stats, sum interp.Summary) string {
	lines := []string{
		titleStyle.Render(file),
		summaryLine("records", stats.Total, false),
		summaryLine("multilingual", stats.Multilingual, false),
		summaryLine("skipped", stats.Skipped, true),
		summaryLine("printed", sum.Printed, false),
		summaryLine("written", sum.Written, false),
		summaryLine("failures", sum.Failures, true),
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}

// renderStats formats one block per file for the stats command.
func renderStats(rows []fileStats) string {
	var b strings.Builder
	for _, r := range rows {
		block := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(r.Path),
			summaryLine("records", r.Stats.Total, false),
			summaryLine("multilingual", r.Stats.Multilingual, false),
			summaryLine("skipped", r.Stats.Skipped, true),
		)
		b.WriteString(boxStyle.Render(block))
		b.WriteString("\n")
	}
	return b.String()
}
