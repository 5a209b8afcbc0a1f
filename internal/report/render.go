package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/moodcheck/internal/accuracy"
	"github.com/abelbrown/moodcheck/internal/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorError     = lipgloss.Color("196") // Red
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	goodStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle = lipgloss.NewStyle().Foreground(colorWarning)
	badStyle  = lipgloss.NewStyle().Foreground(colorError)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func ratio(v float64) string {
	return accuracy.FormatRatio(v)
}

func classRow(label string, correct, total int, acc float64) string {
	return row(label, fmt.Sprintf("%s / %s  %s", count(correct), count(total), ratio(acc)))
}

// RenderSummary renders an evaluation summary as a bordered block.
func RenderSummary(s accuracy.Summary) string {
	t := s.Tally
	lines := []string{
		titleStyle.Render("Evaluation · " + s.Model),
		classRow("HAPPY", t.HappyCorrect, t.HappyTotal, t.HappyAccuracy()),
		classRow("SAD", t.SadCorrect, t.SadTotal, t.SadAccuracy()),
		row("Test error", ratio(t.TestError())),
		row("Evaluated", count(s.Evaluated)+" of "+count(s.Attempted())),
		warnRow("Dropped", s.Dropped),
	}
	if s.Failed > 0 {
		lines = append(lines, row("Counted wrong", warnStyle.Render(count(s.Failed))))
	}
	if s.Malformed > 0 {
		lines = append(lines, warnRow("Malformed input", s.Malformed))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderCorrection renders a before/after comparison.
func RenderCorrection(s accuracy.CorrectionSummary) string {
	lines := []string{
		titleStyle.Render("Correction impact · " + s.Model),
		row("Error before", ratio(s.Before.TestError())),
		row("Error after", ratio(s.After.TestError())),
		row("HAPPY", ratio(s.Before.HappyAccuracy())+" → "+ratio(s.After.HappyAccuracy())),
		row("SAD", ratio(s.Before.SadAccuracy())+" → "+ratio(s.After.SadAccuracy())),
		row("Compared", count(s.After.Total())),
		row("Changed", count(s.Changed)),
		row("Fixed", goodStyle.Render(count(s.Fixed))),
		row("Regressed", badStyle.Render(count(s.Regressed))),
		warnRow("Dropped", s.Dropped),
	}
	if s.Failed > 0 {
		lines = append(lines, row("Counted wrong", warnStyle.Render(count(s.Failed))))
	}
	if s.Malformed > 0 {
		lines = append(lines, warnRow("Malformed input", s.Malformed))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func warnRow(label string, n int) string {
	v := count(n)
	if n > 0 {
		v = warnStyle.Render(v)
	}
	return row(label, v)
}

// RenderBuild renders dataset sizes after a build. malformed counts the
// input records skipped by the parser.
func RenderBuild(training, validation, malformed, dimension int) string {
	lines := []string{
		titleStyle.Render("Dataset"),
		row("Training", count(training)),
		row("Validation", count(validation)),
		warnRow("Malformed input", malformed),
		row("Dimension", count(dimension)),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderRuns renders persisted runs, newest first, one per line.
func RenderRuns(runs []store.RunSummary, now time.Time) string {
	if len(runs) == 0 {
		return lipgloss.NewStyle().Foreground(colorSecondary).Render("No runs yet.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Runs"))
	b.WriteString("\n")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, "%s  %-10s %-16s error %-10s dropped %-6s %s\n",
			valueStyle.Render(id),
			r.Kind,
			r.Model,
			ratio(r.Tally.TestError()),
			count(r.Dropped),
			lipgloss.NewStyle().Foreground(colorSecondary).Render(humanize.RelTime(r.CreatedAt, now, "ago", "from now")),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}
