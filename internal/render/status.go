package render

import (
	"fmt"
	"strings"

	"github.com/mrcode/pen-tracker/internal/engine"
	"github.com/mrcode/pen-tracker/internal/models"
)

const (
	// Windows has a 128 UTF-16 character limit for tooltips
	windowsTooltipLimit = 128

	// concentration samples shown in the sparkline
	sparklineDays    = 24
	sparklineHeight  = 6
	dateLayout       = "Mon 2 Jan"
	compactDateShort = "2 Jan"
)

// Status renders a multi-line status: active pen, next application,
// concentration and weight sparklines, then progress
func Status(report *engine.Report, settings *models.Settings) string {
	if report == nil || report.Analysis == nil {
		return "Pen Tracker - Loading..."
	}

	var b strings.Builder
	if ps, ok := ActivePen(report); ok {
		fmt.Fprintf(&b, "Pen %g mg: %.1f mg left (%.0f%% used, %s)\n",
			ps.Pen.NominalStrength, ps.RemainingMg, ps.UsagePercent, formatStatus(contentStatus(ps, settings)))
		if ps.Exhaustion != nil {
			fmt.Fprintf(&b, "Pen empty around %s\n", ps.Exhaustion.Local().Format(dateLayout))
		}
	} else {
		b.WriteString("No active pen\n")
	}

	if report.NextApplication != nil {
		fmt.Fprintf(&b, "Next application: %s\n", report.NextApplication.Local().Format(dateLayout))
	}

	if len(report.Concentration) > 0 {
		fmt.Fprintf(&b, "Level: %.2f mg", report.CurrentConcentration)
		if chart := Sparkline(tail(concentrationValues(report), sparklineDays), sparklineHeight); chart != "" {
			b.WriteString("\n")
			b.WriteString(chart)
		}
		b.WriteString("\n")
	}

	if n := len(report.Weights); n > 1 {
		fmt.Fprintf(&b, "Weight: %.1f → %.1f kg", report.Weights[0].WeightKg(), report.Weights[n-1].WeightKg())
		if chart := Sparkline(tail(weightValues(report), sparklineDays), sparklineHeight); chart != "" {
			b.WriteString("\n")
			b.WriteString(chart)
		}
		b.WriteString("\n")
	}

	if report.Progress != nil {
		fmt.Fprintf(&b, "Lost %.1f kg in %d weeks (%+.1f pp vs reference)\n",
			report.Progress.ActualWeightLoss, report.Progress.WeeksElapsed, report.Progress.PercentDifference)
	}
	if report.GoalProjection != nil {
		switch {
		case report.GoalProjection.Achieved:
			b.WriteString("Goal reached\n")
		case report.GoalProjection.LongTerm:
			fmt.Fprintf(&b, "Goal beyond %d weeks\n", report.GoalProjection.TargetWeek)
		default:
			fmt.Fprintf(&b, "Goal in ~%d weeks (%s)\n",
				report.GoalProjection.TargetWeek, report.GoalProjection.TargetDate.Local().Format(dateLayout))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// CompactStatus renders a short status that fits a Windows tooltip
func CompactStatus(report *engine.Report, settings *models.Settings) string {
	if report == nil || report.Analysis == nil {
		return "Pen Tracker..."
	}

	var lines []string
	if ps, ok := ActivePen(report); ok {
		lines = append(lines, fmt.Sprintf("%.1fmg left %s", ps.RemainingMg, formatCompactStatus(contentStatus(ps, settings))))
	} else {
		lines = append(lines, "No pen")
	}
	if report.NextApplication != nil {
		lines = append(lines, "Next "+report.NextApplication.Local().Format(compactDateShort))
	}
	if spark := CompactSparkline(tail(concentrationValues(report), sparklineDays)); spark != "" {
		lines = append(lines, spark)
	}

	tooltip := strings.Join(lines, "\n")
	// Drop the sparkline rather than truncate mid-line
	if len([]rune(tooltip)) > windowsTooltipLimit && len(lines) > 1 {
		tooltip = strings.Join(lines[:len(lines)-1], "\n")
	}
	return tooltip
}

func concentrationValues(report *engine.Report) []float64 {
	values := make([]float64, len(report.Concentration))
	for i, s := range report.Concentration {
		values[i] = s.Concentration
	}
	return values
}

// weightValues returns the weights in the report's chart window
func weightValues(report *engine.Report) []float64 {
	values := make([]float64, len(report.Weights))
	for i := range report.Weights {
		values[i] = report.Weights[i].WeightKg()
	}
	return values
}

// formatStatus returns a human-readable content status
func formatStatus(status string) string {
	switch status {
	case statusLow:
		return "running low"
	case statusFinished:
		return "finished"
	case statusNormal:
		return "ok"
	default:
		return status
	}
}

// formatCompactStatus returns a compact status marker for Windows tooltips
func formatCompactStatus(status string) string {
	switch status {
	case statusLow:
		return "↓Low"
	case statusFinished:
		return "✗Empty"
	case statusNormal:
		return "✓OK"
	default:
		return status
	}
}
