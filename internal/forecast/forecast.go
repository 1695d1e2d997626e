// Package forecast provides short-term weight trends, goal projections against
// the scaled reference table and summary statistics for the observation log
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/reference"
)

// Direction of the most recent weight change
type Direction string

// Trend directions
const (
	Down   Direction = "down"
	Up     Direction = "up"
	Stable Direction = "stable"
)

// Chart windows accepted by Filter
const (
	WindowAll     = "all"
	WindowQuarter = "quarter"
	WindowMonth   = "month"
)

// fallbackGoalRatio is the target used by Summarize when no goal is set
const fallbackGoalRatio = 0.9

// Trend is the change between the two most recent weights
type Trend struct {
	Direction Direction `json:"direction"`
	Amount    float64   `json:"amount"` // kg, always >= 0
}

// Projection estimates when a goal weight will be reached
type Projection struct {
	TargetWeek int       `json:"targetWeek"`
	TargetDate time.Time `json:"targetDate"`
	DaysToGoal int       `json:"daysToGoal"`

	// WeeklyLoss is only meaningful when Achieved is false
	WeeklyLoss float64 `json:"weeklyLoss,omitempty"`

	// LongTerm means the goal lies beyond the table horizon; the
	// projection is pinned to the horizon rather than extrapolated
	LongTerm bool `json:"isLongTerm"`
	Achieved bool `json:"achieved"`
}

// Summary aggregates the observation log
type Summary struct {
	TotalEntries    int             `json:"totalEntries"`
	StartWeight     float64         `json:"startWeight"`
	CurrentWeight   float64         `json:"currentWeight"`
	TotalLoss       float64         `json:"totalLoss"`
	AverageLoss     float64         `json:"averageLoss"` // per weight entry
	CurrentDose     float64         `json:"currentDosage"`
	TotalCost       decimal.Decimal `json:"totalCost"`
	TargetWeight    float64         `json:"targetWeight"`
	ProgressPercent float64         `json:"progressPercent"`
	CustomGoal      bool            `json:"customGoal"`
}

// CurvePoint is one point of the reference overlay
type CurvePoint struct {
	Week   int       `json:"week"`
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// WeightTrend compares the two most recent weights by date.
// It returns false with fewer than two weights.
func WeightTrend(observations []models.Observation) (Trend, bool) {
	weighted := models.Weighted(observations)
	if len(weighted) < 2 {
		return Trend{}, false
	}

	diff := weighted[len(weighted)-1].WeightKg() - weighted[len(weighted)-2].WeightKg()
	t := Trend{Direction: Stable, Amount: math.Abs(diff)}
	switch {
	case diff < 0:
		t.Direction = Down
	case diff > 0:
		t.Direction = Up
	}
	return t, true
}

// GoalProjection finds the first reference row whose weight, scaled to the
// current weight, reaches the goal. Dates are counted from today.
func GoalProjection(observations []models.Observation, goal models.GoalSettings, table reference.Table, today time.Time) (Projection, bool) {
	weighted := models.Weighted(observations)
	if len(weighted) == 0 || !goal.IsSet() || len(table.Points) == 0 {
		return Projection{}, false
	}

	current := weighted[len(weighted)-1].WeightKg()
	if current <= 0 {
		return Projection{}, false
	}
	today = today.UTC()

	for i, p := range table.Points {
		if table.Scaled(i, current) > goal.TargetWeight {
			continue
		}
		proj := Projection{
			TargetWeek: p.Week,
			TargetDate: today.AddDate(0, 0, p.Week*7),
			DaysToGoal: p.Week * 7,
		}
		if p.Week == 0 {
			proj.Achieved = true
		} else {
			proj.WeeklyLoss = (current - goal.TargetWeight) / float64(p.Week)
		}
		return proj, true
	}

	horizon := table.Horizon()
	proj := Projection{
		TargetWeek: horizon,
		TargetDate: today.AddDate(0, 0, horizon*7),
		DaysToGoal: horizon * 7,
		LongTerm:   true,
	}
	if horizon > 0 {
		proj.WeeklyLoss = (current - goal.TargetWeight) / float64(horizon)
	}
	return proj, true
}

// Summarize aggregates the log. Without a goal the target falls back to 90%
// of the starting weight. Progress is clamped to [0, 100].
func Summarize(observations []models.Observation, goal *models.GoalSettings) Summary {
	s := Summary{TotalEntries: len(observations), TotalCost: decimal.Zero}

	for _, o := range observations {
		if o.Cost != nil {
			s.TotalCost = s.TotalCost.Add(decimal.NewFromFloat(*o.Cost))
		}
	}

	var latestDose *models.Observation
	for i := range observations {
		o := &observations[i]
		if o.HasDose() && (latestDose == nil || !o.Timestamp.Before(latestDose.Timestamp)) {
			latestDose = o
		}
	}
	if latestDose != nil {
		s.CurrentDose = latestDose.DoseMg()
	}

	weighted := models.Weighted(observations)
	if len(weighted) == 0 {
		return s
	}
	s.StartWeight = weighted[0].WeightKg()
	s.CurrentWeight = weighted[len(weighted)-1].WeightKg()
	s.TotalLoss = s.StartWeight - s.CurrentWeight
	s.AverageLoss = s.TotalLoss / float64(len(weighted))

	s.TargetWeight = s.StartWeight * fallbackGoalRatio
	if goal.IsSet() {
		s.TargetWeight = goal.TargetWeight
		s.CustomGoal = true
	}
	if targetLoss := s.StartWeight - s.TargetWeight; targetLoss > 0 {
		s.ProgressPercent = math.Max(0, math.Min(s.TotalLoss/targetLoss*100, 100))
	}
	return s
}

// ReferenceCurve anchors the reference trajectory at the first weight
// observation: each row's loss from the baseline is subtracted from the
// first weight
func ReferenceCurve(observations []models.Observation, table reference.Table) []CurvePoint {
	weighted := models.Weighted(observations)
	if len(weighted) == 0 || len(table.Points) == 0 {
		return nil
	}

	first := weighted[0]
	base := table.Points[0].Weight
	curve := make([]CurvePoint, 0, len(table.Points))
	for _, p := range table.Points {
		curve = append(curve, CurvePoint{
			Week:   p.Week,
			Date:   first.Timestamp.UTC().AddDate(0, 0, p.Week*7),
			Weight: first.WeightKg() - (base - p.Weight),
		})
	}
	return curve
}

// WindowStart returns the first instant inside the chart window ending at now.
// WindowAll and unknown windows have no start.
func WindowStart(window string, now time.Time) (time.Time, bool) {
	switch window {
	case WindowQuarter:
		return now.AddDate(0, -3, 0), true
	case WindowMonth:
		return now.AddDate(0, -1, 0), true
	default:
		return time.Time{}, false
	}
}

// Filter keeps observations inside the chart window ending at now, oldest
// first. Unknown windows behave like WindowAll.
func Filter(observations []models.Observation, window string, now time.Time) []models.Observation {
	cutoff, bounded := WindowStart(window, now)

	out := make([]models.Observation, 0, len(observations))
	for _, o := range observations {
		if !bounded || !o.Timestamp.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Stable(models.ByTimestamp(out))
	return out
}
