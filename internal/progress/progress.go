// Package progress compares a user's actual weight loss against the reference
// trajectory, scaled to the user's starting weight
package progress

import (
	"math"
	"time"

	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/reference"
)

// Performance classifies actual progress relative to the reference
type Performance string

// Performance classes, best first
const (
	Excellent Performance = "excellent"
	Good      Performance = "good"
	Average   Performance = "average"
	Below     Performance = "below"
)

// Classification thresholds in percentage points of starting weight
const (
	excellentThreshold = 2.0
	goodThreshold      = 0.5
	averageThreshold   = -1.0
)

const week = 7 * 24 * time.Hour

// Result is the comparison between actual and expected progress
type Result struct {
	WeeksElapsed int `json:"weeksElapsed"`

	ActualWeightLoss        float64 `json:"actualWeightLoss"`
	ActualWeightLossPercent float64 `json:"actualWeightLossPercent"`

	ReferencePoint            reference.Point `json:"referencePoint"`
	ExpectedWeight            float64         `json:"expectedWeight"`
	ExpectedWeightLoss        float64         `json:"expectedWeightLoss"`
	ExpectedWeightLossPercent float64         `json:"expectedWeightLossPercent"`

	// Positive differences mean the user is ahead of the reference
	WeightLossDifference float64 `json:"weightLossDifference"`
	PercentDifference    float64 `json:"percentDifference"` // percentage points

	Performance Performance `json:"performance"`
	Message     string      `json:"message"`
}

// Compare measures progress between the first and last weight observations.
// It returns false when fewer than two weights are available.
func Compare(observations []models.Observation, table reference.Table) (Result, bool) {
	weighted := models.Weighted(observations)
	if len(weighted) < 2 {
		return Result{}, false
	}

	first, last := weighted[0], weighted[len(weighted)-1]
	startWeight := first.WeightKg()
	if startWeight <= 0 {
		return Result{}, false
	}

	weeks := int(math.Floor(float64(last.Timestamp.Sub(first.Timestamp)) / float64(week)))
	ref, ok := table.Nearest(weeks)
	if !ok {
		return Result{}, false
	}

	r := Result{
		WeeksElapsed:     weeks,
		ActualWeightLoss: startWeight - last.WeightKg(),
		ReferencePoint:   ref,
		ExpectedWeight:   ref.Weight * (startWeight / reference.BaselineWeight),
	}
	r.ActualWeightLossPercent = r.ActualWeightLoss / startWeight * 100
	r.ExpectedWeightLoss = startWeight - r.ExpectedWeight
	r.ExpectedWeightLossPercent = r.ExpectedWeightLoss / startWeight * 100
	r.WeightLossDifference = r.ActualWeightLoss - r.ExpectedWeightLoss
	r.PercentDifference = r.ActualWeightLossPercent - r.ExpectedWeightLossPercent
	r.Performance = Classify(r.PercentDifference)
	r.Message = r.Performance.Message()

	return r, true
}

// Classify maps a percentage-point difference to a performance class
func Classify(percentDifference float64) Performance {
	switch {
	case percentDifference >= excellentThreshold:
		return Excellent
	case percentDifference >= goodThreshold:
		return Good
	case percentDifference >= averageThreshold:
		return Average
	default:
		return Below
	}
}

// Message returns a short human-readable verdict
func (p Performance) Message() string {
	switch p {
	case Excellent:
		return "Excellent! You are losing weight faster than the reference trajectory."
	case Good:
		return "Very good! Your results are ahead of the reference average."
	case Average:
		return "Your results are in line with the reference trajectory."
	case Below:
		return "Your results are below the reference trajectory."
	default:
		return ""
	}
}
