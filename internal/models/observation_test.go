package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservation_Accessors(t *testing.T) {
	o := Observation{Weight: Float(101.5), DoseAmount: Float(5), PenID: "pen_1"}

	assert.True(t, o.HasWeight())
	assert.True(t, o.HasDose())
	assert.True(t, o.HasPen())
	assert.Equal(t, 101.5, o.WeightKg())
	assert.Equal(t, 5.0, o.DoseMg())
	assert.Equal(t, 0.0, o.CostValue())

	empty := Observation{}
	assert.False(t, empty.HasWeight())
	assert.False(t, empty.HasDose())
	assert.Equal(t, 0.0, empty.DoseMg())
}

func TestObservation_Equal(t *testing.T) {
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := Observation{ID: "a", Timestamp: ts, Weight: Float(100)}
	b := Observation{ID: "a", Timestamp: ts.In(time.FixedZone("CET", 3600)), Weight: Float(100)}

	assert.True(t, a.Equal(b), "same instant in another zone should be equal")

	b.Weight = Float(99)
	assert.False(t, a.Equal(b))

	b.Weight = nil
	assert.False(t, a.Equal(b))
}

func TestWeighted_SortsAndFilters(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := []Observation{
		{ID: "3", Timestamp: base.AddDate(0, 0, 14), Weight: Float(98)},
		{ID: "dose", Timestamp: base.AddDate(0, 0, 3), DoseAmount: Float(5)},
		{ID: "1", Timestamp: base, Weight: Float(100)},
		{ID: "2", Timestamp: base.AddDate(0, 0, 7), Weight: Float(99)},
	}

	out := Weighted(obs)
	if assert.Len(t, out, 3) {
		assert.Equal(t, "1", out[0].ID)
		assert.Equal(t, "2", out[1].ID)
		assert.Equal(t, "3", out[2].ID)
	}
	assert.Equal(t, "3", obs[0].ID, "input must not be reordered")
}

func TestGoalSettings_IsSet(t *testing.T) {
	var nilGoal *GoalSettings
	assert.False(t, nilGoal.IsSet())
	assert.False(t, (&GoalSettings{}).IsSet())
	assert.True(t, (&GoalSettings{TargetWeight: 80}).IsSet())
}
