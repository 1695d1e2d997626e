// Package models contains data structures used throughout the application
package models

import (
	"sort"
	"time"
)

// Observation is a single dated log entry: a body-weight reading, a dose, or both.
// Optional numeric fields are nil when absent. Observations are immutable once
// admitted to the store and are identified by ID only.
type Observation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"date"`

	Weight     *float64 `json:"weight,omitempty"` // kg
	DoseAmount *float64 `json:"dosage,omitempty"` // mg

	PenID              string   `json:"penId,omitempty"`
	PenNominalStrength *float64 `json:"penType,omitempty"` // mg per standard dose
	IsPenStart         bool     `json:"isNewPen,omitempty"`
	Cost               *float64 `json:"penCost,omitempty"`

	Note string `json:"notes,omitempty"`
}

// HasWeight returns true if the observation carries a weight reading
func (o *Observation) HasWeight() bool {
	return o.Weight != nil
}

// HasDose returns true if the observation carries a dose amount
func (o *Observation) HasDose() bool {
	return o.DoseAmount != nil
}

// HasPen returns true if the observation references a pen
func (o *Observation) HasPen() bool {
	return o.PenID != ""
}

// WeightKg returns the weight or 0 when absent
func (o *Observation) WeightKg() float64 {
	if o.Weight == nil {
		return 0
	}
	return *o.Weight
}

// DoseMg returns the dose amount or 0 when absent
func (o *Observation) DoseMg() float64 {
	if o.DoseAmount == nil {
		return 0
	}
	return *o.DoseAmount
}

// CostValue returns the pen cost or 0 when absent
func (o *Observation) CostValue() float64 {
	if o.Cost == nil {
		return 0
	}
	return *o.Cost
}

// Equal reports whether two observations carry the same values.
// Timestamps are compared as instants.
func (o Observation) Equal(other Observation) bool {
	return o.ID == other.ID &&
		o.Timestamp.Equal(other.Timestamp) &&
		floatPtrEqual(o.Weight, other.Weight) &&
		floatPtrEqual(o.DoseAmount, other.DoseAmount) &&
		o.PenID == other.PenID &&
		floatPtrEqual(o.PenNominalStrength, other.PenNominalStrength) &&
		o.IsPenStart == other.IsPenStart &&
		floatPtrEqual(o.Cost, other.Cost) &&
		o.Note == other.Note
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Float returns a pointer to v, for building observations in code
func Float(v float64) *float64 {
	return &v
}

// Dose is a dose event projected from an observation for concentration modelling
type Dose struct {
	Date     time.Time `json:"date"`
	AmountMg float64   `json:"amount"`
}

// GoalSettings holds the user's weight goal. It is independent of the entry store.
type GoalSettings struct {
	TargetWeight float64 `json:"targetWeight"`
	StartWeight  float64 `json:"startWeight"`
}

// IsSet returns true if a target weight has been configured
func (g *GoalSettings) IsSet() bool {
	return g != nil && g.TargetWeight > 0
}

// ByTimestamp sorts observations by timestamp, oldest first
type ByTimestamp []Observation

func (s ByTimestamp) Len() int           { return len(s) }
func (s ByTimestamp) Less(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) }
func (s ByTimestamp) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Weighted returns the observations carrying a weight, sorted oldest first.
// The input slice is not modified.
func Weighted(observations []Observation) []Observation {
	out := make([]Observation, 0, len(observations))
	for _, o := range observations {
		if o.HasWeight() {
			out = append(out, o)
		}
	}
	sort.Stable(ByTimestamp(out))
	return out
}
