// Package concentration models plasma drug concentration as the superposition
// of first-order exponential elimination of every logged dose
package concentration

import (
	"iter"
	"math"
	"sort"
	"time"

	"github.com/mrcode/pen-tracker/internal/models"
)

// HalfLifeDays is the elimination half-life of the drug
const HalfLifeDays = 5.0

// DefaultWindowDays is how far past the last dose a series extends by default
const DefaultWindowDays = 30

// eliminationRate is k in A*e^(-k*t), per day
var eliminationRate = math.Ln2 / HalfLifeDays

const day = 24 * time.Hour

// Sample is the modelled concentration at one point in time
type Sample struct {
	Date          time.Time `json:"date"`
	Concentration float64   `json:"concentration"` // mg
	Weight        *float64  `json:"weight,omitempty"`
}

// Stats summarises a dose history
type Stats struct {
	Count     int     `json:"count"`
	TotalMg   float64 `json:"totalMg"`
	AverageMg float64 `json:"averageMg"`
}

// DosesFrom projects the observations carrying a dose amount, oldest first
func DosesFrom(observations []models.Observation) []models.Dose {
	doses := make([]models.Dose, 0, len(observations))
	for _, o := range observations {
		if o.HasDose() {
			doses = append(doses, models.Dose{Date: o.Timestamp.UTC(), AmountMg: *o.DoseAmount})
		}
	}
	sort.SliceStable(doses, func(i, j int) bool {
		return doses[i].Date.Before(doses[j].Date)
	})
	return doses
}

// At returns the concentration at t. Doses after t contribute nothing.
func At(doses []models.Dose, t time.Time) float64 {
	var total float64
	for _, d := range doses {
		if t.Before(d.Date) {
			continue
		}
		elapsedDays := t.Sub(d.Date).Hours() / 24
		total += d.AmountMg * math.Exp(-eliminationRate*elapsedDays)
	}
	return total
}

// Series yields one sample per day from the first dose through
// max(now, last dose + windowDays), both ends included. The sequence can be
// ranged over any number of times. A non-positive window uses DefaultWindowDays.
func Series(doses []models.Dose, now time.Time, windowDays int) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		first, end, ok := span(doses, now, windowDays)
		if !ok {
			return
		}
		for ts := first; !ts.After(end); ts = ts.Add(day) {
			if !yield(Sample{Date: ts, Concentration: At(doses, ts)}) {
				return
			}
		}
	}
}

// SeriesWithWeights is Series with each sample carrying the last weight
// measured on the same UTC calendar day, if any
func SeriesWithWeights(doses []models.Dose, observations []models.Observation, now time.Time, windowDays int) iter.Seq[Sample] {
	weights := make(map[string]float64)
	for _, o := range models.Weighted(observations) {
		weights[dayKey(o.Timestamp)] = *o.Weight
	}

	return func(yield func(Sample) bool) {
		for s := range Series(doses, now, windowDays) {
			if w, ok := weights[dayKey(s.Date)]; ok {
				s.Weight = models.Float(w)
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Collect drains a series into a slice
func Collect(seq iter.Seq[Sample]) []Sample {
	var out []Sample
	for s := range seq {
		out = append(out, s)
	}
	return out
}

// Summarize returns count, total and average of the doses
func Summarize(doses []models.Dose) Stats {
	st := Stats{Count: len(doses)}
	for _, d := range doses {
		st.TotalMg += d.AmountMg
	}
	if st.Count > 0 {
		st.AverageMg = st.TotalMg / float64(st.Count)
	}
	return st
}

func span(doses []models.Dose, now time.Time, windowDays int) (first, end time.Time, ok bool) {
	if len(doses) == 0 {
		return time.Time{}, time.Time{}, false
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	first, last := doses[0].Date, doses[0].Date
	for _, d := range doses[1:] {
		if d.Date.Before(first) {
			first = d.Date
		}
		if d.Date.After(last) {
			last = d.Date
		}
	}

	first = first.UTC()
	end = last.UTC().AddDate(0, 0, windowDays)
	if now.After(end) {
		end = now.UTC()
	}
	return first, end, true
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
