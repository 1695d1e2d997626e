// Package pen derives injector pens from the observation log: capacity
// consumption, lifecycle and application/exhaustion forecasts
package pen

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrcode/pen-tracker/internal/models"
)

// CapacityFactor converts a pen's nominal strength into its total content:
// four standard doses plus a 1.5-dose residual
const CapacityFactor = 5.5

// LowContentPercent is the usage above which a pen is considered low
const LowContentPercent = 80.0

// daysPerApplication is the assumed weekly cadence for exhaustion forecasts
const daysPerApplication = 7

// Application is one dose drawn from a pen
type Application struct {
	Date       time.Time `json:"date"`
	DoseAmount float64   `json:"dosage"`
}

// Pen is a physical injector, reconstructed from observations
type Pen struct {
	ID                  string        `json:"id"`
	NominalStrength     float64       `json:"type"`
	StartDate           time.Time     `json:"startDate"`
	Applications        []Application `json:"applications"`
	TotalUsed           float64       `json:"totalUsed"`
	TotalCapacity       float64       `json:"totalCapacity"`
	Cost                float64       `json:"cost"`
	LastApplicationDate time.Time     `json:"lastApplication"`
}

// Ledger is the result of folding an observation log into pens
type Ledger struct {
	Active   []Pen `json:"active"`
	Finished []Pen `json:"finished"`

	// Orphans reference a pen id that was never introduced with a strength
	Orphans []models.Observation `json:"orphans,omitempty"`
}

// Build groups observations into pens. Observations are consumed in the given
// order; the observation that introduces a pen is also its first application.
// Build has no side effects and always yields the same ledger for the same input.
func Build(observations []models.Observation) Ledger {
	var (
		ledger Ledger
		order  []*Pen
		byID   = make(map[string]*Pen)
	)

	for _, o := range observations {
		if !o.HasPen() {
			continue
		}

		p, ok := byID[o.PenID]
		if !ok {
			if o.PenNominalStrength == nil {
				ledger.Orphans = append(ledger.Orphans, o)
				continue
			}
			p = &Pen{
				ID:              o.PenID,
				NominalStrength: *o.PenNominalStrength,
				StartDate:       o.Timestamp,
				TotalCapacity:   *o.PenNominalStrength * CapacityFactor,
				Cost:            o.CostValue(),
			}
			byID[o.PenID] = p
			order = append(order, p)
		}

		dose := o.DoseMg()
		p.Applications = append(p.Applications, Application{Date: o.Timestamp, DoseAmount: dose})
		p.TotalUsed += dose
		p.LastApplicationDate = o.Timestamp
	}

	for _, p := range order {
		if p.IsFinished() {
			ledger.Finished = append(ledger.Finished, *p)
		} else {
			ledger.Active = append(ledger.Active, *p)
		}
	}
	sortNewestFirst(ledger.Active)
	sortNewestFirst(ledger.Finished)

	return ledger
}

func sortNewestFirst(pens []Pen) {
	sort.SliceStable(pens, func(i, j int) bool {
		return pens[i].StartDate.After(pens[j].StartDate)
	})
}

// Find returns the pen with the given id, active or finished
func (l Ledger) Find(id string) (Pen, bool) {
	for _, group := range [][]Pen{l.Active, l.Finished} {
		for _, p := range group {
			if p.ID == id {
				return p, true
			}
		}
	}
	return Pen{}, false
}

// NextApplication predicts the next application date for the active pen that
// was used most recently
func (l Ledger) NextApplication() (time.Time, bool) {
	var latest *Pen
	for i := range l.Active {
		p := &l.Active[i]
		if latest == nil || p.LastApplicationDate.After(latest.LastApplicationDate) {
			latest = p
		}
	}
	if latest == nil {
		return time.Time{}, false
	}
	return latest.PredictNextApplication()
}

// IsFinished returns true once the pen's content has been used up
func (p Pen) IsFinished() bool {
	return p.TotalUsed >= p.TotalCapacity
}

// Remaining returns the content left in the pen (mg), never negative
func (p Pen) Remaining() float64 {
	return math.Max(0, p.TotalCapacity-p.TotalUsed)
}

// UsagePercent returns how much of the pen's capacity has been used
func (p Pen) UsagePercent() float64 {
	if p.TotalCapacity <= 0 {
		return 0
	}
	return p.TotalUsed / p.TotalCapacity * 100
}

// IsLowOnContent returns true for an active pen that is more than 80% used
func (p Pen) IsLowOnContent() bool {
	return !p.IsFinished() && p.UsagePercent() > LowContentPercent
}

// CostPerApplication divides the pen cost over the applications drawn so far
func (p Pen) CostPerApplication() decimal.Decimal {
	if p.Cost <= 0 || len(p.Applications) == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(p.Cost).Div(decimal.NewFromInt(int64(len(p.Applications)))).Round(2)
}

// AverageIntervalDays returns the mean gap between consecutive applications in
// fractional days. At least two applications are required.
func (p Pen) AverageIntervalDays() (float64, bool) {
	n := len(p.Applications)
	if n < 2 {
		return 0, false
	}
	var total float64
	for i := 1; i < n; i++ {
		total += p.Applications[i].Date.Sub(p.Applications[i-1].Date).Hours() / 24
	}
	return total / float64(n-1), true
}

// PredictNextApplication returns the last application date plus the rounded
// average interval
func (p Pen) PredictNextApplication() (time.Time, bool) {
	avg, ok := p.AverageIntervalDays()
	if !ok {
		return time.Time{}, false
	}
	last := p.Applications[len(p.Applications)-1].Date
	return last.AddDate(0, 0, int(math.Round(avg))), true
}

// PredictExhaustion estimates the date the pen runs out, assuming weekly
// applications of the average dose after the next predicted application
func (p Pen) PredictExhaustion() (time.Time, bool) {
	n := len(p.Applications)
	if n < 2 {
		return time.Time{}, false
	}
	avgDose := p.TotalUsed / float64(n)
	if avgDose <= 0 {
		return time.Time{}, false
	}
	remainingApps := int(math.Floor((p.TotalCapacity - p.TotalUsed) / avgDose))

	next, ok := p.PredictNextApplication()
	if !ok || remainingApps <= 0 {
		return time.Time{}, false
	}
	return next.AddDate(0, 0, remainingApps*daysPerApplication), true
}

// DurabilityEstimate describes how long a fresh pen lasts at a fixed dose
type DurabilityEstimate struct {
	Strength           float64         `json:"penType"`
	Dose               float64         `json:"dosage"`
	TotalApplications  int             `json:"totalApplications"`
	WeeksOfUse         int             `json:"weeksOfUse"`
	DaysOfUse          int             `json:"daysOfUse"`
	CostPerApplication decimal.Decimal `json:"costPerApplication"`
}

// Durability estimates the number of applications a fresh pen of the given
// strength yields at dose, assuming one application per week
func Durability(strength, dose float64, cost decimal.Decimal) (DurabilityEstimate, bool) {
	if strength <= 0 || dose <= 0 {
		return DurabilityEstimate{}, false
	}
	apps := int(math.Floor(strength * CapacityFactor / dose))
	est := DurabilityEstimate{
		Strength:           strength,
		Dose:               dose,
		TotalApplications:  apps,
		WeeksOfUse:         apps,
		DaysOfUse:          apps * daysPerApplication,
		CostPerApplication: decimal.Zero,
	}
	if apps > 0 && cost.IsPositive() {
		est.CostPerApplication = cost.Div(decimal.NewFromInt(int64(apps))).Round(2)
	}
	return est, true
}

// CapacityWarning is raised when a dose would overdraw a pen. The dose is still
// accepted; the pen simply finishes.
type CapacityWarning struct {
	PenID     string
	Dose      float64
	Remaining float64
}

func (w *CapacityWarning) Error() string {
	return fmt.Sprintf("dose %.2f mg exceeds the %.1f mg left in pen %s, the pen will be finished",
		w.Dose, w.Remaining, w.PenID)
}

// CheckCapacity returns a warning if dose exceeds what is left in the pen.
// Unknown pen ids return nil.
func CheckCapacity(ledger Ledger, penID string, dose float64) *CapacityWarning {
	p, ok := ledger.Find(penID)
	if !ok {
		return nil
	}
	if remaining := p.Remaining(); dose > remaining {
		return &CapacityWarning{PenID: penID, Dose: dose, Remaining: remaining}
	}
	return nil
}

// NewPenID returns an identifier for a pen opened at now
func NewPenID(strength float64, now time.Time) string {
	return "pen_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + strconv.FormatFloat(strength, 'f', -1, 64)
}
