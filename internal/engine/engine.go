// Package engine computes complete reports from an observation snapshot,
// memoizing the time-independent analysis by snapshot content
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mrcode/pen-tracker/internal/concentration"
	"github.com/mrcode/pen-tracker/internal/forecast"
	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/pen"
	"github.com/mrcode/pen-tracker/internal/progress"
	"github.com/mrcode/pen-tracker/internal/reference"
)

// DefaultCacheSize is the number of analyses kept when New is given a non-positive size
const DefaultCacheSize = 32

// Options select the goal, reference table and chart window for a report.
// WindowDays extends the concentration series past the last dose; ChartWindow
// (forecast.WindowAll, WindowQuarter, WindowMonth) limits the charted history.
type Options struct {
	Goal        models.GoalSettings
	Table       reference.Table
	WindowDays  int
	ChartWindow string
}

func (o Options) table() reference.Table {
	if len(o.Table.Points) == 0 {
		return reference.Weekly
	}
	return o.Table
}

// PenStatus is a pen together with its derived figures
type PenStatus struct {
	Pen                pen.Pen         `json:"pen"`
	RemainingMg        float64         `json:"remaining"`
	UsagePercent       float64         `json:"usagePercent"`
	LowContent         bool            `json:"lowContent"`
	Finished           bool            `json:"finished"`
	CostPerApplication decimal.Decimal `json:"costPerApplication"`
	NextApplication    *time.Time      `json:"nextApplication,omitempty"`
	Exhaustion         *time.Time      `json:"exhaustion,omitempty"`
}

// Analysis is everything derivable from a snapshot without a reference to
// the current time. Cached analyses are shared and must not be modified.
type Analysis struct {
	Hash           uint64                `json:"hash"`
	Ledger         pen.Ledger            `json:"ledger"`
	Pens           []PenStatus           `json:"pens"`
	Doses          []models.Dose         `json:"doses"`
	DoseStats      concentration.Stats   `json:"doseStats"`
	Progress       *progress.Result      `json:"progress,omitempty"`
	Trend          *forecast.Trend       `json:"trend,omitempty"`
	Summary        forecast.Summary      `json:"summary"`
	ReferenceCurve []forecast.CurvePoint `json:"referenceCurve,omitempty"`
}

// Report is an Analysis plus the parts evaluated at GeneratedAt
type Report struct {
	*Analysis

	GeneratedAt          time.Time              `json:"generatedAt"`
	Concentration        []concentration.Sample `json:"concentration"`
	CurrentConcentration float64                `json:"currentConcentration"`
	Weights              []models.Observation   `json:"weights"`
	NextApplication      *time.Time             `json:"nextApplication,omitempty"`
	GoalProjection       *forecast.Projection   `json:"goalProjection,omitempty"`
}

// Engine builds reports. It is safe for concurrent use.
type Engine struct {
	cache *lru.Cache[uint64, *Analysis]
	log   *zap.Logger
}

// New creates an engine caching up to cacheSize analyses
func New(cacheSize int, log *zap.Logger) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := lru.New[uint64, *Analysis](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create analysis cache: %w", err)
	}
	return &Engine{cache: cache, log: log}, nil
}

// Hash digests the snapshot content together with the options that affect the analysis
func Hash(observations []models.Observation, opts Options) (uint64, error) {
	data, err := json.Marshal(observations)
	if err != nil {
		return 0, fmt.Errorf("hash snapshot: %w", err)
	}
	d := xxhash.New()
	_, _ = d.Write(data)
	_, _ = fmt.Fprintf(d, "|%s|%g|%g", opts.table().Name, opts.Goal.TargetWeight, opts.Goal.StartWeight)
	return d.Sum64(), nil
}

// Analyze returns the time-independent analysis of observations
func (e *Engine) Analyze(observations []models.Observation, opts Options) (*Analysis, error) {
	key, err := Hash(observations, opts)
	if err != nil {
		return nil, err
	}
	if a, ok := e.cache.Get(key); ok {
		e.log.Debug("analysis cache hit", zap.Uint64("hash", key))
		return a, nil
	}

	a := analyze(observations, opts)
	a.Hash = key
	e.cache.Add(key, a)
	e.log.Debug("analysis computed",
		zap.Uint64("hash", key),
		zap.Int("observations", len(observations)),
		zap.Int("activePens", len(a.Ledger.Active)),
	)
	return a, nil
}

// Report returns the full report for observations evaluated at now
func (e *Engine) Report(observations []models.Observation, opts Options, now time.Time) (*Report, error) {
	a, err := e.Analyze(observations, opts)
	if err != nil {
		return nil, err
	}
	now = now.UTC()

	r := &Report{
		Analysis:             a,
		GeneratedAt:          now,
		Concentration:        chartSamples(a.Doses, observations, now, opts),
		CurrentConcentration: concentration.At(a.Doses, now),
		Weights:              models.Weighted(forecast.Filter(observations, opts.ChartWindow, now)),
	}
	if next, ok := a.Ledger.NextApplication(); ok {
		r.NextApplication = &next
	}
	if proj, ok := forecast.GoalProjection(observations, opts.Goal, opts.table(), now); ok {
		r.GoalProjection = &proj
	}
	return r, nil
}

// chartSamples is the concentration series with samples before the chart window dropped
func chartSamples(doses []models.Dose, observations []models.Observation, now time.Time, opts Options) []concentration.Sample {
	series := concentration.SeriesWithWeights(doses, observations, now, opts.WindowDays)
	cutoff, bounded := forecast.WindowStart(opts.ChartWindow, now)
	if !bounded {
		return concentration.Collect(series)
	}

	var out []concentration.Sample
	for s := range series {
		if !s.Date.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of cached analyses
func (e *Engine) Len() int {
	return e.cache.Len()
}

func analyze(observations []models.Observation, opts Options) *Analysis {
	table := opts.table()
	ledger := pen.Build(observations)
	doses := concentration.DosesFrom(observations)

	a := &Analysis{
		Ledger:         ledger,
		Doses:          doses,
		DoseStats:      concentration.Summarize(doses),
		Summary:        forecast.Summarize(observations, &opts.Goal),
		ReferenceCurve: forecast.ReferenceCurve(observations, table),
	}

	for _, group := range [][]pen.Pen{ledger.Active, ledger.Finished} {
		for _, p := range group {
			a.Pens = append(a.Pens, status(p))
		}
	}
	if r, ok := progress.Compare(observations, table); ok {
		a.Progress = &r
	}
	if t, ok := forecast.WeightTrend(observations); ok {
		a.Trend = &t
	}
	return a
}

func status(p pen.Pen) PenStatus {
	s := PenStatus{
		Pen:                p,
		RemainingMg:        p.Remaining(),
		UsagePercent:       p.UsagePercent(),
		LowContent:         p.IsLowOnContent(),
		Finished:           p.IsFinished(),
		CostPerApplication: p.CostPerApplication(),
	}
	if s.Finished {
		return s
	}
	if next, ok := p.PredictNextApplication(); ok {
		s.NextApplication = &next
	}
	if end, ok := p.PredictExhaustion(); ok {
		s.Exhaustion = &end
	}
	return s
}
