package concentration

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/pen-tracker/internal/models"
)

var start = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func weeklyDoses(amounts ...float64) []models.Dose {
	doses := make([]models.Dose, len(amounts))
	for i, a := range amounts {
		doses[i] = models.Dose{Date: start.AddDate(0, 0, 7*i), AmountMg: a}
	}
	return doses
}

func TestAt_OneHalfLife(t *testing.T) {
	doses := []models.Dose{{Date: start, AmountMg: 5}}

	assert.InDelta(t, 5.0, At(doses, start), 1e-12)
	assert.InDelta(t, 2.5, At(doses, start.AddDate(0, 0, 5)), 1e-9)
	assert.InDelta(t, 1.25, At(doses, start.AddDate(0, 0, 10)), 1e-9)
}

func TestAt_FutureDosesContributeNothing(t *testing.T) {
	doses := weeklyDoses(5, 5)

	assert.Equal(t, 0.0, At(doses, start.Add(-time.Hour)))
	assert.InDelta(t, 5*math.Exp(-math.Ln2/5*6), At(doses, start.AddDate(0, 0, 6)), 1e-9)
}

func TestAt_MatchesClosedForm(t *testing.T) {
	doses := weeklyDoses(2.5, 5, 7.5, 10)
	k := math.Ln2 / HalfLifeDays

	for h := 0; h <= 40*24; h += 13 {
		ts := start.Add(time.Duration(h) * time.Hour)
		var expected float64
		for _, d := range doses {
			if !ts.Before(d.Date) {
				expected += d.AmountMg * math.Exp(-k*ts.Sub(d.Date).Hours()/24)
			}
		}
		assert.InDelta(t, expected, At(doses, ts), 1e-9, "at %s", ts)
	}
}

func TestAt_NonNegativeAndDecreasingBetweenDoses(t *testing.T) {
	doses := weeklyDoses(5, 5, 5)

	prev := At(doses, start)
	for h := 1; h < 7*24; h++ {
		cur := At(doses, start.Add(time.Duration(h)*time.Hour))
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.LessOrEqual(t, cur, prev, "hour %d", h)
		prev = cur
	}

	// second dose lifts the curve
	assert.Greater(t, At(doses, start.AddDate(0, 0, 7)), prev)
}

func TestSeries_Bounds(t *testing.T) {
	doses := weeklyDoses(5, 5, 5) // last dose on day 14

	tests := []struct {
		name    string
		now     time.Time
		window  int
		samples int
		lastDay time.Time
	}{
		{"Window after last dose", start.AddDate(0, 0, 20), 30, 45, start.AddDate(0, 0, 44)},
		{"Now beyond window", start.AddDate(0, 0, 60), 30, 61, start.AddDate(0, 0, 60)},
		{"Default window", start.AddDate(0, 0, 1), 0, 45, start.AddDate(0, 0, 44)},
		{"Short window", start.AddDate(0, 0, 1), 7, 22, start.AddDate(0, 0, 21)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := Collect(Series(doses, tt.now, tt.window))
			require.Len(t, samples, tt.samples)
			assert.Equal(t, start, samples[0].Date)
			assert.Equal(t, tt.lastDay, samples[len(samples)-1].Date)
		})
	}
}

func TestSeries_Restartable(t *testing.T) {
	seq := Series(weeklyDoses(5, 7.5), start.AddDate(0, 0, 3), 10)

	first := Collect(seq)
	second := Collect(seq)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestSeries_EarlyStop(t *testing.T) {
	n := 0
	for range Series(weeklyDoses(5), start, 30) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestSeries_Empty(t *testing.T) {
	assert.Empty(t, Collect(Series(nil, start, 30)))
}

func TestSeriesWithWeights(t *testing.T) {
	obs := []models.Observation{
		{ID: "1", Timestamp: start, DoseAmount: models.Float(5), Weight: models.Float(110)},
		{ID: "2", Timestamp: start.AddDate(0, 0, 2).Add(3 * time.Hour), Weight: models.Float(109.4)},
	}

	samples := Collect(SeriesWithWeights(DosesFrom(obs), obs, start, 5))
	require.Len(t, samples, 6)

	require.NotNil(t, samples[0].Weight)
	assert.Equal(t, 110.0, *samples[0].Weight)
	assert.Nil(t, samples[1].Weight)
	require.NotNil(t, samples[2].Weight)
	assert.Equal(t, 109.4, *samples[2].Weight)
}

func TestDosesFromAndSummarize(t *testing.T) {
	obs := []models.Observation{
		{ID: "b", Timestamp: start.AddDate(0, 0, 7), DoseAmount: models.Float(7.5)},
		{ID: "w", Timestamp: start.AddDate(0, 0, 1), Weight: models.Float(100)},
		{ID: "a", Timestamp: start, DoseAmount: models.Float(5)},
	}

	doses := DosesFrom(obs)
	require.Len(t, doses, 2)
	assert.Equal(t, start, doses[0].Date)
	assert.Equal(t, 7.5, doses[1].AmountMg)

	st := Summarize(doses)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 12.5, st.TotalMg)
	assert.Equal(t, 6.25, st.AverageMg)

	assert.Equal(t, Stats{}, Summarize(nil))
}
