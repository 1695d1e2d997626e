package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/pen-tracker/internal/models"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
		wantErr  bool
	}{
		{"Plain", "5", 5, false},
		{"Decimal", "2.5", 2.5, false},
		{"Decimal comma", "2,5", 2.5, false},
		{"Unit suffix", "5mg", 5, false},
		{"Unit suffix with space", " 7.5 mg ", 7.5, false},
		{"Kilograms", "101.3kg", 101.3, false},
		{"Empty", "", 0, true},
		{"Text", "abc", 0, true},
		{"NaN", "NaN", 0, true},
		{"Infinity", "Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseNumber("dosage", tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedNumber))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, v, 1e-9)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-03-01T09:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())
	assert.Equal(t, 7, d.Hour())

	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, err = ParseDate("01/03/2025")
	assert.ErrorIs(t, err, ErrInvalidObservation)
}

func TestNewObservation(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	in := Input{
		Timestamp:  time.Date(2025, 3, 1, 9, 0, 0, 0, cet),
		DoseAmount: models.Float(5),
		Note:       "  first shot ",
	}

	obs, err := NewObservation(in)
	require.NoError(t, err)
	assert.NotEmpty(t, obs.ID)
	assert.Equal(t, time.UTC, obs.Timestamp.Location())
	assert.True(t, obs.Timestamp.Equal(in.Timestamp))
	assert.Equal(t, "first shot", obs.Note)

	other, err := NewObservation(in)
	require.NoError(t, err)
	assert.NotEqual(t, obs.ID, other.ID, "each admitted observation gets its own id")
}

func TestNewObservation_Rejections(t *testing.T) {
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{"Dose over limit", Input{Timestamp: ts, DoseAmount: models.Float(15.5)}, ErrDoseLimit},
		{"Neither weight nor dose", Input{Timestamp: ts}, ErrInvalidObservation},
		{"Missing timestamp", Input{Weight: models.Float(100)}, ErrInvalidObservation},
		{"Negative weight", Input{Timestamp: ts, Weight: models.Float(-1)}, ErrInvalidObservation},
		{"Zero dose", Input{Timestamp: ts, DoseAmount: models.Float(0)}, ErrInvalidObservation},
		{"Negative cost", Input{Timestamp: ts, DoseAmount: models.Float(5), Cost: models.Float(-3)}, ErrInvalidObservation},
		{"Zero strength", Input{Timestamp: ts, DoseAmount: models.Float(5), PenNominalStrength: models.Float(0)}, ErrInvalidObservation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewObservation(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewObservation_DoseAtLimitAccepted(t *testing.T) {
	_, err := NewObservation(Input{
		Timestamp:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DoseAmount: models.Float(MaxDoseMg),
	})
	assert.NoError(t, err)
}

func TestParseForm(t *testing.T) {
	in, err := ParseForm(FormInput{
		Date:    "2025-03-01",
		Weight:  "",
		Dosage:  "5mg",
		PenID:   " pen_1 ",
		PenType: "5",
		NewPen:  true,
		PenCost: "",
	})
	require.NoError(t, err)

	assert.Nil(t, in.Weight)
	assert.Nil(t, in.Cost)
	require.NotNil(t, in.DoseAmount)
	assert.Equal(t, 5.0, *in.DoseAmount)
	assert.Equal(t, "pen_1", in.PenID)
	assert.True(t, in.IsPenStart)

	_, err = ParseForm(FormInput{Date: "2025-03-01", Weight: "heavy"})
	assert.ErrorIs(t, err, ErrMalformedNumber)
}

func TestValidateObservation(t *testing.T) {
	obs := models.Observation{
		ID:        "abc",
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Weight:    models.Float(100),
	}
	assert.NoError(t, ValidateObservation(obs))

	obs.ID = ""
	assert.ErrorIs(t, ValidateObservation(obs), ErrInvalidObservation)
}

func TestParseCost(t *testing.T) {
	c, err := ParseCost("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())

	c, err = ParseCost("149,90")
	require.NoError(t, err)
	assert.Equal(t, "149.9", c.String())

	_, err = ParseCost("-1")
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, err = ParseCost("free")
	assert.ErrorIs(t, err, ErrMalformedNumber)
}

func TestParseFields(t *testing.T) {
	f, err := ParseFields("date=2025-01-06, weight=120.4,dose=2.5mg,strength=5,new,cost=149.90,note=left arm")
	require.NoError(t, err)
	assert.Equal(t, FormInput{
		Date: "2025-01-06", Weight: "120.4", Dosage: "2.5mg", PenType: "5",
		NewPen: true, PenCost: "149.90", Notes: "left arm",
	}, f)

	f, err = ParseFields("dose=5,pen=pen_1,new=false")
	require.NoError(t, err)
	assert.Equal(t, "pen_1", f.PenID)
	assert.False(t, f.NewPen)

	_, err = ParseFields("dose=5,colour=blue")
	assert.ErrorIs(t, err, ErrInvalidObservation)

	f, err = ParseFields("")
	require.NoError(t, err)
	assert.Equal(t, FormInput{}, f)
}
