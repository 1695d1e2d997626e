package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/store"
	"github.com/mrcode/pen-tracker/internal/validation"
)

var testNow = time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)

const snapshotJSON = `[
  {"id": "1", "date": "2025-01-06T08:00:00Z", "weight": 120, "dosage": 2.5, "penId": "pen_a", "penType": 5, "isNewPen": true, "penCost": 150},
  {"id": "2", "date": "2025-01-13T08:00:00Z", "weight": 119.1, "dosage": "2.5mg", "penId": "pen_a"},
  {"id": "3", "date": "2025-01-15T08:00:00Z", "weight": 118.6},
  {"id": "4", "date": "2025-01-16T08:00:00Z", "dosage": 40}
]`

func testSettings(t *testing.T) *models.Settings {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PEN_TRACKER_CONFIG", filepath.Join(dir, "settings.json"))

	s := models.DefaultSettings()
	s.ResolvePaths(dir)
	s.WatchSnapshot = false
	s.EnableLowContentAlert = false
	s.EnableApplicationAlert = false
	s.EnablePenFinishedAlert = false
	return s
}

func newTestApp(t *testing.T, s *models.Settings) *App {
	t.Helper()
	a, err := New(s, nil)
	require.NoError(t, err)
	a.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApp_AddEntry(t *testing.T) {
	ctx := context.Background()
	s := testSettings(t)
	a := newTestApp(t, s)
	require.NoError(t, a.Load(ctx))

	first, warning, err := a.AddEntry(ctx, validation.FormInput{
		Date: "2025-01-06", Weight: "120", Dosage: "2.5", PenType: "5", NewPen: true, PenCost: "150",
	})
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.True(t, strings.HasPrefix(first.PenID, "pen_"), first.PenID)
	assert.True(t, strings.HasSuffix(first.PenID, "_5"), first.PenID)

	_, _, err = a.AddEntry(ctx, validation.FormInput{Date: "2025-01-13", Dosage: "2.5", PenID: first.PenID})
	require.NoError(t, err)

	report := a.GetCurrentReport()
	require.NotNil(t, report)
	require.Len(t, report.Pens, 1)
	assert.InDelta(t, 22.5, report.Pens[0].RemainingMg, 1e-9)
	require.NotNil(t, report.NextApplication)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), *report.NextApplication)

	// Persisted: a second app sees both entries
	b := newTestApp(t, s)
	require.NoError(t, b.Load(ctx))
	assert.Equal(t, 2, b.entries.Len())
}

func TestApp_AddEntry_Rejections(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testSettings(t))

	_, _, err := a.AddEntry(ctx, validation.FormInput{Date: "2025-01-06", Dosage: "2.5", PenID: "pen_missing"})
	assert.ErrorIs(t, err, ErrUnknownPen)

	_, _, err = a.AddEntry(ctx, validation.FormInput{Date: "2025-01-06", Dosage: "20"})
	assert.ErrorIs(t, err, validation.ErrDoseLimit)

	_, _, err = a.AddEntry(ctx, validation.FormInput{Date: "2025-01-06", Weight: "abc"})
	assert.ErrorIs(t, err, validation.ErrMalformedNumber)

	assert.Equal(t, 0, a.entries.Len())
}

func TestApp_AddEntry_CapacityWarning(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testSettings(t))

	first, _, err := a.AddEntry(ctx, validation.FormInput{Date: "2025-01-06", Dosage: "15", PenType: "5", NewPen: true})
	require.NoError(t, err)

	_, warning, err := a.AddEntry(ctx, validation.FormInput{Date: "2025-01-13", Dosage: "15", PenID: first.PenID})
	require.NoError(t, err, "overdrawing a pen is allowed")
	require.NotNil(t, warning)
	assert.InDelta(t, 12.5, warning.Remaining, 1e-9)

	report := a.GetCurrentReport()
	require.Len(t, report.Pens, 1)
	assert.True(t, report.Pens[0].Finished)
	assert.Zero(t, report.Pens[0].RemainingMg)
}

func TestApp_DeleteEntry(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testSettings(t))

	o, _, err := a.AddEntry(ctx, validation.FormInput{Date: "2025-01-06", Weight: "100"})
	require.NoError(t, err)

	assert.ErrorIs(t, a.DeleteEntry(ctx, "nope"), store.ErrNotFound)
	require.NoError(t, a.DeleteEntry(ctx, o.ID))
	assert.Equal(t, 0, a.entries.Len())
	assert.Equal(t, 0, a.GetCurrentReport().Summary.TotalEntries)
}

func TestApp_ImportExport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newTestApp(t, testSettings(t))

	in := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(in, []byte(snapshotJSON), 0o600))

	rejected, err := a.Import(ctx, in)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, 3, rejected[0].Index)
	assert.ErrorIs(t, rejected[0].Err, validation.ErrDoseLimit)
	assert.Equal(t, 3, a.entries.Len())

	out := filepath.Join(dir, "out", "export.json")
	require.NoError(t, a.Export(ctx, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	decoded, rejected, err := store.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	want := a.entries.Snapshot()
	require.Len(t, decoded, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(decoded[i]), "observation %d differs", i)
	}

	xlsx := filepath.Join(dir, "export.xlsx")
	require.NoError(t, a.Export(ctx, xlsx))
	data, err = os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))

	_, err = a.Import(ctx, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestApp_RefreshKeepsLastReport(t *testing.T) {
	ctx := context.Background()
	s := testSettings(t)
	a := newTestApp(t, s)

	require.NoError(t, os.WriteFile(s.SnapshotPath, []byte(snapshotJSON), 0o600))
	first, err := a.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Summary.TotalEntries)

	require.NoError(t, os.WriteFile(s.SnapshotPath, []byte(`{"broken": true}`), 0o600))
	_, err = a.Refresh(ctx)
	require.Error(t, err)

	assert.Same(t, first, a.GetCurrentReport())
	assert.Equal(t, 1, a.consecutiveErrors)
	assert.Contains(t, a.Status(false), "Pen 5 mg")
	assert.Contains(t, a.Status(true), "mg left")
}

func TestApp_GoalInSQLite(t *testing.T) {
	ctx := context.Background()
	s := testSettings(t)
	s.StorageDriver = models.StorageSQLite

	a := newTestApp(t, s)
	require.NoError(t, a.Load(ctx))
	require.NoError(t, a.SetGoal(ctx, models.GoalSettings{TargetWeight: 90, StartWeight: 120}))
	assert.Error(t, a.SetGoal(ctx, models.GoalSettings{TargetWeight: 0}))

	// A fresh install pointing at the same database picks the goal up
	fresh := s.Clone()
	fresh.Goal = models.GoalSettings{}
	b := newTestApp(t, fresh)
	require.NoError(t, b.Load(ctx))
	assert.Equal(t, 90.0, b.GetSettings().Goal.TargetWeight)
}

func TestApp_WritesIcon(t *testing.T) {
	s := testSettings(t)
	s.IconPath = filepath.Join(t.TempDir(), "pen.png")
	a := newTestApp(t, s)

	require.NoError(t, os.WriteFile(s.SnapshotPath, []byte(snapshotJSON), 0o600))
	_, err := a.RunOnce(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(s.IconPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestApp_Run(t *testing.T) {
	s := testSettings(t)
	s.WatchSnapshot = true
	a := newTestApp(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.GetCurrentReport() != nil }, 5*time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, a.Run(ctx), ErrAlreadyRunning)

	// An external write to the snapshot triggers a refresh
	require.NoError(t, os.WriteFile(s.SnapshotPath, []byte(snapshotJSON), 0o600))
	require.Eventually(t, func() bool {
		r := a.GetCurrentReport()
		return r != nil && r.Summary.TotalEntries == 3
	}, 5*time.Second, 20*time.Millisecond)

	a.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestApp_refreshInterval(t *testing.T) {
	tests := []struct {
		seconds  int
		expected time.Duration
	}{
		{0, 300 * time.Second},
		{10, 30 * time.Second},
		{600, 600 * time.Second},
		{99999, time.Hour},
	}

	a := newTestApp(t, testSettings(t))
	for _, tt := range tests {
		s := a.GetSettings()
		s.RefreshInterval = tt.seconds
		a.UpdateSettings(s)
		if got := a.refreshInterval(); got != tt.expected {
			t.Errorf("refreshInterval(%d) = %v, want %v", tt.seconds, got, tt.expected)
		}
	}
}

func TestApp_Durability(t *testing.T) {
	a := newTestApp(t, testSettings(t))

	est, err := a.Durability(5, 5, "100")
	require.NoError(t, err)
	assert.Equal(t, 5, est.TotalApplications)
	assert.Equal(t, "20", est.CostPerApplication.String())

	_, err = a.Durability(0, 5, "")
	assert.ErrorIs(t, err, validation.ErrInvalidObservation)
}

const idlessSnapshotJSON = `[
  {"date": "2025-01-06T08:00:00Z", "weight": 120, "dosage": 2.5, "penId": "pen_a", "penType": 5, "isNewPen": true},
  {"date": "2025-01-13T08:00:00Z", "weight": 119.1, "dosage": 2.5, "penId": "pen_a"},
  {"id": "w", "date": "2025-01-15T08:00:00Z", "weight": 118.6},
  {"id": "w", "date": "2025-01-16T08:00:00Z", "weight": 118.2}
]`

func TestApp_RefreshKeepsRecordIDs(t *testing.T) {
	ctx := context.Background()
	s := testSettings(t)
	a := newTestApp(t, s)
	require.NoError(t, os.WriteFile(s.SnapshotPath, []byte(idlessSnapshotJSON), 0o600))

	first, err := a.Refresh(ctx)
	require.NoError(t, err, "a repeated id skips the record, not the load")
	ids := a.entries.Snapshot()
	require.Len(t, ids, 3)

	second, err := a.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Analysis.Hash, second.Analysis.Hash)
	assert.Same(t, first.Analysis, second.Analysis, "unchanged snapshot hits the analysis cache")
	for i, o := range a.entries.Snapshot() {
		assert.Equal(t, ids[i].ID, o.ID)
	}

	require.NoError(t, a.DeleteEntry(ctx, ids[1].ID))
	assert.Equal(t, 2, a.entries.Len())
}

// failingRepository loads like the wrapped repository but never saves
type failingRepository struct {
	store.Repository
}

var errDiskFull = errors.New("disk full")

func (failingRepository) SaveSnapshot(context.Context, []models.Observation) error {
	return errDiskFull
}

func TestApp_FailedSaveLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := testSettings(t)
	a := newTestApp(t, s)
	require.NoError(t, os.WriteFile(s.SnapshotPath, []byte(snapshotJSON), 0o600))
	require.NoError(t, a.Load(ctx))
	before := a.entries.Snapshot()

	a.repo = failingRepository{Repository: a.repo}

	_, _, err := a.AddEntry(ctx, validation.FormInput{Date: "2025-01-20", Weight: "118"})
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, before, a.entries.Snapshot())

	assert.ErrorIs(t, a.DeleteEntry(ctx, "2"), errDiskFull)
	assert.Equal(t, before, a.entries.Snapshot())

	in := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(in, []byte(`[{"id": "x", "date": "2025-01-06", "weight": 90}]`), 0o600))
	_, err = a.Import(ctx, in)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, before, a.entries.Snapshot())
	_, ok := a.entries.Get("2")
	assert.True(t, ok)
}

func TestApp_AddEntry_DefaultsToNow(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testSettings(t))

	o, _, err := a.AddEntry(ctx, validation.FormInput{Weight: "101.5"})
	require.NoError(t, err)
	assert.True(t, testNow.Equal(o.Timestamp), o.Timestamp)
}
