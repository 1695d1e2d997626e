package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/pen-tracker/internal/engine"
	"github.com/mrcode/pen-tracker/internal/export"
	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/notifications"
	"github.com/mrcode/pen-tracker/internal/pen"
	"github.com/mrcode/pen-tracker/internal/store"
	"github.com/mrcode/pen-tracker/internal/validation"
)

// ErrUnknownPen is returned when an entry names a pen that was never opened
var ErrUnknownPen = errors.New("unknown pen")

// AddEntry validates a form entry, stores it and saves the snapshot.
// An entry without a date is dated now and a new pen without an id gets one.
// A dose larger than what is left in the pen is accepted with a warning.
func (a *App) AddEntry(ctx context.Context, form validation.FormInput) (models.Observation, *pen.CapacityWarning, error) {
	if strings.TrimSpace(form.Date) == "" {
		form.Date = a.now().UTC().Format(time.RFC3339)
	}
	in, err := validation.ParseForm(form)
	if err != nil {
		return models.Observation{}, nil, err
	}
	if in.IsPenStart && in.PenID == "" && in.PenNominalStrength != nil {
		in.PenID = pen.NewPenID(*in.PenNominalStrength, a.now())
	}

	o, err := validation.NewObservation(in)
	if err != nil {
		return models.Observation{}, nil, err
	}

	var warning *pen.CapacityWarning
	if o.HasPen() {
		ledger := pen.Build(a.entries.Snapshot())
		_, known := ledger.Find(o.PenID)
		if !known && o.PenNominalStrength == nil {
			return models.Observation{}, nil, fmt.Errorf("%w: %s", ErrUnknownPen, o.PenID)
		}
		if known && o.HasDose() {
			warning = pen.CheckCapacity(ledger, o.PenID, o.DoseMg())
		}
	}

	if err := a.entries.Add(o); err != nil {
		return models.Observation{}, nil, err
	}
	if err := a.save(ctx); err != nil {
		_ = a.entries.Delete(o.ID)
		return models.Observation{}, nil, err
	}

	if o.HasDose() {
		a.notifyManager.ClearAlertState(notifications.AlertApplicationDue)
	}
	if warning != nil {
		a.log.Warn("pen capacity exceeded", zap.String("pen", warning.PenID), zap.Error(warning))
	}
	a.log.Info("entry added", zap.String("id", o.ID), zap.Bool("dose", o.HasDose()), zap.Bool("weight", o.HasWeight()))

	_, err = a.recompute()
	return o, warning, err
}

// DeleteEntry removes an observation by id and saves the snapshot. The store
// is left unchanged when the save fails.
func (a *App) DeleteEntry(ctx context.Context, id string) error {
	prev := a.entries.Snapshot()
	if err := a.entries.Delete(id); err != nil {
		return err
	}
	if err := a.save(ctx); err != nil {
		a.restore(prev)
		return err
	}
	a.log.Info("entry deleted", zap.String("id", id))

	_, err := a.recompute()
	return err
}

// SetGoal stores the weight goal in the settings file and, when the
// repository supports it, next to the snapshot
func (a *App) SetGoal(ctx context.Context, goal models.GoalSettings) error {
	if goal.TargetWeight <= 0 || goal.StartWeight < 0 {
		return fmt.Errorf("%w: goal weights must be positive", validation.ErrInvalidObservation)
	}

	s := a.settings.Clone()
	s.Goal = goal
	a.settings.Update(s)
	if err := a.settings.Save(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	if goals, ok := a.repo.(store.GoalRepository); ok {
		if err := goals.SaveGoal(ctx, goal); err != nil {
			return fmt.Errorf("save goal: %w", err)
		}
	}

	_, err := a.recompute()
	return err
}

// Import replaces the whole log with the snapshot file at path. Records that
// fail validation are skipped and returned.
func (a *App) Import(ctx context.Context, path string) ([]store.Rejection, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Import path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}

	observations, rejected, err := store.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	for _, r := range rejected {
		a.log.Warn("import record skipped", zap.Int("index", r.Index), zap.Error(r.Err))
	}

	prev := a.entries.Snapshot()
	if err := a.entries.Replace(observations); err != nil {
		return rejected, fmt.Errorf("import %s: %w", path, err)
	}
	if err := a.save(ctx); err != nil {
		a.restore(prev)
		return rejected, err
	}
	a.notifyManager.ClearAlertState("")
	a.log.Info("snapshot imported",
		zap.String("path", path),
		zap.Int("observations", len(observations)),
		zap.Int("rejected", len(rejected)),
	)

	_, err = a.recompute()
	return rejected, err
}

// Export writes the log to path: an XLSX workbook for ".xlsx", otherwise the
// JSON snapshot format
func (a *App) Export(_ context.Context, path string) error {
	observations := a.entries.Snapshot()

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		data, err = export.Workbook(observations, pen.Build(observations))
	} else {
		data, err = store.Encode(observations)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	a.log.Info("snapshot exported", zap.String("path", path), zap.Int("observations", len(observations)))
	return nil
}

// Durability estimates how long a new pen lasts at a weekly dose
func (a *App) Durability(strength, dose float64, cost string) (pen.DurabilityEstimate, error) {
	c, err := validation.ParseCost(cost)
	if err != nil {
		return pen.DurabilityEstimate{}, err
	}
	est, ok := pen.Durability(strength, dose, c)
	if !ok {
		return pen.DurabilityEstimate{}, fmt.Errorf("%w: strength and dose must be positive", validation.ErrInvalidObservation)
	}
	return est, nil
}

// RunOnce loads the snapshot and computes a single report
func (a *App) RunOnce(ctx context.Context) (*engine.Report, error) {
	return a.Refresh(ctx)
}

// restore puts back a snapshot taken before a change whose save failed
func (a *App) restore(prev []models.Observation) {
	if err := a.entries.Replace(prev); err != nil {
		a.log.Error("restore entries failed", zap.Error(err))
	}
}

func (a *App) save(ctx context.Context) error {
	if err := a.repo.SaveSnapshot(ctx, a.entries.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
