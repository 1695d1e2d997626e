// Package app provides the main application logic
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/pen-tracker/internal/engine"
	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/notifications"
	"github.com/mrcode/pen-tracker/internal/reference"
	"github.com/mrcode/pen-tracker/internal/render"
	"github.com/mrcode/pen-tracker/internal/store"
)

// Refresh interval bounds in seconds
const (
	minRefreshInterval     = 30
	maxRefreshInterval     = 3600
	defaultRefreshInterval = 300
)

// ErrAlreadyRunning is returned by Run when the update loop is active
var ErrAlreadyRunning = errors.New("update loop already running")

// App wires the observation store, the analysis engine and the outputs
type App struct {
	settings      *models.Settings
	log           *zap.Logger
	repo          store.Repository
	entries       *store.Store
	engine        *engine.Engine
	notifyManager *notifications.Manager
	closers       []io.Closer
	now           func() time.Time

	mu                sync.RWMutex
	lastReport        *engine.Report
	lastSuccessTime   time.Time
	consecutiveErrors int
	ticker            *time.Ticker
	stopChan          chan struct{}
	isRunning         bool
}

// New creates an App using the repository selected in settings
func New(settings *models.Settings, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	eng, err := engine.New(engine.DefaultCacheSize, log.Named("engine"))
	if err != nil {
		return nil, err
	}
	entries, err := store.New(nil)
	if err != nil {
		return nil, err
	}

	a := &App{
		settings:      settings,
		log:           log,
		entries:       entries,
		engine:        eng,
		notifyManager: notifications.NewManager(settings, log.Named("notifications")),
		now:           time.Now,
	}

	if settings.UsesSQLite() {
		repo, err := store.NewSQLiteRepository(settings.SQLitePath, log.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		a.repo = repo
		a.closers = append(a.closers, repo)
	} else {
		a.repo = store.NewJSONFileRepository(settings.SnapshotPath, log.Named("snapshot"))
	}

	return a, nil
}

// Load reads the snapshot from the repository into the store. A goal kept by
// the repository fills in when the settings carry none.
func (a *App) Load(ctx context.Context) error {
	observations, err := a.repo.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := a.entries.Replace(observations); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if goals, ok := a.repo.(store.GoalRepository); ok && !a.settings.HasGoal() {
		goal, found, err := goals.LoadGoal(ctx)
		if err != nil {
			return fmt.Errorf("load goal: %w", err)
		}
		if found {
			s := a.settings.Clone()
			s.Goal = goal
			a.settings.Update(s)
		}
	}
	return nil
}

// Refresh reloads the snapshot and recomputes the report. On failure the
// previous report stays current.
func (a *App) Refresh(ctx context.Context) (*engine.Report, error) {
	if err := a.Load(ctx); err != nil {
		a.recordError(err)
		return nil, err
	}
	return a.recompute()
}

// recompute builds a report from the in-memory store and publishes it
func (a *App) recompute() (*engine.Report, error) {
	report, err := a.engine.Report(a.entries.Snapshot(), a.options(), a.now())
	if err != nil {
		a.recordError(err)
		return nil, err
	}

	a.mu.Lock()
	a.lastReport = report
	a.lastSuccessTime = a.now()
	a.consecutiveErrors = 0
	a.mu.Unlock()

	a.publish(report)
	return report, nil
}

// publish renders the icon and sends alerts. Failures here are logged only.
func (a *App) publish(report *engine.Report) {
	settings := a.settings.Clone()

	if settings.IconPath != "" {
		if err := render.WriteIcon(settings.IconPath, report, settings); err != nil {
			a.log.Warn("icon render failed", zap.String("path", settings.IconPath), zap.Error(err))
		}
	}

	if err := a.notifyManager.CheckAndNotify(report); err != nil {
		a.log.Warn("notification error", zap.Error(err))
	}

	a.log.Debug("report updated",
		zap.Int("observations", a.entries.Len()),
		zap.Int("pens", len(report.Pens)),
		zap.Float64("concentration", report.CurrentConcentration),
	)
}

func (a *App) recordError(err error) {
	a.mu.Lock()
	a.consecutiveErrors++
	attempt := a.consecutiveErrors
	lastSuccess := a.lastSuccessTime
	a.mu.Unlock()

	fields := []zap.Field{zap.Int("attempt", attempt), zap.Error(err)}
	if !lastSuccess.IsZero() {
		fields = append(fields, zap.Duration("since_success", a.now().Sub(lastSuccess)))
	}
	a.log.Error("refresh failed", fields...)
}

func (a *App) options() engine.Options {
	s := a.settings.Clone()
	return engine.Options{
		Goal:        s.Goal,
		Table:       reference.ByName(s.ReferenceTable),
		WindowDays:  s.DisplayWindowDays,
		ChartWindow: s.ChartWindow,
	}
}

func (a *App) refreshInterval() time.Duration {
	seconds := a.settings.Clone().RefreshInterval
	if seconds <= 0 {
		seconds = defaultRefreshInterval
	}
	seconds = max(minRefreshInterval, min(seconds, maxRefreshInterval))
	return time.Duration(seconds) * time.Second
}

// watchPath is the file whose changes trigger a refresh
func (a *App) watchPath() string {
	if a.settings.UsesSQLite() {
		return a.settings.Clone().SQLitePath
	}
	return a.settings.Clone().SnapshotPath
}

// Run refreshes once, then on every tick and on every snapshot change,
// until ctx is canceled or Stop is called
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.isRunning {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.isRunning = true
	a.ticker = time.NewTicker(a.refreshInterval())
	a.stopChan = make(chan struct{})
	ticker, stop := a.ticker, a.stopChan
	a.mu.Unlock()

	defer func() {
		ticker.Stop()
		a.mu.Lock()
		a.isRunning = false
		a.mu.Unlock()
	}()

	var changes <-chan struct{}
	if a.settings.Clone().WatchSnapshot {
		w, err := newSnapshotWatcher(a.watchPath(), a.log.Named("watcher"))
		if err != nil {
			a.log.Warn("snapshot watching disabled", zap.Error(err))
		} else {
			defer func() { _ = w.Close() }()
			go w.run(ctx)
			changes = w.Changes()
		}
	}

	a.log.Info("update loop started", zap.Duration("interval", a.refreshInterval()))

	// Initial fetch
	_, _ = a.Refresh(ctx)

	for {
		select {
		case <-ticker.C:
			_, _ = a.Refresh(ctx)
		case <-changes:
			a.log.Info("snapshot changed, refreshing")
			_, _ = a.Refresh(ctx)
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop ends a running update loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isRunning && a.stopChan != nil {
		close(a.stopChan)
		a.stopChan = nil
	}
}

// Close stops the loop and releases the repository
func (a *App) Close() error {
	a.Stop()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// UpdateSettings applies new settings to the running app. Storage changes
// take effect on the next start.
func (a *App) UpdateSettings(settings *models.Settings) {
	a.settings.Update(settings)
	a.notifyManager.UpdateSettings(a.settings)

	a.mu.Lock()
	if a.ticker != nil {
		a.ticker.Reset(a.refreshInterval())
	}
	a.mu.Unlock()
}

// GetSettings returns a copy of the current settings
func (a *App) GetSettings() *models.Settings {
	return a.settings.Clone()
}

// GetCurrentReport returns the last successfully computed report, or nil
func (a *App) GetCurrentReport() *engine.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReport
}

// Status returns the status text for the last report. The compact form fits
// a Windows tooltip.
func (a *App) Status(compact bool) string {
	if compact {
		return render.CompactStatus(a.GetCurrentReport(), a.settings)
	}
	return render.Status(a.GetCurrentReport(), a.settings)
}

// SendTestNotification sends a test desktop notification
func (a *App) SendTestNotification() error {
	return a.notifyManager.SendTestNotification()
}
