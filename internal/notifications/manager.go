// Package notifications handles system notifications and alerts
package notifications

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/mrcode/pen-tracker/internal/engine"
	"github.com/mrcode/pen-tracker/internal/models"
)

// Alert type constants
const (
	alertLowContent  = "low_content"
	alertPenFinished = "pen_finished"

	// AlertApplicationDue is the key of the application reminder
	AlertApplicationDue = "application_due"
)

// finishedAlertWindow limits pen-finished alerts to pens used up recently,
// so an old history does not replay on startup
const finishedAlertWindow = 7 * 24 * time.Hour

// Notifier delivers a desktop notification
type Notifier func(title, message string) error

type alert struct {
	key     string // alert type, plus pen id for per-pen alerts
	kind    string
	title   string
	message string
}

// Manager handles pen and application alerts
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	notify        Notifier
	now           func() time.Time
	log           *zap.Logger
	mu            sync.Mutex
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify:        sendNotification,
		now:           time.Now,
		log:           log,
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// CheckAndNotify inspects a report and sends any alerts that are due
func (m *Manager) CheckAndNotify(report *engine.Report) error {
	if report == nil || report.Analysis == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var errs []error
	for _, a := range m.pendingAlerts(report, now) {
		if !m.shouldSend(a, now) {
			continue
		}
		if err := m.notify(a.title, a.message); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", a.key, err))
			continue
		}
		m.log.Info("alert sent", zap.String("alert", a.key))
		m.lastAlertTime[a.key] = now
	}
	return errors.Join(errs...)
}

// shouldSend applies repeat suppression. Finished pens are announced once.
func (m *Manager) shouldSend(a alert, now time.Time) bool {
	lastTime, ok := m.lastAlertTime[a.key]
	if !ok {
		return true
	}
	if a.kind == alertPenFinished || m.settings.RepeatAlertMinutes <= 0 {
		return false
	}
	repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
	return now.Sub(lastTime) >= repeatDuration
}

// pendingAlerts lists the alerts the report currently warrants
func (m *Manager) pendingAlerts(report *engine.Report, now time.Time) []alert {
	var alerts []alert

	for _, ps := range report.Pens {
		p := ps.Pen
		switch {
		case ps.Finished:
			if m.settings.EnablePenFinishedAlert && now.Sub(p.LastApplicationDate) < finishedAlertWindow {
				alerts = append(alerts, m.formatAlert(alertPenFinished, ps, now))
			}
		case m.settings.GetContentStatus(ps.UsagePercent) == "low":
			if m.settings.EnableLowContentAlert {
				alerts = append(alerts, m.formatAlert(alertLowContent, ps, now))
			}
		}
	}

	if m.settings.EnableApplicationAlert && report.NextApplication != nil && !now.Before(*report.NextApplication) {
		alerts = append(alerts, alert{
			key:     AlertApplicationDue,
			kind:    AlertApplicationDue,
			title:   "💉 Application due",
			message: fmt.Sprintf("Next application was planned for %s", report.NextApplication.Local().Format("Mon 2 Jan")),
		})
	}
	return alerts
}

// formatAlert creates the per-pen notification title and message
func (m *Manager) formatAlert(kind string, ps engine.PenStatus, now time.Time) alert {
	a := alert{key: kind + ":" + ps.Pen.ID, kind: kind}

	switch kind {
	case alertLowContent:
		a.title = "⚠️ Pen running low"
		a.message = fmt.Sprintf("%.1f mg left in your %g mg pen (%.0f%% used)",
			ps.RemainingMg, ps.Pen.NominalStrength, ps.UsagePercent)
		if ps.Exhaustion != nil {
			days := int(ps.Exhaustion.Sub(now).Hours() / 24)
			if days > 0 {
				a.message += fmt.Sprintf(", empty in about %d days", days)
			}
		}
	case alertPenFinished:
		a.title = "✅ Pen finished"
		a.message = fmt.Sprintf("Your %g mg pen is used up after %d applications. Start a new pen with the next dose.",
			ps.Pen.NominalStrength, len(ps.Pen.Applications))
	}
	return a
}

// sendNotification sends a system notification
func sendNotification(title, message string) error {
	// Use beeep for cross-platform notifications
	return beeep.Notify(title, message, "")
}

// ClearAlertState clears the alert state for a specific key or all keys
func (m *Manager) ClearAlertState(alertKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertKey == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertKey)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("Pen Tracker", "Test notification - alerts are working!")
}
