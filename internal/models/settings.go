// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Storage driver names
const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

// Reference table names
const (
	TableWeekly  = "weekly"
	TableMonthly = "monthly"
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Storage settings
	StorageDriver string `json:"storageDriver"` // "json" or "sqlite"
	SnapshotPath  string `json:"snapshotPath"`  // JSON snapshot file
	SQLitePath    string `json:"sqlitePath"`    // SQLite database file

	// Analysis settings
	DisplayWindowDays int          `json:"displayWindowDays"` // Concentration chart tail after the last dose
	ReferenceTable    string       `json:"referenceTable"`    // "weekly" or "monthly"
	ChartWindow       string       `json:"chartWindow"`       // "all", "quarter" or "month"
	Goal              GoalSettings `json:"goal"`

	// Refresh settings
	RefreshInterval int  `json:"refreshInterval"` // Seconds (30-3600)
	WatchSnapshot   bool `json:"watchSnapshot"`   // Recompute when the snapshot file changes

	// Alert settings
	EnableLowContentAlert  bool    `json:"enableLowContentAlert"`
	EnableApplicationAlert bool    `json:"enableApplicationAlert"`
	EnablePenFinishedAlert bool    `json:"enablePenFinishedAlert"`
	LowContentPercent      float64 `json:"lowContentPercent"`  // Usage above this is "low"
	RepeatAlertMinutes     int     `json:"repeatAlertMinutes"` // 0 = no repeat

	// Output settings
	IconPath string `json:"iconPath"` // Pen gauge PNG, empty disables rendering

	// Logging
	LogLevel  string `json:"logLevel"`  // "debug", "info", "warn", "error"
	LogFormat string `json:"logFormat"` // "json" or "console"
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		StorageDriver: StorageJSON,
		SnapshotPath:  "",
		SQLitePath:    "",

		DisplayWindowDays: 30,
		ReferenceTable:    TableWeekly,
		ChartWindow:       "all",

		RefreshInterval: 300, // 5 minutes
		WatchSnapshot:   true,

		EnableLowContentAlert:  true,
		EnableApplicationAlert: true,
		EnablePenFinishedAlert: true,
		LowContentPercent:      80,
		RepeatAlertMinutes:     720,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "pen-tracker")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file.
// PEN_TRACKER_CONFIG overrides the location.
func GetConfigPath() (string, error) {
	if p := os.Getenv("PEN_TRACKER_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from disk
func (s *Settings) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if os.IsNotExist(err) {
			// Use defaults if file doesn't exist
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	return json.Unmarshal(data, s)
}

// Save saves settings to disk
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overrides paths and logging from PEN_TRACKER_* environment variables
func (s *Settings) ApplyEnv() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v := os.Getenv("PEN_TRACKER_STORAGE"); v != "" {
		s.StorageDriver = strings.ToLower(v)
	}
	if v := os.Getenv("PEN_TRACKER_SNAPSHOT"); v != "" {
		s.SnapshotPath = v
	}
	if v := os.Getenv("PEN_TRACKER_SQLITE"); v != "" {
		s.SQLitePath = v
	}
	if v := os.Getenv("PEN_TRACKER_LOG_LEVEL"); v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("PEN_TRACKER_LOG_FORMAT"); v != "" {
		s.LogFormat = strings.ToLower(v)
	}
}

// ResolvePaths fills empty storage paths with files inside dir
func (s *Settings) ResolvePaths(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SnapshotPath == "" {
		s.SnapshotPath = filepath.Join(dir, "entries.json")
	}
	if s.SQLitePath == "" {
		s.SQLitePath = filepath.Join(dir, "entries.db")
	}
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.StorageDriver = other.StorageDriver
	s.SnapshotPath = other.SnapshotPath
	s.SQLitePath = other.SQLitePath
	s.DisplayWindowDays = other.DisplayWindowDays
	s.ReferenceTable = other.ReferenceTable
	s.ChartWindow = other.ChartWindow
	s.Goal = other.Goal
	s.RefreshInterval = other.RefreshInterval
	s.WatchSnapshot = other.WatchSnapshot
	s.EnableLowContentAlert = other.EnableLowContentAlert
	s.EnableApplicationAlert = other.EnableApplicationAlert
	s.EnablePenFinishedAlert = other.EnablePenFinishedAlert
	s.LowContentPercent = other.LowContentPercent
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.IconPath = other.IconPath
	s.LogLevel = other.LogLevel
	s.LogFormat = other.LogFormat
}

// HasGoal returns true if a target weight is configured
func (s *Settings) HasGoal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Goal.IsSet()
}

// UsesSQLite returns true if the SQLite repository is selected
func (s *Settings) UsesSQLite() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.StorageDriver == StorageSQLite
}

// GetContentStatus returns the status string for a pen usage percentage
func (s *Settings) GetContentStatus(usagePercent float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case usagePercent >= 100:
		return "finished"
	case usagePercent > s.LowContentPercent:
		return "low"
	default:
		return "normal"
	}
}
