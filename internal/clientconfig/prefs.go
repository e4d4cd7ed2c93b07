package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"pomodoro/focus/internal/model"
)

const prefsFileName = "prefs.yaml"

type yamlPrefs struct {
	FocusSeconds int64     `yaml:"focus_seconds"`
	BreakSeconds int64     `yaml:"break_seconds"`
	SyncedAt     time.Time `yaml:"synced_at,omitempty"`
}

// Prefs caches the last durations confirmed by the settings service.
type Prefs struct {
	path string
}

// NewPrefs stores the file inside dir.
func NewPrefs(dir string) *Prefs {
	return &Prefs{path: filepath.Join(dir, prefsFileName)}
}

// DefaultPrefs uses the per-user config directory.
func DefaultPrefs() (*Prefs, error) {
	dir, err := defaultDir()
	if err != nil {
		return nil, err
	}
	return NewPrefs(dir), nil
}

func (p *Prefs) Path() string {
	return p.path
}

// Load returns the cached durations. If the file does not exist or holds
// invalid durations, the defaults are returned.
func (p *Prefs) Load() (model.SessionConfig, error) {
	config := model.DefaultSessionConfig()

	rawData, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return config, fmt.Errorf("read prefs file: %w", err)
	}

	var fileData yamlPrefs
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return config, fmt.Errorf("parse prefs yaml: %w", err)
	}

	if fileData.FocusSeconds > 0 {
		config.FocusSeconds = fileData.FocusSeconds
	}
	if fileData.BreakSeconds > 0 {
		config.BreakSeconds = fileData.BreakSeconds
	}
	return config, nil
}

func (p *Prefs) Save(config model.SessionConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}

	serialized, err := yaml.Marshal(yamlPrefs{
		FocusSeconds: config.FocusSeconds,
		BreakSeconds: config.BreakSeconds,
		SyncedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal prefs yaml: %w", err)
	}

	if err := os.WriteFile(p.path, serialized, 0o644); err != nil {
		return fmt.Errorf("write prefs file: %w", err)
	}
	return nil
}
