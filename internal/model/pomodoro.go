package model

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the kind of countdown currently in effect.
type Phase string

const (
	PhaseFocus Phase = "focus"
	PhaseBreak Phase = "break"
)

// Mode tells whether a persisted timer is counting down or frozen.
type Mode string

const (
	ModeRunning Mode = "running"
	ModePaused  Mode = "paused"
)

const (
	DefaultFocusSeconds = 25 * 60
	DefaultBreakSeconds = 5 * 60

	// MinSettingsSeconds is the smallest duration the settings service accepts.
	MinSettingsSeconds = 60
)

// ErrInvalidConfig is returned when a duration is not strictly positive.
var ErrInvalidConfig = errors.New("invalid session config")

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseFocus || p == PhaseBreak
}

// Next returns the phase that follows p.
func (p Phase) Next() Phase {
	if p == PhaseFocus {
		return PhaseBreak
	}
	return PhaseFocus
}

// SessionConfig holds the focus and break durations in seconds.
type SessionConfig struct {
	FocusSeconds int64 `json:"focusSeconds" yaml:"focus_seconds"`
	BreakSeconds int64 `json:"breakSeconds" yaml:"break_seconds"`
}

// DefaultSessionConfig returns the stock 25/5 configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		FocusSeconds: DefaultFocusSeconds,
		BreakSeconds: DefaultBreakSeconds,
	}
}

// Validate checks that both durations are positive.
func (c SessionConfig) Validate() error {
	if c.FocusSeconds <= 0 {
		return fmt.Errorf("%w: focusSeconds must be positive, got %d", ErrInvalidConfig, c.FocusSeconds)
	}
	if c.BreakSeconds <= 0 {
		return fmt.Errorf("%w: breakSeconds must be positive, got %d", ErrInvalidConfig, c.BreakSeconds)
	}
	return nil
}

// SecondsFor returns the configured duration of phase.
func (c SessionConfig) SecondsFor(phase Phase) int64 {
	if phase == PhaseBreak {
		return c.BreakSeconds
	}
	return c.FocusSeconds
}

// WithSeconds returns a copy of c with the given phase set to seconds.
func (c SessionConfig) WithSeconds(phase Phase, seconds int64) SessionConfig {
	if phase == PhaseBreak {
		c.BreakSeconds = seconds
	} else {
		c.FocusSeconds = seconds
	}
	return c
}

// Settings is the per-user record kept by the settings service.
type Settings struct {
	UserID       string    `json:"-"`
	FocusSeconds int64     `json:"focusSeconds"`
	BreakSeconds int64     `json:"breakSeconds"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SessionConfig projects the settings onto the engine configuration.
func (s Settings) SessionConfig() SessionConfig {
	return SessionConfig{FocusSeconds: s.FocusSeconds, BreakSeconds: s.BreakSeconds}
}
