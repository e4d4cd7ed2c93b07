package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedSnapshot marks a snapshot whose fields contradict its mode.
var ErrMalformedSnapshot = errors.New("malformed timer snapshot")

// TimerSnapshot is the persisted form of an active or paused timer.
// Exactly one of DeadlineEpochMillis and RemainingSeconds is set, matching Mode.
// PhaseSeconds is the length the phase was started with; zero in snapshots
// written before it was recorded.
type TimerSnapshot struct {
	Phase               Phase  `json:"phase"`
	Mode                Mode   `json:"mode"`
	DeadlineEpochMillis *int64 `json:"deadlineEpochMillis,omitempty"`
	RemainingSeconds    *int64 `json:"remainingSeconds,omitempty"`
	PhaseSeconds        int64  `json:"phaseSeconds,omitempty"`
}

// RunningSnapshot builds a snapshot for a phase that completes at deadline.
func RunningSnapshot(phase Phase, deadline time.Time) TimerSnapshot {
	millis := deadline.UnixMilli()
	return TimerSnapshot{
		Phase:               phase,
		Mode:                ModeRunning,
		DeadlineEpochMillis: &millis,
	}
}

// PausedSnapshot builds a snapshot for a phase frozen with remaining seconds left.
func PausedSnapshot(phase Phase, remaining int64) TimerSnapshot {
	return TimerSnapshot{
		Phase:            phase,
		Mode:             ModePaused,
		RemainingSeconds: &remaining,
	}
}

// WithPhaseSeconds records the configured length of the phase.
func (s TimerSnapshot) WithPhaseSeconds(seconds int64) TimerSnapshot {
	s.PhaseSeconds = seconds
	return s
}

// PhaseLength returns the recorded phase length, or fallback when none was stored.
func (s TimerSnapshot) PhaseLength(fallback int64) int64 {
	if s.PhaseSeconds > 0 {
		return s.PhaseSeconds
	}
	return fallback
}

// Deadline returns the absolute completion instant of a running snapshot.
func (s TimerSnapshot) Deadline() time.Time {
	if s.DeadlineEpochMillis == nil {
		return time.Time{}
	}
	return time.UnixMilli(*s.DeadlineEpochMillis).UTC()
}

// Remaining returns the frozen seconds of a paused snapshot.
func (s TimerSnapshot) Remaining() int64 {
	if s.RemainingSeconds == nil {
		return 0
	}
	return *s.RemainingSeconds
}

// Validate enforces the running/paused field pairing.
func (s TimerSnapshot) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrMalformedSnapshot, s.Phase)
	}
	switch s.Mode {
	case ModeRunning:
		if s.DeadlineEpochMillis == nil || s.RemainingSeconds != nil {
			return fmt.Errorf("%w: running snapshot needs a deadline only", ErrMalformedSnapshot)
		}
		if *s.DeadlineEpochMillis <= 0 {
			return fmt.Errorf("%w: deadline must be positive", ErrMalformedSnapshot)
		}
	case ModePaused:
		if s.RemainingSeconds == nil || s.DeadlineEpochMillis != nil {
			return fmt.Errorf("%w: paused snapshot needs remaining seconds only", ErrMalformedSnapshot)
		}
		if *s.RemainingSeconds <= 0 {
			return fmt.Errorf("%w: remaining seconds must be positive", ErrMalformedSnapshot)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrMalformedSnapshot, s.Mode)
	}
	if s.PhaseSeconds < 0 {
		return fmt.Errorf("%w: phase seconds must not be negative", ErrMalformedSnapshot)
	}
	return nil
}
