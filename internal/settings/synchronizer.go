// Package settings reconciles duration edits between the user, the settings
// service and the running session machine.
package settings

import (
	"context"
	"errors"
	"fmt"

	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/session"
)

// ErrUnavailable wraps failures to reach the settings service.
var ErrUnavailable = errors.New("settings service unavailable")

// Remote is the settings collaborator.
type Remote interface {
	GetSettings(ctx context.Context) (*model.SessionConfig, error)
	UpdateSettings(ctx context.Context, config model.SessionConfig) (*model.SessionConfig, error)
}

// Machine is the part of the session machine the synchronizer drives.
type Machine interface {
	State() session.Status
	ApplyConfig(ctx context.Context, config model.SessionConfig) (session.Status, error)
}

type Synchronizer struct {
	remote  Remote
	machine Machine
	cache   func(model.SessionConfig) error
}

func NewSynchronizer(remote Remote, machine Machine) *Synchronizer {
	return &Synchronizer{remote: remote, machine: machine}
}

// WithCache stores every authoritative configuration through save, so it can
// be used when the service is unreachable.
func (s *Synchronizer) WithCache(save func(model.SessionConfig) error) *Synchronizer {
	s.cache = save
	return s
}

// Update persists config remotely and applies the values the service returns.
// While a phase runs the edit is refused before any network call.
func (s *Synchronizer) Update(ctx context.Context, config model.SessionConfig) (model.SessionConfig, error) {
	if running(s.machine.State()) {
		return model.SessionConfig{}, fmt.Errorf("%w: stop or pause the timer first", session.ErrConfigRejected)
	}
	if err := config.Validate(); err != nil {
		return model.SessionConfig{}, err
	}

	stored, err := s.remote.UpdateSettings(ctx, config)
	if err != nil {
		return model.SessionConfig{}, fmt.Errorf("%w: update: %w", ErrUnavailable, err)
	}
	if err := stored.Validate(); err != nil {
		return model.SessionConfig{}, fmt.Errorf("settings service returned %+v: %w", *stored, err)
	}

	if _, err := s.machine.ApplyConfig(ctx, *stored); err != nil {
		return *stored, err
	}
	return *stored, s.store(*stored)
}

// Refresh fetches the authoritative configuration and applies it unless a phase
// is running. The returned bool tells whether the machine was updated.
func (s *Synchronizer) Refresh(ctx context.Context) (model.SessionConfig, bool, error) {
	stored, err := s.remote.GetSettings(ctx)
	if err != nil {
		return model.SessionConfig{}, false, fmt.Errorf("%w: get: %w", ErrUnavailable, err)
	}
	if err := stored.Validate(); err != nil {
		return model.SessionConfig{}, false, fmt.Errorf("settings service returned %+v: %w", *stored, err)
	}
	if err := s.store(*stored); err != nil {
		return *stored, false, err
	}

	status := s.machine.State()
	if running(status) || status.Config == *stored {
		return *stored, false, nil
	}
	if _, err := s.machine.ApplyConfig(ctx, *stored); err != nil {
		return *stored, false, err
	}
	return *stored, true, nil
}

// Fetch returns the authoritative configuration without touching the machine,
// for use before the machine is initialized.
func (s *Synchronizer) Fetch(ctx context.Context) (model.SessionConfig, error) {
	stored, err := s.remote.GetSettings(ctx)
	if err != nil {
		return model.SessionConfig{}, fmt.Errorf("%w: get: %w", ErrUnavailable, err)
	}
	if err := stored.Validate(); err != nil {
		return model.SessionConfig{}, fmt.Errorf("settings service returned %+v: %w", *stored, err)
	}
	return *stored, s.store(*stored)
}

func (s *Synchronizer) store(config model.SessionConfig) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache(config); err != nil {
		return fmt.Errorf("cache settings: %w", err)
	}
	return nil
}

func running(status session.Status) bool {
	return status.State == session.StateRunning || status.State == session.StateCompleting
}
