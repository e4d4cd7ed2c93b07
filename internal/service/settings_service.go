package service

import (
	"context"
	"fmt"

	"pomodoro/focus/internal/clock"
	apperrors "pomodoro/focus/internal/errors"
	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/repository"
)

type SettingsService struct {
	repo  *repository.SettingsRepository
	clock clock.Clock
}

// UpdateSettingsInput carries a partial edit; nil fields keep their value.
type UpdateSettingsInput struct {
	FocusSeconds *int64
	BreakSeconds *int64
}

func NewSettingsService(repo *repository.SettingsRepository, clk clock.Clock) *SettingsService {
	if clk == nil {
		clk = clock.System()
	}
	return &SettingsService{repo: repo, clock: clk}
}

// Get returns the user's settings, creating the defaults on first access.
func (s *SettingsService) Get(ctx context.Context, userID string) (*model.Settings, *apperrors.APIError) {
	settings, err := s.repo.Get(ctx, userID)
	if err == repository.ErrNotFound {
		if createErr := s.repo.CreateDefault(ctx, userID, s.clock.Now()); createErr != nil {
			return nil, apperrors.Internal("failed to create settings")
		}
		settings, err = s.repo.Get(ctx, userID)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get settings")
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, userID string, input UpdateSettingsInput) (*model.Settings, *apperrors.APIError) {
	if input.FocusSeconds == nil && input.BreakSeconds == nil {
		return nil, apperrors.BadRequest("invalid_settings", "focusSeconds or breakSeconds is required")
	}
	if input.FocusSeconds != nil && *input.FocusSeconds < model.MinSettingsSeconds {
		return nil, apperrors.BadRequest("invalid_duration", fmt.Sprintf("focus time must be at least %d seconds", model.MinSettingsSeconds))
	}
	if input.BreakSeconds != nil && *input.BreakSeconds < model.MinSettingsSeconds {
		return nil, apperrors.BadRequest("invalid_duration", fmt.Sprintf("break time must be at least %d seconds", model.MinSettingsSeconds))
	}

	settings, apiErr := s.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if input.FocusSeconds != nil {
		settings.FocusSeconds = *input.FocusSeconds
	}
	if input.BreakSeconds != nil {
		settings.BreakSeconds = *input.BreakSeconds
	}
	settings.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, apperrors.Internal("failed to update settings")
	}
	return settings, nil
}
