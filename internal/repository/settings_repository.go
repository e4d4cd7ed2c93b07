package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pomodoro/focus/internal/model"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, userID string) (*model.Settings, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT user_id, focus_seconds, break_seconds, updated_at
		 FROM pomodoro_settings
		 WHERE user_id = ?`,
		userID,
	)

	settings := model.Settings{}
	var updatedAt string
	if err := row.Scan(&settings.UserID, &settings.FocusSeconds, &settings.BreakSeconds, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan settings: %w", err)
	}

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse settings updated_at: %w", err)
	}
	settings.UpdatedAt = parsedUpdatedAt
	return &settings, nil
}

// CreateDefault inserts the stock durations unless the user already has a row.
func (r *SettingsRepository) CreateDefault(ctx context.Context, userID string, now time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_settings (user_id, focus_seconds, break_seconds, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID,
		model.DefaultFocusSeconds,
		model.DefaultBreakSeconds,
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("create default settings: %w", err)
	}
	return nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, settings *model.Settings) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_settings (user_id, focus_seconds, break_seconds, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE
		 SET focus_seconds = excluded.focus_seconds,
		     break_seconds = excluded.break_seconds,
			 updated_at = excluded.updated_at`,
		settings.UserID,
		settings.FocusSeconds,
		settings.BreakSeconds,
		formatTime(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
