package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pomodoro/focus/internal/model"
)

type PomodoroRepository struct {
	db *sql.DB
}

func NewPomodoroRepository(db *sql.DB) *PomodoroRepository {
	return &PomodoroRepository{db: db}
}

func (r *PomodoroRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// InsertSessionTx stores record and reports whether a new row was written.
// A record whose id is already known for the user is left untouched.
func (r *PomodoroRepository) InsertSessionTx(ctx context.Context, tx *sql.Tx, record *model.SessionRecord) (bool, error) {
	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO pomodoro_sessions (
			user_id, id, phase_type, duration_seconds, started_at, ended_at, completed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO NOTHING`,
		record.UserID,
		record.ID,
		record.PhaseType,
		record.DurationSeconds,
		formatTime(record.StartedAt),
		formatTime(record.EndedAt),
		record.Completed,
		formatTime(record.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert session rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddToSummaryTx adds the deltas to the user's row for day, creating it if needed.
func (r *PomodoroRepository) AddToSummaryTx(ctx context.Context, tx *sql.Tx, delta model.DailySummary) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO pomodoro_daily_summaries (
			user_id, day, focus_seconds, break_seconds, sessions_completed
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE
		SET focus_seconds = focus_seconds + excluded.focus_seconds,
		    break_seconds = break_seconds + excluded.break_seconds,
			sessions_completed = sessions_completed + excluded.sessions_completed`,
		delta.UserID,
		delta.Date,
		delta.FocusSeconds,
		delta.BreakSeconds,
		delta.SessionsCompleted,
	)
	if err != nil {
		return fmt.Errorf("update daily summary: %w", err)
	}
	return nil
}

func (r *PomodoroRepository) GetSummary(ctx context.Context, userID, day string) (*model.DailySummary, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT user_id, day, focus_seconds, break_seconds, sessions_completed
		 FROM pomodoro_daily_summaries
		 WHERE user_id = ? AND day = ?`,
		userID,
		day,
	)
	return scanSummary(row)
}

// ListSummaries returns the rows with from <= day <= to, newest first.
func (r *PomodoroRepository) ListSummaries(ctx context.Context, userID, from, to string) ([]model.DailySummary, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT user_id, day, focus_seconds, break_seconds, sessions_completed
		 FROM pomodoro_daily_summaries
		 WHERE user_id = ? AND day >= ? AND day <= ?
		 ORDER BY day DESC`,
		userID,
		from,
		to,
	)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.DailySummary, 0)
	for rows.Next() {
		summary, scanErr := scanSummary(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		summaries = append(summaries, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

func (r *PomodoroRepository) ListSessions(ctx context.Context, userID string, limit int) ([]model.SessionRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT user_id, id, phase_type, duration_seconds, started_at, ended_at, completed, created_at
		 FROM pomodoro_sessions
		 WHERE user_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.SessionRecord, 0, limit)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(s scanner) (*model.DailySummary, error) {
	summary := model.DailySummary{}
	err := s.Scan(
		&summary.UserID,
		&summary.Date,
		&summary.FocusSeconds,
		&summary.BreakSeconds,
		&summary.SessionsCompleted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	return &summary, nil
}

func scanSession(s scanner) (*model.SessionRecord, error) {
	session := model.SessionRecord{}
	var startedAt string
	var endedAt string
	var createdAt string
	err := s.Scan(
		&session.UserID,
		&session.ID,
		&session.PhaseType,
		&session.DurationSeconds,
		&startedAt,
		&endedAt,
		&session.Completed,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	parsedStartedAt, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	session.StartedAt = parsedStartedAt

	parsedEndedAt, err := parseTime(endedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session ended_at: %w", err)
	}
	session.EndedAt = parsedEndedAt

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	session.CreatedAt = parsedCreatedAt

	return &session, nil
}
