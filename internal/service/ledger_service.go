package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pomodoro/focus/internal/clock"
	apperrors "pomodoro/focus/internal/errors"
	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/repository"
)

// LedgerService records completed phases and answers the aggregate queries.
// Calendar days are evaluated in location.
type LedgerService struct {
	repo     *repository.PomodoroRepository
	clock    clock.Clock
	location *time.Location
}

type SaveSessionInput struct {
	ID              string
	PhaseType       model.Phase
	DurationSeconds int64
	StartedAt       time.Time
	EndedAt         time.Time
	Completed       bool
}

type SaveSessionResult struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

func NewLedgerService(repo *repository.PomodoroRepository, clk clock.Clock, location *time.Location) *LedgerService {
	if clk == nil {
		clk = clock.System()
	}
	if location == nil {
		location = time.UTC
	}
	return &LedgerService{repo: repo, clock: clk, location: location}
}

// SaveSession stores a session and folds it into that day's summary in one
// transaction. Saving an id twice is accepted and reported as a duplicate.
func (s *LedgerService) SaveSession(ctx context.Context, userID string, input SaveSessionInput) (*SaveSessionResult, *apperrors.APIError) {
	if apiErr := validateSession(input); apiErr != nil {
		return nil, apiErr
	}

	now := s.clock.Now().UTC()
	record := model.SessionRecord{
		ID:              input.ID,
		UserID:          userID,
		PhaseType:       input.PhaseType,
		DurationSeconds: input.DurationSeconds,
		StartedAt:       input.StartedAt.UTC(),
		EndedAt:         input.EndedAt.UTC(),
		Completed:       input.Completed,
		CreatedAt:       now,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	inserted, err := s.repo.InsertSessionTx(ctx, tx, &record)
	if err != nil {
		return nil, apperrors.Internal("failed to save session")
	}
	if !inserted {
		return &SaveSessionResult{Accepted: true, Duplicate: true}, nil
	}

	delta := model.DailySummary{
		UserID: userID,
		Date:   s.day(record.StartedAt),
	}
	if record.PhaseType == model.PhaseFocus {
		delta.FocusSeconds = record.DurationSeconds
		if record.Completed {
			delta.SessionsCompleted = 1
		}
	} else {
		delta.BreakSeconds = record.DurationSeconds
	}
	if err := s.repo.AddToSummaryTx(ctx, tx, delta); err != nil {
		return nil, apperrors.Internal("failed to update daily summary")
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	return &SaveSessionResult{Accepted: true}, nil
}

func (s *LedgerService) Daily(ctx context.Context, userID string) (*model.DailyStats, *apperrors.APIError) {
	today := s.day(s.clock.Now())
	stats := model.DailyStats{Date: today}

	summary, err := s.repo.GetSummary(ctx, userID, today)
	if err == repository.ErrNotFound {
		return &stats, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get daily stats")
	}

	stats.SessionsCompleted = summary.SessionsCompleted
	stats.FocusMinutes = summary.FocusSeconds / 60
	stats.BreakMinutes = summary.BreakSeconds / 60
	return &stats, nil
}

// Weekly returns Monday through Sunday of the current week, zero-filled.
func (s *LedgerService) Weekly(ctx context.Context, userID string) (*model.WeeklyStats, *apperrors.APIError) {
	now := s.clock.Now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)

	summaries, err := s.repo.ListSummaries(ctx, userID, monday.Format(model.DateLayout), sunday.Format(model.DateLayout))
	if err != nil {
		return nil, apperrors.Internal("failed to get weekly stats")
	}
	byDay := make(map[string]model.DailySummary, len(summaries))
	for _, summary := range summaries {
		byDay[summary.Date] = summary
	}

	week := make([]model.DayStats, 0, 7)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		key := day.Format(model.DateLayout)
		summary := byDay[key]
		week = append(week, model.DayStats{
			Date:         key,
			Weekday:      day.Format("Mon"),
			FocusMinutes: summary.FocusSeconds / 60,
			BreakMinutes: summary.BreakSeconds / 60,
		})
	}
	return &model.WeeklyStats{Week: week}, nil
}

// Streak counts consecutive days with focus time, walking back from today.
func (s *LedgerService) Streak(ctx context.Context, userID string) (*model.StreakStats, *apperrors.APIError) {
	now := s.clock.Now().In(s.location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	summaries, err := s.repo.ListSummaries(ctx, userID, "", day.Format(model.DateLayout))
	if err != nil {
		return nil, apperrors.Internal("failed to get streak")
	}

	streak := 0
	for _, summary := range summaries {
		if summary.Date != day.Format(model.DateLayout) || summary.FocusSeconds <= 0 {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return &model.StreakStats{Streak: streak}, nil
}

func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]model.SessionRecord, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sessions, err := s.repo.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to get history")
	}
	return sessions, nil
}

func (s *LedgerService) day(t time.Time) string {
	return t.In(s.location).Format(model.DateLayout)
}

func validateSession(input SaveSessionInput) *apperrors.APIError {
	if _, err := uuid.Parse(input.ID); err != nil {
		return apperrors.BadRequest("invalid_id", "id must be a uuid")
	}
	if !input.PhaseType.Valid() {
		return apperrors.BadRequest("invalid_phase", "phaseType must be one of focus, break")
	}
	if input.DurationSeconds <= 0 {
		return apperrors.BadRequest("invalid_duration", "durationSeconds must be positive")
	}
	if input.StartedAt.IsZero() || input.EndedAt.IsZero() {
		return apperrors.BadRequest("invalid_time", "startedAt and endedAt are required")
	}
	if input.EndedAt.Before(input.StartedAt) {
		return apperrors.BadRequest("invalid_time", "endedAt must not be before startedAt")
	}
	return nil
}
