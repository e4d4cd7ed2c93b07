package model

import "time"

// SessionRecord describes one completed phase as sent to the ledger.
type SessionRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"-"`
	PhaseType       Phase     `json:"phaseType"`
	DurationSeconds int64     `json:"durationSeconds"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	Completed       bool      `json:"completed"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}

// DailySummary accumulates one user's sessions for one calendar day.
type DailySummary struct {
	UserID            string
	Date              string
	FocusSeconds      int64
	BreakSeconds      int64
	SessionsCompleted int
}

// DailyStats is the ledger's aggregate for today.
type DailyStats struct {
	Date              string `json:"date"`
	SessionsCompleted int    `json:"sessionsCompleted"`
	FocusMinutes      int64  `json:"focusMinutes"`
	BreakMinutes      int64  `json:"breakMinutes"`
}

// DayStats is one entry of the weekly aggregate.
type DayStats struct {
	Date         string `json:"date"`
	Weekday      string `json:"weekday"`
	FocusMinutes int64  `json:"focusMinutes"`
	BreakMinutes int64  `json:"breakMinutes"`
}

// WeeklyStats holds seven consecutive days, Monday first.
type WeeklyStats struct {
	Week []DayStats `json:"week"`
}

// StreakStats counts consecutive days with focus time, ending today.
type StreakStats struct {
	Streak int `json:"streak"`
}

// StatsSnapshot bundles the aggregates refreshed after a completion.
type StatsSnapshot struct {
	Daily     DailyStats  `json:"daily"`
	Weekly    WeeklyStats `json:"weekly"`
	Streak    int         `json:"streak"`
	FetchedAt time.Time   `json:"fetchedAt"`
}

// DateLayout is the calendar-day format used by the ledger.
const DateLayout = "2006-01-02"
