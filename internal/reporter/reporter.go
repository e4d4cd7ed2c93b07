// Package reporter delivers completed sessions to the ledger and pulls the
// refreshed aggregates back.
package reporter

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pomodoro/focus/internal/clock"
	"pomodoro/focus/internal/ledgerclient"
	"pomodoro/focus/internal/model"
)

// ErrReportingFailed wraps every failure to deliver a record or fetch stats.
// It is advisory: the session transition has already been committed.
var ErrReportingFailed = errors.New("reporting failed")

// Reporter sends one completed session and returns fresh aggregates.
type Reporter interface {
	Report(ctx context.Context, record model.SessionRecord) (*model.StatsSnapshot, error)
}

// Ledger is the subset of the ledger API a reporter needs.
type Ledger interface {
	PostSession(ctx context.Context, record model.SessionRecord) (*ledgerclient.SaveResult, error)
	Daily(ctx context.Context) (*model.DailyStats, error)
	Weekly(ctx context.Context) (*model.WeeklyStats, error)
	Streak(ctx context.Context) (*model.StreakStats, error)
}

type LedgerReporter struct {
	ledger Ledger
	clock  clock.Clock
}

func NewLedgerReporter(ledger Ledger, clk clock.Clock) *LedgerReporter {
	if clk == nil {
		clk = clock.System()
	}
	return &LedgerReporter{ledger: ledger, clock: clk}
}

// Report posts record, then fetches the daily, weekly and streak aggregates
// concurrently. A duplicate post counts as success.
func (r *LedgerReporter) Report(ctx context.Context, record model.SessionRecord) (*model.StatsSnapshot, error) {
	if _, err := r.ledger.PostSession(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: post session %s: %w", ErrReportingFailed, record.ID, err)
	}

	var (
		daily  *model.DailyStats
		weekly *model.WeeklyStats
		streak *model.StreakStats
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		daily, err = r.ledger.Daily(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		weekly, err = r.ledger.Weekly(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		streak, err = r.ledger.Streak(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("%w: refresh stats: %w", ErrReportingFailed, err)
	}

	return &model.StatsSnapshot{
		Daily:     *daily,
		Weekly:    *weekly,
		Streak:    streak.Streak,
		FetchedAt: r.clock.Now().UTC(),
	}, nil
}
