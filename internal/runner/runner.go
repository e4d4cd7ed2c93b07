// Package runner drives a session machine: it ticks it on an interval and
// reports completions to the ledger in the background.
package runner

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"pomodoro/focus/internal/reporter"
	"pomodoro/focus/internal/session"
)

const DefaultTickInterval = time.Second

type Options struct {
	TickInterval time.Duration
	// ReportTimeout bounds one report attempt chain; zero means no limit.
	ReportTimeout time.Duration
	Logger        *log.Logger
}

type Runner struct {
	machine  *session.Machine
	reporter reporter.Reporter
	options  Options
	logger   *log.Logger

	reinit  chan struct{}
	reports sync.WaitGroup
}

// New wires the runner as the machine's dispatcher. Completions that occur
// before Run starts, such as a reconciled phase, are reported as well.
func New(machine *session.Machine, rep reporter.Reporter, options Options) *Runner {
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	r := &Runner{
		machine:  machine,
		reporter: rep,
		options:  options,
		logger:   logger,
		reinit:   make(chan struct{}, 1),
	}
	machine.SetDispatcher(r)
	return r
}

// Dispatch starts reporting completion on its own goroutine.
func (r *Runner) Dispatch(completion session.Completion) {
	if r.reporter == nil {
		return
	}
	r.reports.Add(1)
	go r.report(completion)
}

// Reinitialize asks Run to reload the machine from its store, as after the
// process regains focus. Repeated requests before Run handles one collapse.
func (r *Runner) Reinitialize() {
	select {
	case r.reinit <- struct{}{}:
	default:
	}
}

// Run ticks the machine until ctx is done, then waits for in-flight reports.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Wait()
			return nil
		case <-ticker.C:
			if _, err := r.machine.Tick(ctx); err != nil {
				r.logger.Printf("tick: %v", err)
			}
		case <-r.reinit:
			config := r.machine.State().Config
			if _, err := r.machine.Initialize(ctx, config); err != nil {
				r.logger.Printf("reinitialize: %v", err)
			}
		}
	}
}

// Wait blocks until every dispatched report has been acknowledged.
func (r *Runner) Wait() {
	r.reports.Wait()
}

func (r *Runner) report(completion session.Completion) {
	defer r.reports.Done()

	ctx := context.Background()
	if r.options.ReportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.options.ReportTimeout)
		defer cancel()
	}

	record := completion.Record
	stats, err := r.reporter.Report(ctx, record)
	if err != nil {
		r.logger.Printf("report %s session %s: %v", record.PhaseType, record.ID, err)
	}

	accepted := r.machine.AcknowledgeReport(session.ReportAck{
		Generation: completion.Generation,
		RecordID:   record.ID,
		Stats:      stats,
		Err:        err,
	})
	if !accepted {
		r.logger.Printf("report %s arrived after reset, ignored", record.ID)
	}
}
