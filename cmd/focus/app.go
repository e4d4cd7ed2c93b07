package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"pomodoro/focus/internal/clientconfig"
	"pomodoro/focus/internal/clock"
	"pomodoro/focus/internal/ledgerclient"
	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/reporter"
	"pomodoro/focus/internal/runner"
	"pomodoro/focus/internal/session"
	"pomodoro/focus/internal/settings"
	"pomodoro/focus/internal/snapshot"
)

type app struct {
	client    *ledgerclient.Client
	machine   *session.Machine
	runner    *runner.Runner
	sync      *settings.Synchronizer
	fileStore *snapshot.FileStore
	closers   []func() error
}

func newApp(ctx context.Context, cfg clientconfig.Config) (*app, error) {
	a := &app{}

	var store snapshot.Store
	switch cfg.Store {
	case clientconfig.StoreSQLite:
		sqliteStore, err := snapshot.OpenSQLiteStore(filepath.Join(cfg.StateDir, "snapshots.db"), cfg.Namespace())
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		a.closers = append(a.closers, sqliteStore.Close)
		store = sqliteStore
	default:
		a.fileStore = snapshot.NewFileStore(cfg.StateDir, cfg.Namespace())
		store = a.fileStore
	}

	if cfg.Token == "" {
		log.Printf("FOCUS_TOKEN is not set; the ledger will reject reports")
	}
	a.client = ledgerclient.New(cfg.ServerURL, cfg.Token, nil)

	policy := reporter.DefaultRetryPolicy()
	if cfg.ReportRetries > 0 {
		policy.MaxTries = cfg.ReportRetries
	}
	rep := reporter.NewRetrying(reporter.NewLedgerReporter(a.client, nil), policy).
		OnRetry(func(err error, wait time.Duration) {
			log.Printf("report failed, retrying in %s: %v", wait, err)
		})

	a.machine = session.New(store, clock.System(), session.Options{AutoStart: cfg.AutoStart})
	a.runner = runner.New(a.machine, rep, runner.Options{
		TickInterval:  cfg.TickInterval,
		ReportTimeout: 2 * time.Minute,
		Logger:        log.Default(),
	})

	prefs := clientconfig.NewPrefs(cfg.StateDir)
	a.sync = settings.NewSynchronizer(a.client, a.machine).WithCache(prefs.Save)

	config, err := a.sync.Fetch(ctx)
	if err != nil {
		log.Printf("fetch settings: %v", err)
	}
	if config.Validate() != nil {
		if config, err = prefs.Load(); err != nil {
			log.Printf("read cached settings: %v", err)
			config = model.DefaultSessionConfig()
		}
	}

	if _, err := a.machine.Initialize(ctx, config); err != nil {
		log.Printf("restore timer: %v", err)
	}
	return a, nil
}

// Close waits for in-flight reports and releases the store. It is safe to
// call more than once.
func (a *app) Close() {
	a.runner.Wait()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	a.closers = nil
}
