// Command focus is the terminal client: it drives the local timer, reports
// completed phases to the ledger and edits the shared settings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"pomodoro/focus/internal/clientconfig"
	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/session"
)

const usage = `usage: focus <command> [args]

commands:
  status                 show the current phase
  start                  start or resume the countdown
  pause                  pause the countdown
  reset                  cancel the current phase
  skip                   end the current phase without recording it
  run                    keep ticking in the foreground until interrupted
  config [focus break]   show or change durations, e.g. "config 50m 10m"
  stats                  show today, this week and the streak
  history [-limit n]     list recorded sessions
`

func main() {
	log.SetFlags(0)
	log.SetPrefix("focus: ")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := clientconfig.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if err := a.exec(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		a.Close()
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func (a *app) exec(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		printStatus(a.machine.State())
		return nil
	case "start":
		return a.apply(a.machine.Start(ctx))
	case "pause":
		return a.apply(a.machine.Pause(ctx))
	case "reset":
		return a.apply(a.machine.Reset(ctx))
	case "skip":
		return a.apply(a.machine.SkipPhase(ctx))
	case "run":
		return a.run(ctx)
	case "config":
		return a.config(ctx, args)
	case "stats":
		return a.stats(ctx)
	case "history":
		return a.history(ctx, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) apply(status session.Status, err error) error {
	if err != nil {
		return err
	}
	printStatus(status)
	return nil
}

func (a *app) run(ctx context.Context) error {
	events := a.machine.Subscribe(64)
	defer a.machine.Unsubscribe(events)

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	if a.fileStore != nil {
		go func() {
			if err := a.fileStore.Watch(ctx, a.runner.Reinitialize); err != nil {
				log.Printf("watch snapshot: %v", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		done <- a.runner.Run(ctx)
	}()

	terminal := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	printStatus(a.machine.State())
	for {
		select {
		case err := <-done:
			if terminal {
				fmt.Println()
			}
			return err
		case <-hangup:
			if _, _, err := a.sync.Refresh(ctx); err != nil {
				log.Printf("refresh settings: %v", err)
			}
			a.runner.Reinitialize()
		case event := <-events:
			printEvent(event, terminal)
		}
	}
}

func (a *app) config(ctx context.Context, args []string) error {
	if len(args) == 0 {
		config := a.machine.State().Config
		fmt.Printf("focus %s, break %s\n", seconds(config.FocusSeconds), seconds(config.BreakSeconds))
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("expected two durations, got %d", len(args))
	}

	focus, err := parseDuration(args[0])
	if err != nil {
		return err
	}
	rest, err := parseDuration(args[1])
	if err != nil {
		return err
	}

	applied, err := a.sync.Update(ctx, model.SessionConfig{FocusSeconds: focus, BreakSeconds: rest})
	if err != nil {
		return err
	}
	fmt.Printf("focus %s, break %s\n", seconds(applied.FocusSeconds), seconds(applied.BreakSeconds))
	return nil
}

func (a *app) stats(ctx context.Context) error {
	daily, err := a.client.Daily(ctx)
	if err != nil {
		return err
	}
	weekly, err := a.client.Weekly(ctx)
	if err != nil {
		return err
	}
	streak, err := a.client.Streak(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("today %s: %d sessions, %d focus min, %d break min\n",
		daily.Date, daily.SessionsCompleted, daily.FocusMinutes, daily.BreakMinutes)
	for _, day := range weekly.Week {
		fmt.Printf("  %s %s %4d min\n", day.Weekday, day.Date, day.FocusMinutes)
	}
	fmt.Printf("streak: %d days\n", streak.Streak)
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := flags.Int("limit", 20, "number of sessions to list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	records, err := a.client.History(ctx, *limit)
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Printf("%s  %-5s  %s\n",
			record.StartedAt.Local().Format("2006-01-02 15:04"), record.PhaseType, seconds(record.DurationSeconds))
	}
	return nil
}

func printStatus(status session.Status) {
	fmt.Printf("%s %s %s (%.0f%%)\n", status.Phase, status.State, clockFace(status.Remaining), status.Progress*100)
	if status.LastReportErr != nil {
		fmt.Printf("last report failed: %v\n", status.LastReportErr)
	}
}

func printEvent(event session.Event, terminal bool) {
	switch event.Type {
	case session.EventTick:
		if terminal {
			fmt.Printf("\r%s %s  ", event.Phase, clockFace(event.Remaining))
		}
	case session.EventCompleted:
		record := event.Completion.Record
		fmt.Printf("\n%s complete (%s), next: %s\n", record.PhaseType, seconds(record.DurationSeconds), event.Phase)
	case session.EventStateChange:
		if terminal {
			fmt.Printf("\r%s %s %s  ", event.Phase, event.State, clockFace(event.Remaining))
		} else {
			fmt.Printf("%s %s %s\n", event.Phase, event.State, clockFace(event.Remaining))
		}
	case session.EventReportSucceeded:
		if event.Stats != nil {
			fmt.Printf("\ntoday: %d sessions, %d focus min, streak %d\n",
				event.Stats.Daily.SessionsCompleted, event.Stats.Daily.FocusMinutes, event.Stats.Streak)
		}
	case session.EventReportFailed, session.EventStoreError, session.EventSnapshotDiscarded:
		log.Printf("%s: %v", event.Type, event.Err)
	}
}

// clockFace renders a duration as mm:ss, rounding partial seconds up.
func clockFace(d time.Duration) string {
	total := int64((d + time.Second - 1) / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func seconds(s int64) string {
	return (time.Duration(s) * time.Second).String()
}

// parseDuration accepts Go durations ("25m") or a bare number of minutes.
func parseDuration(value string) (int64, error) {
	if minutes, err := strconv.Atoi(value); err == nil {
		return int64(minutes) * 60, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return int64(d / time.Second), nil
}
