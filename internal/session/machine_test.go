package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"pomodoro/focus/internal/clock"
	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/snapshot"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type flakyStore struct {
	*snapshot.MemoryStore
	saveErr  error
	clearErr error
	loadErr  error
}

func (s *flakyStore) Load(ctx context.Context) (*model.TimerSnapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *flakyStore) Save(ctx context.Context, snap model.TimerSnapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, snap)
}

func (s *flakyStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}

type recorder struct {
	completions []Completion
}

func (r *recorder) Dispatch(completion Completion) {
	r.completions = append(r.completions, completion)
}

func newTestMachine(t *testing.T, store snapshot.Store, options Options) (*Machine, *clock.Manual, *recorder) {
	t.Helper()

	clk := clock.NewManual(testStart)
	machine := New(store, clk, options)
	rec := &recorder{}
	machine.SetDispatcher(rec)
	if _, err := machine.Initialize(context.Background(), model.DefaultSessionConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return machine, clk, rec
}

func TestFocusThenBreakScenario(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, rec := newTestMachine(t, store, Options{})

	status := machine.State()
	if status.State != StateIdle || status.Phase != model.PhaseFocus || status.RemainingSeconds != 1500 {
		t.Fatalf("unexpected initial status: %+v", status)
	}

	status, err := machine.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !status.Deadline.Equal(testStart.Add(1500 * time.Second)) {
		t.Fatalf("unexpected deadline %s", status.Deadline)
	}

	clk.Advance(1500 * time.Second)
	status, err = machine.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if status.State != StateIdle || status.Phase != model.PhaseBreak || status.RemainingSeconds != 300 {
		t.Fatalf("unexpected status after focus: %+v", status)
	}
	if len(rec.completions) != 1 {
		t.Fatalf("expected one completion, got %d", len(rec.completions))
	}
	record := rec.completions[0].Record
	if record.PhaseType != model.PhaseFocus || record.DurationSeconds != 1500 || !record.Completed {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !record.StartedAt.Equal(testStart) || !record.EndedAt.Equal(testStart.Add(1500*time.Second)) {
		t.Fatalf("unexpected record times: %s - %s", record.StartedAt, record.EndedAt)
	}
	if rec.completions[0].Reconciled {
		t.Fatal("a ticked completion must not be marked reconciled")
	}
	if loaded, _ := store.Load(ctx); loaded != nil {
		t.Fatalf("store should be empty after completion, got %+v", loaded)
	}

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start break: %v", err)
	}
	clk.Advance(300 * time.Second)
	status, err = machine.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick break: %v", err)
	}
	if status.Phase != model.PhaseFocus || status.RemainingSeconds != 1500 || status.Cycle != 1 {
		t.Fatalf("unexpected status after break: %+v", status)
	}
	if status.FocusCompleted != 1 {
		t.Fatalf("FocusCompleted = %d, want 1", status.FocusCompleted)
	}
	if len(rec.completions) != 2 || rec.completions[1].Record.PhaseType != model.PhaseBreak {
		t.Fatalf("expected a break completion, got %+v", rec.completions)
	}
}

func TestTickAfterDeadlineCompletesOnce(t *testing.T) {
	ctx := context.Background()
	machine, clk, rec := newTestMachine(t, snapshot.NewMemoryStore(), Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(2000 * time.Second)
	for i := 0; i < 5; i++ {
		if _, err := machine.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if len(rec.completions) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(rec.completions))
	}
}

func TestRemainingPlusElapsedEqualsDuration(t *testing.T) {
	ctx := context.Background()
	machine, clk, _ := newTestMachine(t, snapshot.NewMemoryStore(), Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, elapsed := range []time.Duration{0, time.Second, 90 * time.Second, 1499 * time.Second} {
		clk.Set(testStart.Add(elapsed))
		status, err := machine.Tick(ctx)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if status.Remaining+elapsed != 1500*time.Second {
			t.Fatalf("remaining %s + elapsed %s != 1500s", status.Remaining, elapsed)
		}
	}
}

func TestTickWhileIdleOrPausedIsNoop(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, rec := newTestMachine(t, store, Options{})

	clk.Advance(time.Hour)
	status, err := machine.Tick(ctx)
	if err != nil || status.State != StateIdle || status.RemainingSeconds != 1500 {
		t.Fatalf("idle tick changed state: %+v, %v", status, err)
	}

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(10 * time.Second)
	if _, err := machine.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	saves := store.Saves()
	clk.Advance(time.Hour)
	status, err = machine.Tick(ctx)
	if err != nil || status.State != StatePaused || status.RemainingSeconds != 1490 {
		t.Fatalf("paused tick changed state: %+v, %v", status, err)
	}
	if store.Saves() != saves || len(rec.completions) != 0 {
		t.Fatal("paused tick must not persist or complete")
	}
}

func TestReloadBeforeDeadlineKeepsDeadline(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	first, _, _ := newTestMachine(t, store, Options{})
	if _, err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clk := clock.NewManual(testStart.Add(600 * time.Second))
	second := New(store, clk, Options{})
	saves := store.Saves()
	status, err := second.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StateRunning || status.RemainingSeconds != 900 {
		t.Fatalf("unexpected restored status: %+v", status)
	}
	if !status.Deadline.Equal(testStart.Add(1500 * time.Second)) {
		t.Fatalf("deadline moved to %s", status.Deadline)
	}
	if store.Saves() != saves {
		t.Fatal("restoring a live deadline must not rewrite the snapshot")
	}
}

func TestInitializeReconcilesStaleDeadline(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	deadline := testStart.Add(-10 * time.Minute)
	if err := store.Save(ctx, model.RunningSnapshot(model.PhaseFocus, deadline)); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	clk := clock.NewManual(testStart)
	machine := New(store, clk, Options{AutoStart: true})
	rec := &recorder{}
	machine.SetDispatcher(rec)

	status, err := machine.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StateIdle || status.Phase != model.PhaseBreak || status.RemainingSeconds != 300 {
		t.Fatalf("unexpected status after reconcile: %+v", status)
	}
	if len(rec.completions) != 1 || !rec.completions[0].Reconciled {
		t.Fatalf("expected one reconciled completion, got %+v", rec.completions)
	}
	if !rec.completions[0].Record.EndedAt.Equal(deadline) {
		t.Fatalf("record should end at the stored deadline, got %s", rec.completions[0].Record.EndedAt)
	}
	if loaded, _ := store.Load(ctx); loaded != nil {
		t.Fatalf("snapshot should be cleared, got %+v", loaded)
	}

	if _, err := machine.Initialize(ctx, model.DefaultSessionConfig()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if len(rec.completions) != 1 {
		t.Fatalf("reconcile must not repeat, got %d completions", len(rec.completions))
	}
}

func TestReconcileAfterFailedClearReusesRecordID(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: snapshot.NewMemoryStore()}
	deadline := testStart.Add(-time.Minute)
	if err := store.Save(ctx, model.RunningSnapshot(model.PhaseFocus, deadline)); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	store.clearErr = errors.New("disk full")

	var ids []string
	for i := 0; i < 2; i++ {
		machine := New(store, clock.NewManual(testStart), Options{})
		machine.SetDispatcher(DispatcherFunc(func(completion Completion) {
			ids = append(ids, completion.Record.ID)
		}))
		if _, err := machine.Initialize(ctx, model.DefaultSessionConfig()); err == nil {
			t.Fatal("expected the clear failure to surface")
		}
	}
	if len(ids) != 2 || ids[0] != ids[1] {
		t.Fatalf("expected the same record id twice, got %v", ids)
	}
}

func TestApplyConfigRejectedWhileRunning(t *testing.T) {
	ctx := context.Background()
	machine, _, _ := newTestMachine(t, snapshot.NewMemoryStore(), Options{})
	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := machine.ApplyConfig(ctx, model.SessionConfig{FocusSeconds: 600, BreakSeconds: 120})
	if !errors.Is(err, ErrConfigRejected) {
		t.Fatalf("expected ErrConfigRejected, got %v", err)
	}
	status := machine.State()
	if status.Config != model.DefaultSessionConfig() || status.State != StateRunning {
		t.Fatalf("config must be unchanged: %+v", status)
	}
}

func TestApplyConfigResetsIdleAndPausedPhase(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, _ := newTestMachine(t, store, Options{})
	next := model.SessionConfig{FocusSeconds: 600, BreakSeconds: 120}

	status, err := machine.ApplyConfig(ctx, next)
	if err != nil || status.RemainingSeconds != 600 {
		t.Fatalf("idle ApplyConfig: %+v, %v", status, err)
	}

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(100 * time.Second)
	if _, err := machine.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	status, err = machine.ApplyConfig(ctx, model.SessionConfig{FocusSeconds: 900, BreakSeconds: 120})
	if err != nil {
		t.Fatalf("paused ApplyConfig: %v", err)
	}
	if status.State != StatePaused || status.RemainingSeconds != 900 {
		t.Fatalf("unexpected paused status: %+v", status)
	}
	loaded, err := store.Load(ctx)
	if err != nil || loaded == nil || loaded.Remaining() != 900 {
		t.Fatalf("paused snapshot not rewritten: %+v, %v", loaded, err)
	}

	_, err = machine.ApplyConfig(ctx, model.SessionConfig{FocusSeconds: 0, BreakSeconds: 120})
	if !errors.Is(err, model.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, _ := newTestMachine(t, store, Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(1400*time.Second + 500*time.Millisecond)
	status, err := machine.Pause(ctx)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if status.State != StatePaused || status.RemainingSeconds != 100 {
		t.Fatalf("unexpected paused status: %+v", status)
	}
	loaded, err := store.Load(ctx)
	if err != nil || loaded.Mode != model.ModePaused || loaded.Remaining() != 100 {
		t.Fatalf("unexpected paused snapshot: %+v, %v", loaded, err)
	}

	resumeAt := clk.Advance(time.Hour)
	status, err = machine.Start(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !status.Deadline.Equal(resumeAt.Add(99*time.Second + 500*time.Millisecond)) {
		t.Fatalf("unexpected resumed deadline %s", status.Deadline)
	}
}

func TestPauseAtDeadlineCompletes(t *testing.T) {
	ctx := context.Background()
	machine, clk, rec := newTestMachine(t, snapshot.NewMemoryStore(), Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(1500 * time.Second)
	status, err := machine.Pause(ctx)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if status.State != StateIdle || status.Phase != model.PhaseBreak || len(rec.completions) != 1 {
		t.Fatalf("pause at the deadline should complete: %+v", status)
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	machine, _, _ := newTestMachine(t, snapshot.NewMemoryStore(), Options{})

	if _, err := machine.Pause(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pause while idle: %v", err)
	}
	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := machine.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("start while running: %v", err)
	}
	if _, err := machine.SkipPhase(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip while running: %v", err)
	}

	fresh := New(snapshot.NewMemoryStore(), clock.NewManual(testStart), Options{})
	if _, err := fresh.Start(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("start before Initialize: %v", err)
	}
}

func TestStartSaveFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: snapshot.NewMemoryStore()}
	machine, _, _ := newTestMachine(t, store, Options{})

	store.saveErr = errors.New("read-only filesystem")
	status, err := machine.Start(ctx)
	if err == nil {
		t.Fatal("expected Start to fail")
	}
	if status.State != StateIdle || status.RemainingSeconds != 1500 {
		t.Fatalf("state changed after failed save: %+v", status)
	}
}

func TestResetIgnoresStaleAcknowledgement(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, rec := newTestMachine(t, store, Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(1500 * time.Second)
	if _, err := machine.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	completion := rec.completions[0]

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start break: %v", err)
	}
	status, err := machine.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if status.State != StateIdle || status.Phase != model.PhaseBreak || status.RemainingSeconds != 300 {
		t.Fatalf("unexpected status after reset: %+v", status)
	}
	if loaded, _ := store.Load(ctx); loaded != nil {
		t.Fatalf("reset must clear the snapshot, got %+v", loaded)
	}

	stats := &model.StatsSnapshot{Streak: 3}
	if machine.AcknowledgeReport(ReportAck{Generation: completion.Generation, RecordID: completion.Record.ID, Stats: stats}) {
		t.Fatal("acknowledgement from before the reset should be ignored")
	}
	if machine.State().LastStats != nil {
		t.Fatal("stale acknowledgement must not update stats")
	}
}

func TestAcknowledgeReport(t *testing.T) {
	machine, _, _ := newTestMachine(t, snapshot.NewMemoryStore(), Options{})
	events := machine.Subscribe(8)

	if !machine.AcknowledgeReport(ReportAck{Generation: 0, Stats: &model.StatsSnapshot{Streak: 2}}) {
		t.Fatal("current acknowledgement should be accepted")
	}
	if got := machine.State().LastStats; got == nil || got.Streak != 2 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if event := <-events; event.Type != EventReportSucceeded {
		t.Fatalf("unexpected event %s", event.Type)
	}

	failure := errors.New("ledger unavailable")
	machine.AcknowledgeReport(ReportAck{Generation: 0, Err: failure})
	status := machine.State()
	if !errors.Is(status.LastReportErr, failure) || status.LastStats == nil {
		t.Fatalf("failure should keep the previous stats: %+v", status)
	}
	if event := <-events; event.Type != EventReportFailed {
		t.Fatalf("unexpected event %s", event.Type)
	}
}

func TestCorruptSnapshotIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	store.SetRaw([]byte(`{"phase":"focus","mode":"running"}`))

	machine := New(store, clock.NewManual(testStart), Options{})
	events := machine.Subscribe(8)
	status, err := machine.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StateIdle || status.Phase != model.PhaseFocus || status.RemainingSeconds != 1500 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if event := <-events; event.Type != EventSnapshotDiscarded {
		t.Fatalf("expected discard event, got %s", event.Type)
	}
	if loaded, err := store.Load(ctx); err != nil || loaded != nil {
		t.Fatalf("corrupt snapshot should be cleared: %+v, %v", loaded, err)
	}
}

func TestInitializeStoreErrorFallsBackToIdle(t *testing.T) {
	store := &flakyStore{MemoryStore: snapshot.NewMemoryStore(), loadErr: errors.New("permission denied")}
	machine := New(store, clock.NewManual(testStart), Options{})
	events := machine.Subscribe(8)

	status, err := machine.Initialize(context.Background(), model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StateIdle {
		t.Fatalf("unexpected state %s", status.State)
	}
	if event := <-events; event.Type != EventStoreError {
		t.Fatalf("expected store error event, got %s", event.Type)
	}
}

func TestAutoStartAfterTickedCompletion(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, _ := newTestMachine(t, store, Options{AutoStart: true})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	now := clk.Advance(1500 * time.Second)
	status, err := machine.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if status.State != StateRunning || status.Phase != model.PhaseBreak {
		t.Fatalf("expected break to auto-start: %+v", status)
	}
	if !status.Deadline.Equal(now.Add(300 * time.Second)) {
		t.Fatalf("unexpected break deadline %s", status.Deadline)
	}
	loaded, err := store.Load(ctx)
	if err != nil || loaded == nil || loaded.Phase != model.PhaseBreak {
		t.Fatalf("auto-started break not persisted: %+v, %v", loaded, err)
	}
}

func TestSkipPhase(t *testing.T) {
	ctx := context.Background()
	machine, _, rec := newTestMachine(t, snapshot.NewMemoryStore(), Options{})

	status, err := machine.SkipPhase(ctx)
	if err != nil {
		t.Fatalf("SkipPhase: %v", err)
	}
	if status.Phase != model.PhaseBreak || status.RemainingSeconds != 300 || len(rec.completions) != 0 {
		t.Fatalf("unexpected status after skip: %+v", status)
	}
}

func TestDispatcherMayCallBackIntoMachine(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	machine := New(snapshot.NewMemoryStore(), clk, Options{})
	acked := false
	machine.SetDispatcher(DispatcherFunc(func(completion Completion) {
		acked = machine.AcknowledgeReport(ReportAck{Generation: completion.Generation, RecordID: completion.Record.ID})
	}))
	if _, err := machine.Initialize(ctx, model.DefaultSessionConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(1500 * time.Second)
	if _, err := machine.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !acked {
		t.Fatal("dispatcher acknowledgement was not accepted")
	}
}

func TestPausedSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, _ := newTestMachine(t, store, Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(100 * time.Second)
	if _, err := machine.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	restarted := New(store, clock.NewManual(testStart.Add(24*time.Hour)), Options{})
	status, err := restarted.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StatePaused || status.Phase != model.PhaseFocus || status.RemainingSeconds != 1400 {
		t.Fatalf("unexpected restored status: %+v", status)
	}
}

func TestReloadAfterCompletionKeepsNextPhase(t *testing.T) {
	ctx := context.Background()
	machine, clk, _ := newTestMachine(t, snapshot.NewMemoryStore(), Options{})
	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(1500 * time.Second)
	if _, err := machine.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	status, err := machine.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StateIdle || status.Phase != model.PhaseBreak || status.RemainingSeconds != 300 {
		t.Fatalf("reload should keep the break phase: %+v", status)
	}
}

func TestPauseResumeAtSubSecondOffsetsKeepsTime(t *testing.T) {
	tests := []struct {
		name  string
		steps []time.Duration
	}{
		{name: "half seconds", steps: repeat(500*time.Millisecond, 100)},
		{name: "just over a second", steps: repeat(1001*time.Millisecond, 40)},
		{name: "mixed", steps: []time.Duration{
			time.Millisecond, 999 * time.Millisecond, 250 * time.Millisecond, 1500 * time.Millisecond,
			2*time.Second + time.Millisecond, 10 * time.Millisecond, 333 * time.Millisecond, 4 * time.Second,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			machine, clk, _ := newTestMachine(t, snapshot.NewMemoryStore(), Options{})

			var running time.Duration
			for i, step := range tt.steps {
				if _, err := machine.Start(ctx); err != nil {
					t.Fatalf("Start %d: %v", i, err)
				}
				clk.Advance(step)
				running += step
				status, err := machine.Pause(ctx)
				if err != nil {
					t.Fatalf("Pause %d: %v", i, err)
				}
				if status.Remaining+running != 1500*time.Second {
					t.Fatalf("after %d rounds: remaining %s + running %s != 1500s", i+1, status.Remaining, running)
				}
			}
		})
	}
}

func repeat(step time.Duration, n int) []time.Duration {
	steps := make([]time.Duration, n)
	for i := range steps {
		steps[i] = step
	}
	return steps
}

func TestPausedSnapshotRoundsToNearestSecond(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	machine, clk, _ := newTestMachine(t, store, Options{})

	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clk.Advance(100*time.Second + 600*time.Millisecond)
	if _, err := machine.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Remaining() != 1399 || loaded.PhaseSeconds != 1500 {
		t.Fatalf("unexpected paused snapshot: remaining=%d phase=%d", loaded.Remaining(), loaded.PhaseSeconds)
	}

	restarted := New(store, clock.NewManual(testStart.Add(time.Hour)), Options{})
	status, err := restarted.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if diff := status.Remaining - machine.State().Remaining; diff < -500*time.Millisecond || diff > 500*time.Millisecond {
		t.Fatalf("restored remaining %s drifts from %s", status.Remaining, machine.State().Remaining)
	}
}

func TestRestartWithNewConfigKeepsRunningPhaseLength(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	first, _, _ := newTestMachine(t, store, Options{})
	if _, err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	edited := model.SessionConfig{FocusSeconds: 3000, BreakSeconds: 600}
	clk := clock.NewManual(testStart.Add(100 * time.Second))
	restarted := New(store, clk, Options{})
	rec := &recorder{}
	restarted.SetDispatcher(rec)

	status, err := restarted.Initialize(ctx, edited)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.State != StateRunning || status.RemainingSeconds != 1400 || status.Config.FocusSeconds != 1500 {
		t.Fatalf("running phase picked up the edited config: %+v", status)
	}

	clk.Set(testStart.Add(1500 * time.Second))
	status, err = restarted.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(rec.completions) != 1 {
		t.Fatalf("expected one completion, got %d", len(rec.completions))
	}
	record := rec.completions[0].Record
	if record.DurationSeconds != 1500 || !record.StartedAt.Equal(testStart) {
		t.Fatalf("record duration=%d startedAt=%s, want 1500 and %s", record.DurationSeconds, record.StartedAt, testStart)
	}
	if status.Config != edited || status.Phase != model.PhaseBreak || status.RemainingSeconds != 600 {
		t.Fatalf("edited config should apply after the phase: %+v", status)
	}
}

func TestReloadWhileRunningDefersConfig(t *testing.T) {
	ctx := context.Background()
	machine, clk, rec := newTestMachine(t, snapshot.NewMemoryStore(), Options{})
	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	edited := model.SessionConfig{FocusSeconds: 600, BreakSeconds: 120}
	clk.Advance(100 * time.Second)
	status, err := machine.Initialize(ctx, edited)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if status.Config != model.DefaultSessionConfig() || status.RemainingSeconds != 1400 {
		t.Fatalf("reload changed the running phase: %+v", status)
	}

	clk.Set(testStart.Add(1500 * time.Second))
	status, err = machine.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(rec.completions) != 1 || rec.completions[0].Record.DurationSeconds != 1500 {
		t.Fatalf("unexpected completions %+v", rec.completions)
	}
	if status.Config != edited || status.RemainingSeconds != 120 {
		t.Fatalf("deferred config not applied: %+v", status)
	}
}

func TestFailedClearIsNotCountedTwiceOnReload(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: snapshot.NewMemoryStore()}
	machine, clk, rec := newTestMachine(t, store, Options{})
	if _, err := machine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	store.clearErr = errors.New("disk full")
	clk.Advance(1500 * time.Second)
	if _, err := machine.Tick(ctx); err == nil {
		t.Fatal("expected the clear failure to surface")
	}

	status, err := machine.Initialize(ctx, model.DefaultSessionConfig())
	if err == nil {
		t.Fatal("expected the retried clear to fail again")
	}
	if len(rec.completions) != 1 || status.FocusCompleted != 1 || status.Phase != model.PhaseBreak {
		t.Fatalf("reload recounted the phase: completions=%d status=%+v", len(rec.completions), status)
	}

	store.clearErr = nil
	status, err = machine.Initialize(ctx, model.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if loaded, _ := store.Load(ctx); loaded != nil {
		t.Fatalf("stale snapshot should be cleared, got %+v", loaded)
	}
	if len(rec.completions) != 1 || status.FocusCompleted != 1 || status.Phase != model.PhaseBreak {
		t.Fatalf("unexpected status after clear: %+v", status)
	}
}
