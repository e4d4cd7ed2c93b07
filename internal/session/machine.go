// Package session implements the focus/break timer state machine.
//
// The deadline is the source of truth for a running phase; ticks only
// re-derive the remaining time from it, so suspension, backgrounding and
// restarts never introduce drift.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"pomodoro/focus/internal/clock"
	"pomodoro/focus/internal/model"
	"pomodoro/focus/internal/snapshot"
)

// recordNamespace seeds deterministic record IDs, so reconciling the same
// phase twice yields the same ledger key.
var recordNamespace = uuid.MustParse("6f1c2a53-8d0e-4c59-9a8e-2f7b1d4e9c30")

// Options contains policy switches for the machine.
type Options struct {
	// AutoStart starts the next phase right after a completion that was
	// observed by a live tick or pause. Reconciled completions never auto-start.
	AutoStart bool
}

// Machine is the focus/break session state machine. All methods are safe for
// concurrent use, but the design assumes one logical owner plus one ticker.
type Machine struct {
	mu          sync.Mutex
	store       snapshot.Store
	clock       clock.Clock
	options     Options
	dispatcher  Dispatcher
	initialized bool

	config model.SessionConfig
	// pendingConfig waits for the running phase to end.
	pendingConfig *model.SessionConfig
	state         State
	phase         model.Phase
	// phaseSeconds is the length the current phase started with.
	phaseSeconds int64
	remaining    time.Duration
	deadline     time.Time
	// lastCompletedID guards against reconciling a phase this process already completed.
	lastCompletedID string

	cycle          int
	focusCompleted int
	generation     uint64
	lastStats      *model.StatsSnapshot
	lastReportErr  error

	pending []Completion
	events  []chan Event
}

// New creates an uninitialized machine.
func New(store snapshot.Store, clk clock.Clock, options Options) *Machine {
	if clk == nil {
		clk = clock.System()
	}
	return &Machine{
		store:   store,
		clock:   clk,
		options: options,
		state:   StateIdle,
		phase:   model.PhaseFocus,
	}
}

// SetDispatcher injects the receiver of completions.
func (machine *Machine) SetDispatcher(dispatcher Dispatcher) {
	machine.mu.Lock()
	machine.dispatcher = dispatcher
	machine.mu.Unlock()
}

// Subscribe registers a new observer channel.
func (machine *Machine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	machine.mu.Lock()
	machine.events = append(machine.events, ch)
	machine.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes an observer channel.
func (machine *Machine) Unsubscribe(events <-chan Event) {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	for i, ch := range machine.events {
		if ch == events {
			machine.events = append(machine.events[:i], machine.events[i+1:]...)
			close(ch)
			return
		}
	}
}

// Initialize restores the machine from the snapshot store. A running snapshot
// whose deadline already passed is completed exactly once before returning.
// Calling Initialize again re-reads the store, which is how a second process
// sharing the store picks up changes. An empty store on reload leaves the
// current phase idle. A restored running phase keeps the length it started
// with; config takes effect once that phase ends.
func (machine *Machine) Initialize(ctx context.Context, config model.SessionConfig) (Status, error) {
	if err := config.Validate(); err != nil {
		return machine.State(), err
	}

	machine.mu.Lock()
	now := machine.clock.Now()
	reloading := machine.initialized
	machine.initialized = true
	machine.pendingConfig = nil
	machine.deadline = time.Time{}

	saved, err := machine.store.Load(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotCorrupt) {
			if clearErr := machine.store.Clear(ctx); clearErr != nil {
				err = errors.Join(err, clearErr)
			}
			machine.emitLocked(Event{Type: EventSnapshotDiscarded, Err: err, At: now})
		} else {
			machine.emitLocked(Event{Type: EventStoreError, Err: err, At: now})
		}
		saved = nil
	}

	var storeErr error
	if reloading && saved != nil && saved.Mode == model.ModeRunning &&
		recordID(saved.Phase, saved.Deadline()) == machine.lastCompletedID {
		// Completed here already; only clearing the snapshot failed.
		if err := machine.store.Clear(ctx); err != nil {
			storeErr = fmt.Errorf("clear completed snapshot: %w", err)
			machine.emitLocked(Event{Type: EventStoreError, State: machine.state, Phase: machine.phase, Err: storeErr, At: now})
		}
		saved = nil
	}

	switch {
	case saved == nil:
		// A reload after a completion or reset elsewhere keeps the phase.
		if !reloading || machine.phase == "" {
			machine.phase = model.PhaseFocus
		}
		machine.config = config
		machine.state = StateIdle
		machine.fullPhaseLocked()
	case saved.Mode == model.ModePaused:
		machine.config = config
		machine.state = StatePaused
		machine.phase = saved.Phase
		machine.phaseSeconds = saved.PhaseLength(config.SecondsFor(saved.Phase))
		machine.remaining = secondsDuration(saved.Remaining())
	default:
		if !reloading {
			// The phase's own length is all that is known of the config it started under.
			machine.config = config.WithSeconds(saved.Phase, saved.PhaseLength(config.SecondsFor(saved.Phase)))
		}
		pending := config
		machine.pendingConfig = &pending
		machine.state = StateRunning
		machine.phase = saved.Phase
		machine.phaseSeconds = saved.PhaseLength(machine.config.SecondsFor(saved.Phase))
		machine.deadline = saved.Deadline()
		if !machine.deadline.After(now) {
			storeErr = errors.Join(storeErr, machine.completeLocked(ctx, now, true))
		}
	}

	machine.emitLocked(machine.stateEventLocked(now))
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, storeErr
}

// Start begins or resumes the countdown of the current phase.
func (machine *Machine) Start(ctx context.Context) (Status, error) {
	machine.mu.Lock()
	now := machine.clock.Now()
	err := machine.startLocked(ctx, now)
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, err
}

// Pause freezes a running countdown. If the deadline has already passed the
// phase completes instead, so the machine never rests at zero.
func (machine *Machine) Pause(ctx context.Context) (Status, error) {
	machine.mu.Lock()
	now := machine.clock.Now()
	err := machine.pauseLocked(ctx, now)
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, err
}

// Reset cancels the current phase and clears the persisted snapshot. A report
// acknowledgement for a completion dispatched before the reset is ignored.
func (machine *Machine) Reset(ctx context.Context) (Status, error) {
	machine.mu.Lock()
	now := machine.clock.Now()
	err := machine.resetLocked(ctx, now)
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, err
}

// Tick re-derives the remaining time while running and completes the phase
// once the deadline is reached. Ticks in any other state are no-ops.
func (machine *Machine) Tick(ctx context.Context) (Status, error) {
	machine.mu.Lock()
	now := machine.clock.Now()
	var err error
	if machine.state == StateRunning {
		if machine.deadline.After(now) {
			machine.emitLocked(Event{
				Type:      EventTick,
				State:     machine.state,
				Phase:     machine.phase,
				Remaining: machine.deadline.Sub(now),
				At:        now,
			})
		} else {
			err = machine.completeLocked(ctx, now, false)
		}
	}
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, err
}

// ApplyConfig installs new durations. It is refused while running. When paused,
// the current phase restarts from the new full duration.
func (machine *Machine) ApplyConfig(ctx context.Context, config model.SessionConfig) (Status, error) {
	if err := config.Validate(); err != nil {
		return machine.State(), err
	}

	machine.mu.Lock()
	now := machine.clock.Now()
	err := machine.applyConfigLocked(ctx, config, now)
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, err
}

// SkipPhase moves an idle or paused machine to the other phase without
// producing a session record.
func (machine *Machine) SkipPhase(ctx context.Context) (Status, error) {
	machine.mu.Lock()
	now := machine.clock.Now()
	err := machine.skipLocked(ctx, now)
	status := machine.statusLocked(now)
	machine.unlockAndDispatch()
	return status, err
}

// AcknowledgeReport records the reporter's outcome for a dispatched completion.
// It returns false when the acknowledgement is stale and was ignored.
func (machine *Machine) AcknowledgeReport(ack ReportAck) bool {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	now := machine.clock.Now()
	if ack.Generation != machine.generation {
		return false
	}

	if ack.Err != nil {
		machine.lastReportErr = ack.Err
		machine.emitLocked(Event{
			Type:  EventReportFailed,
			State: machine.state,
			Phase: machine.phase,
			Err:   ack.Err,
			At:    now,
		})
		return true
	}

	machine.lastReportErr = nil
	if ack.Stats != nil {
		stats := *ack.Stats
		machine.lastStats = &stats
	}
	machine.emitLocked(Event{
		Type:  EventReportSucceeded,
		State: machine.state,
		Phase: machine.phase,
		Stats: machine.lastStats,
		At:    now,
	})
	return true
}

// State returns the current status.
func (machine *Machine) State() Status {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	return machine.statusLocked(machine.clock.Now())
}

func (machine *Machine) startLocked(ctx context.Context, now time.Time) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if machine.state != StateIdle && machine.state != StatePaused {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, machine.state)
	}

	phaseSeconds := machine.phaseSeconds
	remaining := machine.remaining
	if remaining <= 0 || phaseSeconds <= 0 {
		phaseSeconds = machine.config.SecondsFor(machine.phase)
		remaining = secondsDuration(phaseSeconds)
	}
	deadline := now.Add(remaining)
	running := model.RunningSnapshot(machine.phase, deadline).WithPhaseSeconds(phaseSeconds)
	if err := machine.store.Save(ctx, running); err != nil {
		return fmt.Errorf("persist running snapshot: %w", err)
	}

	machine.state = StateRunning
	machine.deadline = deadline
	machine.phaseSeconds = phaseSeconds
	machine.remaining = remaining
	machine.emitLocked(machine.stateEventLocked(now))
	return nil
}

func (machine *Machine) pauseLocked(ctx context.Context, now time.Time) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if machine.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, machine.state)
	}

	remaining := machine.deadline.Sub(now)
	if remaining <= 0 {
		return machine.completeLocked(ctx, now, false)
	}

	paused := model.PausedSnapshot(machine.phase, roundSeconds(remaining)).WithPhaseSeconds(machine.phaseSeconds)
	if err := machine.store.Save(ctx, paused); err != nil {
		return fmt.Errorf("persist paused snapshot: %w", err)
	}

	machine.state = StatePaused
	machine.remaining = remaining
	machine.deadline = time.Time{}
	machine.emitLocked(machine.stateEventLocked(now))
	return nil
}

func (machine *Machine) resetLocked(ctx context.Context, now time.Time) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if err := machine.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	machine.generation++
	machine.state = StateIdle
	machine.deadline = time.Time{}
	machine.adoptPendingConfigLocked()
	machine.fullPhaseLocked()
	machine.emitLocked(machine.stateEventLocked(now))
	return nil
}

func (machine *Machine) applyConfigLocked(ctx context.Context, config model.SessionConfig, now time.Time) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if machine.state == StateRunning || machine.state == StateCompleting {
		return fmt.Errorf("%w: state %s", ErrConfigRejected, machine.state)
	}

	phaseSeconds := config.SecondsFor(machine.phase)
	if machine.state == StatePaused {
		paused := model.PausedSnapshot(machine.phase, phaseSeconds).WithPhaseSeconds(phaseSeconds)
		if err := machine.store.Save(ctx, paused); err != nil {
			return fmt.Errorf("persist paused snapshot: %w", err)
		}
	}

	machine.config = config
	machine.pendingConfig = nil
	machine.fullPhaseLocked()
	machine.emitLocked(Event{
		Type:      EventConfigApplied,
		State:     machine.state,
		Phase:     machine.phase,
		Remaining: machine.remaining,
		At:        now,
	})
	return nil
}

func (machine *Machine) skipLocked(ctx context.Context, now time.Time) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if machine.state != StateIdle && machine.state != StatePaused {
		return fmt.Errorf("%w: skip from %s", ErrInvalidTransition, machine.state)
	}
	if machine.state == StatePaused {
		if err := machine.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	machine.phase = machine.phase.Next()
	machine.state = StateIdle
	machine.adoptPendingConfigLocked()
	machine.fullPhaseLocked()
	machine.emitLocked(machine.stateEventLocked(now))
	return nil
}

// completeLocked finalizes the running phase. The state leaves Running before
// anything else happens, which is what makes repeated ticks harmless.
func (machine *Machine) completeLocked(ctx context.Context, now time.Time, reconciled bool) error {
	phase := machine.phase
	deadline := machine.deadline
	machine.state = StateCompleting
	machine.emitLocked(machine.stateEventLocked(now))

	duration := machine.phaseSeconds
	if duration <= 0 {
		duration = machine.config.SecondsFor(phase)
	}
	record := model.SessionRecord{
		ID:              recordID(phase, deadline),
		PhaseType:       phase,
		DurationSeconds: duration,
		StartedAt:       deadline.Add(-time.Duration(duration) * time.Second).UTC(),
		EndedAt:         deadline.UTC(),
		Completed:       true,
	}
	completion := Completion{
		Record:     record,
		Generation: machine.generation,
		Reconciled: reconciled,
	}
	machine.pending = append(machine.pending, completion)
	machine.lastCompletedID = record.ID

	if phase == model.PhaseBreak {
		machine.cycle++
	} else {
		machine.focusCompleted++
	}
	machine.phase = phase.Next()
	machine.adoptPendingConfigLocked()
	machine.fullPhaseLocked()
	machine.deadline = time.Time{}
	machine.state = StateIdle

	var storeErr error
	if err := machine.store.Clear(ctx); err != nil {
		storeErr = fmt.Errorf("clear completed snapshot: %w", err)
		machine.emitLocked(Event{Type: EventStoreError, State: machine.state, Phase: machine.phase, Err: storeErr, At: now})
	}

	machine.emitLocked(Event{
		Type:       EventCompleted,
		State:      machine.state,
		Phase:      machine.phase,
		Remaining:  machine.remaining,
		Completion: &completion,
		At:         now,
	})

	if machine.options.AutoStart && !reconciled {
		if err := machine.startLocked(ctx, now); err != nil {
			storeErr = errors.Join(storeErr, err)
		}
		return storeErr
	}
	machine.emitLocked(machine.stateEventLocked(now))
	return storeErr
}

// fullPhaseLocked gives the current phase its full configured length.
func (machine *Machine) fullPhaseLocked() {
	machine.phaseSeconds = machine.config.SecondsFor(machine.phase)
	machine.remaining = secondsDuration(machine.phaseSeconds)
}

func (machine *Machine) adoptPendingConfigLocked() {
	if machine.pendingConfig != nil {
		machine.config = *machine.pendingConfig
		machine.pendingConfig = nil
	}
}

func (machine *Machine) statusLocked(now time.Time) Status {
	status := Status{
		State:          machine.state,
		Phase:          machine.phase,
		Config:         machine.config,
		Cycle:          machine.cycle,
		FocusCompleted: machine.focusCompleted,
		LastReportErr:  machine.lastReportErr,
	}
	if machine.lastStats != nil {
		stats := *machine.lastStats
		status.LastStats = &stats
	}

	if machine.state == StateRunning {
		remaining := machine.deadline.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		status.Deadline = machine.deadline
		status.Remaining = remaining
		status.RemainingSeconds = ceilSeconds(remaining)
	} else {
		status.Remaining = machine.remaining
		status.RemainingSeconds = ceilSeconds(machine.remaining)
	}
	status.Progress = progress(machine.phaseSeconds, status.Remaining)
	return status
}

func (machine *Machine) stateEventLocked(now time.Time) Event {
	event := Event{
		Type:  EventStateChange,
		State: machine.state,
		Phase: machine.phase,
		At:    now,
	}
	if machine.state == StateRunning {
		event.Remaining = machine.deadline.Sub(now)
	} else {
		event.Remaining = machine.remaining
	}
	return event
}

func (machine *Machine) emitLocked(event Event) {
	for _, ch := range machine.events {
		select {
		case ch <- event:
		default:
		}
	}
}

// unlockAndDispatch releases the lock and then hands pending completions to
// the dispatcher, so a dispatcher may call back into the machine.
func (machine *Machine) unlockAndDispatch() {
	pending := machine.pending
	machine.pending = nil
	dispatcher := machine.dispatcher
	machine.mu.Unlock()

	if dispatcher == nil {
		return
	}
	for _, completion := range pending {
		dispatcher.Dispatch(completion)
	}
}

func recordID(phase model.Phase, deadline time.Time) string {
	key := string(phase) + ":" + strconv.FormatInt(deadline.UnixMilli(), 10)
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

func secondsDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// roundSeconds is the persisted form of a paused remainder: nearest whole
// second, never below one so the snapshot stays valid.
func roundSeconds(d time.Duration) int64 {
	seconds := int64(d.Round(time.Second) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

func progress(totalSeconds int64, remaining time.Duration) float64 {
	total := time.Duration(totalSeconds) * time.Second
	if total <= 0 {
		return 1
	}
	value := float64(total-remaining) / float64(total)
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
