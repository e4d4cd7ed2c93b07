package session

import (
	"errors"
	"time"

	"pomodoro/focus/internal/model"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConfigRejected is returned when durations are edited while the timer runs.
	ErrConfigRejected = errors.New("config rejected while running")
	// ErrNotInitialized is returned by operations invoked before Initialize.
	ErrNotInitialized = errors.New("machine not initialized")
)

// State is the machine's coarse state.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateCompleting State = "completing"
)

// EventType classifies machine events.
type EventType string

const (
	EventStateChange       EventType = "state_change"
	EventTick              EventType = "tick"
	EventCompleted         EventType = "completed"
	EventConfigApplied     EventType = "config_applied"
	EventReportSucceeded   EventType = "report_succeeded"
	EventReportFailed      EventType = "report_failed"
	EventSnapshotDiscarded EventType = "snapshot_discarded"
	EventStoreError        EventType = "store_error"
)

// Event is delivered to subscribers. Delivery is best effort: a full
// subscriber channel drops the event.
type Event struct {
	Type       EventType
	State      State
	Phase      model.Phase
	Remaining  time.Duration
	Completion *Completion
	Stats      *model.StatsSnapshot
	Err        error
	At         time.Time
}

// Completion is handed to the dispatcher once per completed phase.
type Completion struct {
	Record     model.SessionRecord
	Generation uint64
	// Reconciled is true when the phase elapsed while nothing was ticking.
	Reconciled bool
}

// Dispatcher receives completions after the transition has been committed.
// Dispatch is called without the machine lock held and must not block.
type Dispatcher interface {
	Dispatch(Completion)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(Completion)

// Dispatch calls fn.
func (fn DispatcherFunc) Dispatch(completion Completion) {
	fn(completion)
}

// ReportAck carries the reporter's outcome back into the machine.
type ReportAck struct {
	Generation uint64
	RecordID   string
	Stats      *model.StatsSnapshot
	Err        error
}

// Status is a read-only view of the machine.
type Status struct {
	State            State
	Phase            model.Phase
	Remaining        time.Duration
	RemainingSeconds int64
	Deadline         time.Time
	Progress         float64
	Config           model.SessionConfig
	Cycle            int
	FocusCompleted   int
	LastStats        *model.StatsSnapshot
	LastReportErr    error
}
