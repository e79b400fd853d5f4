package develop

// State is a step of the iteration state machine.
type State string

const (
	StateStart         State = "start"
	StateDiscover      State = "discover"
	StateRequestChange State = "request_change"
	StateApply         State = "apply"
	StateRetry         State = "retry"
	StateTest          State = "test"
	StateDone          State = "done"
	StateMaxReached    State = "max_reached"
)

// Outcome is how a development run ended.
type Outcome string

const (
	// OutcomePassed means the test command succeeded.
	OutcomePassed Outcome = "passed"
	// OutcomeMaxReached means the iteration cap was hit with tests still failing.
	OutcomeMaxReached Outcome = "max_reached"
)

// Event is reported to the observer on every state transition.
type Event struct {
	State     State
	Iteration int
}

// Observer receives state transitions. It runs on the controller's
// goroutine and must not block.
type Observer func(Event)
