package engine

// State is a strategy's lifecycle state.
type State string

const (
	StateCreated State = "CREATED"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
	StateError   State = "ERROR"
)

// lifecycle events driving the state machine.
type lifecycleEvent string

const (
	evStart  lifecycleEvent = "start"
	evPause  lifecycleEvent = "pause"
	evResume lifecycleEvent = "resume"
	evStop   lifecycleEvent = "stop"
	evFail   lifecycleEvent = "fail"
)

// transitions is the total transition graph: a (state, event) pair absent
// here is a defined rejection, not undefined behavior. STOPPED and ERROR are
// terminal and accept nothing.
var transitions = map[State]map[lifecycleEvent]State{
	StateCreated: {
		evStart: StateRunning,
		evStop:  StateStopped,
	},
	StateRunning: {
		evPause: StatePaused,
		evStop:  StateStopped,
		evFail:  StateError,
	},
	StatePaused: {
		evResume: StateRunning,
		evStop:   StateStopped,
		evFail:   StateError,
	},
	StateStopped: {},
	StateError:   {},
}

// next resolves one transition; ok is false when the pair is rejected.
func next(s State, ev lifecycleEvent) (State, bool) {
	to, ok := transitions[s][ev]
	return to, ok
}

// Terminal reports whether no event can leave the state.
func Terminal(s State) bool {
	return s == StateStopped || s == StateError
}
