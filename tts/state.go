package tts

import "slices"

// TransportState is the visible state of the transport controls.
type TransportState int

const (
	// TransportHidden means no session is live and no controls are shown.
	TransportHidden TransportState = iota
	// TransportPlaying means controls are shown and audio is playing.
	TransportPlaying
	// TransportPaused means controls are shown and playback is paused.
	TransportPaused
)

// String returns the string representation of the state.
func (s TransportState) String() string {
	switch s {
	case TransportHidden:
		return "hidden"
	case TransportPlaying:
		return "playing"
	case TransportPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Visible returns true if the controls are on screen.
func (s TransportState) Visible() bool {
	return s == TransportPlaying || s == TransportPaused
}

// StateMachine validates transport state transitions.
type StateMachine struct {
	current     TransportState
	transitions map[TransportState][]TransportState
	onEnter     map[TransportState]func()
	onExit      map[TransportState]func()
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: TransportHidden,
		transitions: map[TransportState][]TransportState{
			TransportHidden:  {TransportPlaying},
			TransportPlaying: {TransportPaused, TransportHidden},
			TransportPaused:  {TransportPlaying, TransportHidden},
		},
		onEnter: make(map[TransportState]func()),
		onExit:  make(map[TransportState]func()),
	}
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to TransportState) bool {
	if !slices.Contains(sm.transitions[sm.current], to) {
		return false
	}

	if exitFn := sm.onExit[sm.current]; exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn := sm.onEnter[to]; enterFn != nil {
		enterFn()
	}

	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() TransportState {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state TransportState, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state TransportState, fn func()) {
	sm.onExit[state] = fn
}
