package tts

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Transport tracks the transport controls of the live session. Updates are
// keyed by session id so events from a disposed session cannot move the
// controls of its successor. Messages are queued by the state machine's
// enter hooks and sent once the lock is released.
type Transport struct {
	mu      sync.Mutex
	machine *StateMachine
	session string
	backend Backend
	left    TransportState
	pending []TransportMsg
	notify  Notifier
}

// NewTransport creates hidden transport controls reporting to notify.
func NewTransport(notify Notifier) *Transport {
	if notify == nil {
		notify = discard
	}
	t := &Transport{
		machine: NewStateMachine(),
		notify:  notify,
	}
	for _, state := range []TransportState{TransportHidden, TransportPlaying, TransportPaused} {
		t.machine.OnExit(state, func() { t.left = state })
		t.machine.OnEnter(state, t.entered)
	}
	return t
}

// entered runs under t.mu from the state machine.
func (t *Transport) entered() {
	t.pending = append(t.pending, TransportMsg{
		State:     t.machine.Current(),
		PrevState: t.left,
		Backend:   t.backend,
		SessionID: t.session,
	})
}

// State returns the current state and the backend it is bound to.
func (t *Transport) State() (TransportState, Backend) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.machine.Current(), t.backend
}

// Show binds the controls to a new session in the playing state.
func (t *Transport) Show(sessionID string, backend Backend) {
	t.mu.Lock()
	// a previous session that was not hidden goes first; never show two at once
	t.move(TransportHidden)
	t.session = sessionID
	t.backend = backend
	t.move(TransportPlaying)
	msgs := t.drain()
	t.mu.Unlock()

	t.emit(msgs)
}

// Set moves the controls of sessionID to state. It reports whether the
// transition happened.
func (t *Transport) Set(sessionID string, state TransportState) bool {
	t.mu.Lock()
	if t.session != sessionID || state == TransportHidden {
		t.mu.Unlock()
		return false
	}
	moved := t.move(state)
	msgs := t.drain()
	t.mu.Unlock()

	t.emit(msgs)
	return moved
}

// Hide removes the controls of sessionID.
func (t *Transport) Hide(sessionID string) {
	t.mu.Lock()
	if t.session != sessionID {
		t.mu.Unlock()
		return
	}
	t.move(TransportHidden)
	t.session = ""
	msgs := t.drain()
	t.mu.Unlock()

	t.emit(msgs)
}

func (t *Transport) move(to TransportState) bool {
	from := t.machine.Current()
	if from == to {
		return false
	}
	if !t.machine.Transition(to) {
		log.Debug("Ignoring transport transition", "from", from, "to", to)
		return false
	}
	return true
}

func (t *Transport) drain() []TransportMsg {
	msgs := t.pending
	t.pending = nil
	return msgs
}

func (t *Transport) emit(msgs []TransportMsg) {
	for _, m := range msgs {
		t.notify(m)
	}
}
