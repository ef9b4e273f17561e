package tts

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

// TestTransportStateString tests the String() method for TransportState.
func TestTransportStateString(t *testing.T) {
	tests := []struct {
		state    TransportState
		expected string
	}{
		{TransportHidden, "hidden"},
		{TransportPlaying, "playing"},
		{TransportPaused, "paused"},
		{TransportState(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.state.String(); result != tt.expected {
				t.Errorf("TransportState.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestStateMachineTransitions tests the transition table.
func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []TransportState
		valid []bool
	}{
		{
			name:  "play pause resume hide",
			path:  []TransportState{TransportPlaying, TransportPaused, TransportPlaying, TransportHidden},
			valid: []bool{true, true, true, true},
		},
		{
			name:  "hide while paused",
			path:  []TransportState{TransportPlaying, TransportPaused, TransportHidden},
			valid: []bool{true, true, true},
		},
		{
			name:  "cannot pause while hidden",
			path:  []TransportState{TransportPaused},
			valid: []bool{false},
		},
		{
			name:  "no self transitions",
			path:  []TransportState{TransportPlaying, TransportPlaying},
			valid: []bool{true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for i, to := range tt.path {
				if got := sm.Transition(to); got != tt.valid[i] {
					t.Errorf("step %d: Transition(%v) = %v, want %v", i, to, got, tt.valid[i])
				}
			}
		})
	}
}

// TestStateMachineCallbacks tests enter and exit hooks.
func TestStateMachineCallbacks(t *testing.T) {
	sm := NewStateMachine()

	var calls []string
	sm.OnExit(TransportHidden, func() { calls = append(calls, "exit hidden") })
	sm.OnEnter(TransportPlaying, func() { calls = append(calls, "enter playing") })
	sm.OnEnter(TransportHidden, func() { calls = append(calls, "enter hidden") })

	sm.Transition(TransportPlaying)
	sm.Transition(TransportPaused)
	sm.Transition(TransportHidden)

	want := []string{"exit hidden", "enter playing", "enter hidden"}
	if len(calls) != len(want) {
		t.Fatalf("Expected %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
	if sm.Current() != TransportHidden {
		t.Errorf("Expected hidden, got %v", sm.Current())
	}
}

func TestTransportIgnoresOtherSessions(t *testing.T) {
	var msgs []TransportMsg
	tr := NewTransport(func(m tea.Msg) {
		if tm, ok := m.(TransportMsg); ok {
			msgs = append(msgs, tm)
		}
	})

	tr.Show("a", BackendCloud)
	if tr.Set("b", TransportPaused) {
		t.Error("Expected a foreign session to be ignored")
	}
	tr.Hide("b")
	if state, backend := tr.State(); state != TransportPlaying || backend != BackendCloud {
		t.Errorf("Expected playing on cloud, got %v on %v", state, backend)
	}

	if !tr.Set("a", TransportPaused) {
		t.Error("Expected pause to apply")
	}
	if tr.Set("a", TransportPaused) {
		t.Error("Expected a repeated pause to be a no-op")
	}
	tr.Hide("a")
	tr.Hide("a")

	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[2].State != TransportHidden || msgs[2].PrevState != TransportPaused {
		t.Errorf("Unexpected final message %+v", msgs[2])
	}
}

func TestTransportShowReplacesVisibleSession(t *testing.T) {
	var states []TransportState
	tr := NewTransport(func(m tea.Msg) {
		if tm, ok := m.(TransportMsg); ok {
			states = append(states, tm.State)
		}
	})

	tr.Show("a", BackendLocal)
	tr.Show("b", BackendCloud)

	want := []TransportState{TransportPlaying, TransportHidden, TransportPlaying}
	if len(states) != len(want) {
		t.Fatalf("Expected %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestTransportMessagesNameTheirSession(t *testing.T) {
	var msgs []TransportMsg
	tr := NewTransport(func(m tea.Msg) {
		if tm, ok := m.(TransportMsg); ok {
			msgs = append(msgs, tm)
		}
	})

	tr.Show("a", BackendLocal)
	tr.Set("a", TransportPaused)
	tr.Show("b", BackendCloud)

	want := []TransportMsg{
		{State: TransportPlaying, PrevState: TransportHidden, Backend: BackendLocal, SessionID: "a"},
		{State: TransportPaused, PrevState: TransportPlaying, Backend: BackendLocal, SessionID: "a"},
		{State: TransportHidden, PrevState: TransportPaused, Backend: BackendLocal, SessionID: "a"},
		{State: TransportPlaying, PrevState: TransportHidden, Backend: BackendCloud, SessionID: "b"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("Expected %d messages, got %+v", len(want), msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("msgs[%d] = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}
