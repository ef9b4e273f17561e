package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/dgnsrekt/readaloud/tts"
)

func TestParseTransportMode(t *testing.T) {
	tests := map[string]TransportMode{
		"":      TransportAuto,
		"auto":  TransportAuto,
		" BAR ": TransportBar,
		"Modal": TransportModal,
	}
	for in, want := range tests {
		got, err := ParseTransportMode(in)
		if err != nil || got != want {
			t.Errorf("ParseTransportMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTransportMode("popup"); err == nil {
		t.Error("Expected an error for an unknown mode")
	}

	var m TransportMode
	if err := m.UnmarshalText([]byte("bar")); err != nil || m != TransportBar {
		t.Errorf("UnmarshalText() = %q, %v", m, err)
	}
}

func TestTransportModalSelection(t *testing.T) {
	tests := []struct {
		mode  TransportMode
		width int
		want  bool
	}{
		{TransportAuto, 120, false},
		{TransportAuto, modalBreakpoint, false},
		{TransportAuto, modalBreakpoint - 1, true},
		{TransportAuto, 0, false},
		{TransportBar, 20, false},
		{TransportModal, 200, true},
	}
	for _, tt := range tests {
		if got := newTransportModel(tt.mode).modal(tt.width); got != tt.want {
			t.Errorf("mode %s width %d: modal() = %v, want %v", tt.mode, tt.width, got, tt.want)
		}
	}
}

func TestTransportFollowsMessages(t *testing.T) {
	tm := newTransportModel(TransportBar)
	if tm.visible() || tm.barView() != "" {
		t.Fatal("Expected hidden controls initially")
	}

	tm, cmd := tm.update(tts.NoticeMsg{Text: tts.NoticeSynthesizing, Busy: true})
	if !tm.busy || cmd == nil {
		t.Fatal("Expected a spinner while synthesizing")
	}
	if !strings.Contains(tm.barView(), "Synthesizing") {
		t.Errorf("Expected the bar to show synthesis, got %q", tm.barView())
	}

	tm, _ = tm.update(tts.TransportMsg{State: tts.TransportPlaying, Backend: tts.BackendCloud, SessionID: "a"})
	if tm.busy {
		t.Error("Expected playback to end the busy state")
	}
	bar := tm.barView()
	if !strings.Contains(bar, "Reading") || !strings.Contains(bar, "Azure") || !strings.Contains(bar, "space pause") {
		t.Errorf("Unexpected bar %q", bar)
	}

	tm, _ = tm.update(tts.TransportMsg{State: tts.TransportPaused, Backend: tts.BackendCloud, SessionID: "a"})
	if !strings.Contains(tm.barView(), "space resume") {
		t.Errorf("Expected a resume hint, got %q", tm.barView())
	}

	modal := tm.modalView(50, 12)
	if !strings.Contains(modal, "Paused") || !strings.Contains(modal, "s stop") {
		t.Errorf("Expected the modal to share the bar's state, got\n%s", modal)
	}

	tm, _ = tm.update(tts.TransportMsg{State: tts.TransportHidden, PrevState: tts.TransportPaused})
	if tm.visible() || tm.modalView(50, 12) != "" {
		t.Error("Expected hidden controls after the session ends")
	}
}

func TestStaleReadKeepsSpinner(t *testing.T) {
	tm := newTransportModel(TransportAuto)
	tm, _ = tm.update(tts.NoticeMsg{Text: tts.NoticeSynthesizing, Busy: true})

	tm, _ = tm.update(speechDoneMsg{err: tts.ErrStaleSession})
	if !tm.busy {
		t.Error("Expected a superseded read to leave the newer request spinning")
	}

	tm, _ = tm.update(speechDoneMsg{err: errors.New("boom")})
	if tm.busy {
		t.Error("Expected the request's own result to end the busy state")
	}

	if _, cmd := tm.update(spinner.TickMsg{}); cmd != nil {
		t.Error("Expected an idle spinner to stop ticking")
	}
}
