package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/readaloud/tts"
)

// TransportMode selects how the transport controls are drawn.
type TransportMode string

// Transport modes.
const (
	TransportAuto  TransportMode = "auto"
	TransportBar   TransportMode = "bar"
	TransportModal TransportMode = "modal"
)

// Terminals narrower than this get the modal in auto mode.
const modalBreakpoint = 60

// ParseTransportMode parses auto, bar or modal. Empty means auto.
func ParseTransportMode(s string) (TransportMode, error) {
	switch m := TransportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return TransportAuto, nil
	case TransportAuto, TransportBar, TransportModal:
		return m, nil
	}
	return "", fmt.Errorf("invalid transport mode %q: use auto, bar or modal", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *TransportMode) UnmarshalText(b []byte) error {
	mode, err := ParseTransportMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

var (
	transportBarStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#6B50FF"})

	transportModalStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(fuchsia).
				Padding(1, 3)

	transportTitleStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	transportKeyStyle   = lipgloss.NewStyle().Foreground(gray)
)

// transportModel mirrors the controller's transport state for rendering.
// The bar and the modal draw from the same fields.
type transportModel struct {
	mode    TransportMode
	state   tts.TransportState
	backend tts.Backend
	session string
	busy    bool // Synthesis in flight, nothing to control yet
	spinner spinner.Model
}

func newTransportModel(mode TransportMode) transportModel {
	if mode == "" {
		mode = TransportAuto
	}
	return transportModel{
		mode:  mode,
		state: tts.TransportHidden,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(fuchsia)),
		),
	}
}

func (t transportModel) visible() bool {
	return t.busy || t.state.Visible()
}

// modal reports whether the controls are drawn as a modal at width.
func (t transportModel) modal(width int) bool {
	switch t.mode {
	case TransportModal:
		return true
	case TransportBar:
		return false
	}
	return width > 0 && width < modalBreakpoint
}

func (t transportModel) update(msg tea.Msg) (transportModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tts.TransportMsg:
		t.state = msg.State
		t.backend = msg.Backend
		t.session = msg.SessionID
		if msg.State.Visible() {
			t.busy = false
		}

	case tts.NoticeMsg:
		wasBusy := t.busy
		t.busy = msg.Busy
		if t.busy && !wasBusy {
			return t, t.spinner.Tick
		}

	case speechDoneMsg:
		// a superseded read says nothing about the one in flight
		if !errors.Is(msg.err, tts.ErrStaleSession) {
			t.busy = false
		}

	case spinner.TickMsg:
		if !t.busy {
			return t, nil
		}
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		return t, cmd
	}
	return t, nil
}

func (t transportModel) backendName() string {
	if t.backend == tts.BackendLocal {
		return "System voice"
	}
	return "Azure"
}

func (t transportModel) statusText() string {
	switch {
	case t.busy:
		return t.spinner.View() + " Synthesizing"
	case t.state == tts.TransportPlaying:
		return "▶ Reading"
	case t.state == tts.TransportPaused:
		return "⏸ Paused"
	}
	return ""
}

func (t transportModel) hints() string {
	if t.busy {
		return "s cancel"
	}
	action := "pause"
	if t.state == tts.TransportPaused {
		action = "resume"
	}
	return "space " + action + " · s stop"
}

// barView is the inline rendering shown in the status bar.
func (t transportModel) barView() string {
	if !t.visible() {
		return ""
	}
	s := " " + t.statusText()
	if !t.busy {
		s += " · " + t.backendName()
	}
	return transportBarStyle.Render(s + "  " + t.hints() + " ")
}

// modalView centers the controls in a width by height area.
func (t transportModel) modalView(width, height int) string {
	if !t.visible() {
		return ""
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		transportTitleStyle.Render(t.backendName()),
		"",
		t.statusText(),
		"",
		transportKeyStyle.Render(t.hints()),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, transportModalStyle.Render(body))
}
