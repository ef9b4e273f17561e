package ui

import (
	"context"
	"errors"
	"fmt"
	"math"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

// Rate step for the +/- keys.
const rateStep = 0.1

// Speech wires the read-aloud controller into the TUI.
type Speech struct {
	Settings *tts.SettingsStore
	Catalog  tts.VoiceLister

	// NewController builds the controller once the program exists, so its
	// notices reach the program as messages.
	NewController func(tts.Notifier) *tts.Controller
}

// speechDoneMsg reports that a controller call returned. Failures have
// already been announced through a notice.
type speechDoneMsg struct{ err error }

// Controller calls run as commands, never inside Update: the controller
// notifies through Program.Send, which blocks until Update returns.

func readCmd(ctx context.Context, c *tts.Controller, e tts.Editor) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		return speechDoneMsg{c.ReadFromEditor(ctx, e)}
	}
}

func toggleCmd(c *tts.Controller) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		return speechDoneMsg{c.Toggle()}
	}
}

func stopCmd(c *tts.Controller) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		c.Stop()
		return speechDoneMsg{}
	}
}

func applyCmd(ctx context.Context, c *tts.Controller) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		return speechDoneMsg{c.ApplyChanges(ctx)}
	}
}

func closeSpeechCmd(c *tts.Controller) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		c.Close()
		return nil
	}
}

// adjustRate moves the persisted rate by delta and returns the new value.
func adjustRate(st *tts.SettingsStore, delta float64) (float64, error) {
	if st == nil {
		return 0, errors.New("no speech settings")
	}
	var rate float64
	err := st.Update(func(s *tts.Settings) {
		s.Rate = math.Round((s.Rate+delta)*10) / 10
		rate = s.Rate
	})
	if err != nil {
		return 0, fmt.Errorf("unable to change rate: %w", err)
	}
	log.Debug("Changed speech rate", "rate", rate)
	return rate, nil
}
