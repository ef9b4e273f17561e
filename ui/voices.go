package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/muesli/reflow/truncate"
)

type voicesFetchedMsg struct {
	voices []tts.Voice
	err    error
}

var currentVoiceStyle = lipgloss.NewStyle().Foreground(green)

// voicesModel lets the user pick the voice of either backend. The cloud
// catalog is fetched once per visit and dropped when the view closes.
type voicesModel struct {
	common *commonModel

	backend tts.Backend
	cloud   []tts.Voice
	fetched bool
	loading bool
	err     error

	filterInput textinput.Model
	filtering   bool

	cursor  int
	offset  int
	spinner spinner.Model
	message string
}

func newVoicesModel(common *commonModel) voicesModel {
	fi := textinput.New()
	fi.Prompt = "Find voice: "
	fi.PromptStyle = lipgloss.NewStyle().Foreground(yellow)
	fi.Cursor.Style = lipgloss.NewStyle().Foreground(fuchsia)
	fi.CharLimit = 80

	return voicesModel{
		common:      common,
		backend:     tts.BackendCloud,
		filterInput: fi,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Line), spinner.WithStyle(lipgloss.NewStyle().Foreground(fuchsia))),
	}
}

func (m voicesModel) settings() tts.Settings {
	if m.common.settings == nil {
		return tts.DefaultSettings()
	}
	return m.common.settings.Get()
}

// open prepares the view for a new visit.
func (m *voicesModel) open() tea.Cmd {
	m.backend = m.settings().Backend
	m.cloud = nil
	m.fetched = false
	m.err = nil
	m.message = ""
	m.cursor, m.offset = 0, 0
	m.filtering = false
	m.filterInput.Reset()
	return m.load()
}

// close forgets the cloud catalog.
func (m *voicesModel) close() {
	m.cloud = nil
	m.fetched = false
	m.loading = false
	m.filterInput.Blur()
}

// load fetches the cloud catalog if this visit has not yet.
func (m *voicesModel) load() tea.Cmd {
	if m.backend != tts.BackendCloud || m.fetched || m.loading {
		return nil
	}
	if m.common.catalog == nil {
		m.err = tts.NewTTSError(tts.ErrNotConfigured, "ui", "voices")
		return nil
	}
	m.loading = true
	return tea.Batch(fetchVoicesCmd(m.common.ctx, m.common.catalog, m.settings()), m.spinner.Tick)
}

func (m voicesModel) all() []tts.Voice {
	if m.backend == tts.BackendCloud {
		return m.cloud
	}
	if m.common.ctrl == nil {
		return nil
	}
	return m.common.ctrl.Local().Voices()
}

func (m voicesModel) visible() []tts.Voice {
	return tts.FilterVoices(m.all(), m.filterInput.Value())
}

// currentID is the voice the settings select for the shown backend.
func (m voicesModel) currentID() string {
	s := m.settings()
	if m.backend == tts.BackendCloud {
		return s.CloudVoice
	}
	return s.LocalVoice
}

func (m voicesModel) perPage() int {
	return max(1, m.common.height-6)
}

func (m *voicesModel) clampCursor() {
	n := len(m.visible())
	m.cursor = max(0, min(m.cursor, n-1))
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if per := m.perPage(); m.cursor >= m.offset+per {
		m.offset = m.cursor - per + 1
	}
}

func (m voicesModel) update(msg tea.Msg) (voicesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case voicesFetchedMsg:
		m.loading = false
		m.fetched = true
		m.cloud = msg.voices
		m.err = msg.err
		if msg.err != nil {
			log.Debug("Fetching voices failed", "err", msg.err)
		}
		m.clampCursor()
		return m, nil

	case tts.VoicesChangedMsg:
		m.clampCursor()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m voicesModel) updateFilter(msg tea.KeyMsg) (voicesModel, tea.Cmd) {
	switch msg.String() {
	case keyEsc:
		m.filtering = false
		m.filterInput.Reset()
		m.filterInput.Blur()
		m.clampCursor()
		return m, nil
	case "enter", "up", "down":
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.cursor, m.offset = 0, 0
	return m, cmd
}

func (m voicesModel) updateBrowse(msg tea.KeyMsg) (voicesModel, tea.Cmd) {
	switch msg.String() {
	case "k", "up":
		m.cursor--
		m.clampCursor()
	case "j", "down":
		m.cursor++
		m.clampCursor()
	case "/":
		m.filtering = true
		cmd := m.filterInput.Focus()
		return m, cmd
	case "tab":
		return m.switchBackend()
	case "enter":
		return m.choose()
	}
	return m, nil
}

// switchBackend makes the other backend the configured one.
func (m voicesModel) switchBackend() (voicesModel, tea.Cmd) {
	next := tts.BackendLocal
	if m.backend == tts.BackendLocal {
		next = tts.BackendCloud
	}
	if err := m.persist(func(s *tts.Settings) { s.Backend = next }); err != nil {
		m.message = err.Error()
		return m, nil
	}
	m.backend = next
	m.err = nil
	m.cursor, m.offset = 0, 0
	m.message = "Reading with " + backendLabel(next) + "."
	cmd := m.load()
	return m, cmd
}

// choose stores the voice under the cursor.
func (m voicesModel) choose() (voicesModel, tea.Cmd) {
	vs := m.visible()
	if m.cursor >= len(vs) {
		return m, nil
	}
	v := vs[m.cursor]
	backend := m.backend
	err := m.persist(func(s *tts.Settings) {
		if backend == tts.BackendCloud {
			s.CloudVoice = v.ID
		} else {
			s.LocalVoice = v.ID
		}
	})
	if err != nil {
		m.message = err.Error()
		return m, nil
	}
	m.message = fmt.Sprintf("Voice set to %s.", v.DisplayName)
	if backend == tts.BackendLocal {
		m.message += " Press a while reading to apply."
	}
	return m, nil
}

func (m voicesModel) persist(fn func(*tts.Settings)) error {
	if m.common.settings == nil {
		return fmt.Errorf("no speech settings to update")
	}
	if err := m.common.settings.Update(fn); err != nil {
		log.Error("Saving speech settings failed", "err", err)
		return fmt.Errorf("could not save settings: %w", err)
	}
	return nil
}

func backendLabel(b tts.Backend) string {
	if b == tts.BackendLocal {
		return "the system voice"
	}
	return "Azure"
}

func (m voicesModel) view() string {
	var b strings.Builder

	title := "Azure voices"
	if m.backend == tts.BackendLocal {
		title = "System voices"
	}
	fmt.Fprintf(&b, "\n  %s %s\n\n", logoView(), dimStyle.Render(title))

	vs := m.visible()
	switch {
	case m.loading:
		fmt.Fprintf(&b, "  %s Fetching voices…\n", m.spinner.View())
	case m.err != nil:
		fmt.Fprintf(&b, "  %s %s\n", errorTitleStyle.Render("ERROR"), tts.Describe(m.err))
	case len(vs) == 0 && m.filterInput.Value() != "":
		b.WriteString("  " + dimStyle.Render("No voices match.") + "\n")
	case len(vs) == 0 && m.backend == tts.BackendLocal:
		b.WriteString("  " + dimStyle.Render("Waiting for the system voice list…") + "\n")
	case len(vs) == 0:
		b.WriteString("  " + dimStyle.Render("No voices.") + "\n")
	}

	current := m.currentID()
	width := uint(max(0, m.common.width-4)) //nolint:gosec
	end := min(len(vs), m.offset+m.perPage())
	for i := m.offset; i < end; i++ {
		v := vs[i]
		line := v.DisplayName
		if v.Locale != "" {
			line += " · " + tts.LanguageName(v.Locale)
		}
		if v.Gender != "" {
			line += " · " + v.Gender
		}
		line = truncate.StringWithTail(line, width, ellipsis)
		if strings.EqualFold(v.ID, current) {
			line = currentVoiceStyle.Render("● ") + line
		} else {
			line = "  " + line
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(unselectedStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n  ")
	switch {
	case m.filtering:
		b.WriteString(m.filterInput.View())
	case m.message != "":
		b.WriteString(subtleStyle.Render(m.message))
	default:
		b.WriteString(subtleStyle.Render("enter choose • tab switch backend • / find • esc back"))
	}
	return b.String()
}

// COMMANDS

func fetchVoicesCmd(ctx context.Context, catalog tts.VoiceLister, s tts.Settings) tea.Cmd {
	return func() tea.Msg {
		voices, err := catalog.Voices(ctx, s)
		return voicesFetchedMsg{voices: voices, err: err}
	}
}
