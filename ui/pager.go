package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/utils"
	"github.com/fsnotify/fsnotify"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

const (
	statusBarHeight = 1
	lineNumberWidth = 4
)

var (
	pagerHelpHeight int

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	darkRed   = lipgloss.AdaptiveColor{Light: "#A8324A", Dark: "#8C2438"}
	pink      = lipgloss.AdaptiveColor{Light: "#FFD1DC", Dark: "#FFD1DC"}

	lineNumberFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(pink).
				Background(darkRed).
				Render

	statusBarMessageHelpStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("#B6FFE4")).
					Background(green).
					Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(lineNumberFg).
			Render
)

type (
	contentRenderedMsg string
	reloadMsg          struct{}
)

type pagerState int

const (
	pagerStateBrowse pagerState = iota
	pagerStateStatusMessage
	pagerStateSearch
)

type pagerModel struct {
	common   *commonModel
	viewport viewport.Model
	state    pagerState
	showHelp bool

	statusMessage      pagerStatusMessage
	statusMessageTimer *time.Timer

	// Current document being rendered, sans-glamour rendering. We cache
	// it here so we can re-render it on resize.
	currentDocument markdown

	// Reading starts at this phrase when set, instead of at the top of
	// the screen.
	selection   string
	searchInput textinput.Model

	watcher *fsnotify.Watcher
}

func newPagerModel(common *commonModel) pagerModel {
	// Init viewport
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	vp.HighPerformanceRendering = config.HighPerformancePager

	si := textinput.New()
	si.Prompt = "Read from: "
	si.PromptStyle = lipgloss.NewStyle().Foreground(fuchsia)
	si.Cursor.Style = lipgloss.NewStyle().Foreground(fuchsia)
	si.CharLimit = 200

	m := pagerModel{
		common:      common,
		state:       pagerStateBrowse,
		viewport:    vp,
		searchInput: si,
	}
	m.initWatcher()
	return m
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h - statusBarHeight
	m.searchInput.Width = max(0, w-lipgloss.Width(m.searchInput.Prompt)-2)

	if m.showHelp {
		if pagerHelpHeight == 0 {
			pagerHelpHeight = strings.Count(m.helpView(), "\n")
		}
		m.viewport.Height -= (statusBarHeight + pagerHelpHeight)
	}
}

func (m *pagerModel) setContent(s string) {
	m.viewport.SetContent(s)
}

func (m *pagerModel) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.common.width, m.common.height)
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

type pagerStatusMessage struct {
	message string
	isError bool
}

// showStatusMessage flashes msg in the status bar. The returned command
// should be sent back through the pager update function.
func (m *pagerModel) showStatusMessage(msg pagerStatusMessage) tea.Cmd {
	m.state = pagerStateStatusMessage
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(pagerContext, m.statusMessageTimer)
}

func (m *pagerModel) unload() {
	log.Debug("unload")
	if m.showHelp {
		m.toggleHelp()
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.state = pagerStateBrowse
	m.selection = ""
	m.searchInput.Reset()
	m.viewport.SetContent("")
	m.viewport.YOffset = 0
	m.unwatchFile()
}

// searching reports whether the pager wants every key for the prompt.
func (m pagerModel) searching() bool {
	return m.state == pagerStateSearch
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	if m.searching() {
		return m.updateSearch(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", keyEsc:
			if m.state != pagerStateBrowse {
				m.state = pagerStateBrowse
				return m, nil
			}
			if m.selection != "" {
				m.selection = ""
				return m, nil
			}
		case "home", "g":
			m.viewport.GotoTop()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		case "end", "G":
			m.viewport.GotoBottom()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}

		case "d":
			m.viewport.HalfViewDown()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}

		case "u":
			m.viewport.HalfViewUp()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}

		case "/":
			m.state = pagerStateSearch
			m.searchInput.SetValue(m.selection)
			m.searchInput.CursorEnd()
			cmd := m.searchInput.Focus()
			return m, cmd

		case "e":
			if m.currentDocument.localPath == "" {
				break
			}
			lineno := int(math.RoundToEven(float64(m.viewport.TotalLineCount()) * m.viewport.ScrollPercent()))
			if m.viewport.AtTop() {
				lineno = 0
			}
			log.Info(
				"opening editor",
				"file", m.currentDocument.localPath,
				"line", fmt.Sprintf("%d/%d", lineno, m.viewport.TotalLineCount()),
			)
			return m, openEditor(m.currentDocument.localPath, lineno)

		case "c":
			// Copy using OSC 52
			termenv.Copy(m.currentDocument.Body)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(m.currentDocument.Body)
			cmds = append(cmds, m.showStatusMessage(pagerStatusMessage{"Copied contents", false}))

		case "R":
			if m.currentDocument.localPath != "" {
				return m, loadLocalMarkdown(&m.currentDocument)
			}

		case "?":
			m.toggleHelp()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		}

	// We've rendered the content
	case contentRenderedMsg:
		log.Info("content rendered", "state", m.state)

		m.setContent(string(msg))
		if m.viewport.HighPerformanceRendering {
			cmds = append(cmds, viewport.Sync(m.viewport))
		}
		if m.currentDocument.localPath != "" {
			cmds = append(cmds, m.watchFile)
		}

	// The file was changed on disk and we're reloading it
	case reloadMsg:
		return m, loadLocalMarkdown(&m.currentDocument)

	// We've finished editing the document, potentially making changes. Let's
	// retrieve the latest version of the document so that we display
	// up-to-date contents.
	case editorFinishedMsg:
		return m, loadLocalMarkdown(&m.currentDocument)

	// We've received terminal dimensions, either for the first time or
	// after a resize
	case tea.WindowSizeMsg:
		return m, renderWithGlamour(m, m.currentDocument.speechText())

	case statusMessageTimeoutMsg:
		m.state = pagerStateBrowse
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// updateSearch handles input while the read-from prompt is open.
func (m pagerModel) updateSearch(msg tea.Msg) (pagerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case keyEsc:
			m.state = pagerStateBrowse
			m.searchInput.Blur()
			return m, nil
		case "enter":
			m.state = pagerStateBrowse
			m.searchInput.Blur()
			m.selection = strings.TrimSpace(m.searchInput.Value())
			if m.selection == "" {
				return m, nil
			}
			if !strings.Contains(m.currentDocument.speechText(), m.selection) {
				cmd := m.showStatusMessage(pagerStatusMessage{
					fmt.Sprintf("“%s” not found, reading the whole note", m.selection), true,
				})
				return m, cmd
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// cursorOffset maps the top line on screen to a byte offset in the note.
// Rendered and source lines differ, so the position is proportional.
func (m pagerModel) cursorOffset() int {
	total := m.viewport.TotalLineCount()
	if m.viewport.AtTop() || total == 0 {
		return 0
	}

	text := m.currentDocument.speechText()
	lines := strings.SplitAfter(text, "\n")
	line := int(math.RoundToEven(float64(len(lines)) * float64(m.viewport.YOffset) / float64(total)))
	line = min(line, len(lines))

	var offset int
	for _, l := range lines[:line] {
		offset += len(l)
	}
	return offset
}

// editor snapshots the reading position for the controller.
func (m pagerModel) editor() noteEditor {
	return noteEditor{
		text:      m.currentDocument.speechText(),
		selection: m.selection,
		cursor:    m.cursorOffset(),
	}
}

// noteEditor is a frozen view of the pager. Commands run off the update
// loop, so they get a copy rather than the live model.
type noteEditor struct {
	text      string
	selection string
	cursor    int
}

func (e noteEditor) Text() string      { return e.text }
func (e noteEditor) Selection() string { return e.selection }
func (e noteEditor) CursorOffset() int { return e.cursor }

func (m pagerModel) View() string {
	var b strings.Builder

	t := m.common.transport
	if t.visible() && t.modal(m.common.width) {
		fmt.Fprint(&b, t.modalView(m.viewport.Width, m.viewport.Height)+"\n")
	} else {
		fmt.Fprint(&b, m.viewport.View()+"\n")
	}

	// Footer
	if m.searching() {
		fmt.Fprint(&b, m.searchInput.View())
	} else {
		m.statusBarView(&b)
	}

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}

	return b.String()
}

// statusBarView lays the bar out as logo, transport controls, note, scroll
// position and help hint. A flashed message recolors the middle.
func (m pagerModel) statusBarView(b *strings.Builder) {
	flash := m.state == pagerStateStatusMessage

	fill, pos, help := statusBarNoteStyle, statusBarScrollPosStyle, statusBarHelpStyle
	if flash {
		fill, pos, help = statusBarMessageStyle, statusBarMessageStyle, statusBarMessageHelpStyle
		if m.statusMessage.isError {
			fill, pos = statusBarErrorStyle, statusBarErrorStyle
		}
	}

	left := logoView()
	if t := m.common.transport; !t.modal(m.common.width) {
		left += t.barView()
	}

	percent := math.Max(0, math.Min(1, m.viewport.ScrollPercent()))
	right := pos(fmt.Sprintf(" %3.f%% ", percent*100)) + help(" ? Help ")

	room := max(0, m.common.width-ansi.PrintableRuneWidth(left)-ansi.PrintableRuneWidth(right))
	note := truncate.StringWithTail(" "+m.statusNote()+" ", uint(room), ellipsis) //nolint:gosec
	gap := strings.Repeat(" ", max(0, room-ansi.PrintableRuneWidth(note)))

	b.WriteString(left + fill(note+gap) + right)
}

// statusNote is the middle of the status bar.
func (m pagerModel) statusNote() string {
	switch {
	case m.state == pagerStateStatusMessage:
		return m.statusMessage.message
	case m.selection != "":
		return fmt.Sprintf("%s · from “%s”", m.currentDocument.Note, m.selection)
	}
	return m.currentDocument.Note
}

var pagerHelpColumns = [][]string{
	{
		"k/↑      up",
		"j/↓      down",
		"b/pgup   page up",
		"f/pgdn   page down",
		"u        ½ page up",
		"d        ½ page down",
	},
	{
		"g/home  go to top",
		"G/end   go to bottom",
		"c       copy contents",
		"e       edit this note",
		"R       reload this note",
		"esc     back to notes",
		"q       quit",
	},
	{
		"r       read from here",
		"space   read / pause / resume",
		"s       stop reading",
		"/       read from a phrase",
		"+/-     faster / slower",
		"a       apply voice changes",
		"v       choose a voice",
	},
}

var helpColumnStyle = lipgloss.NewStyle().PaddingRight(3)

func (m pagerModel) helpView() string {
	cols := make([]string, len(pagerHelpColumns))
	for i, c := range pagerHelpColumns {
		cols[i] = helpColumnStyle.Render(strings.Join(c, "\n"))
	}
	s := indent("\n"+lipgloss.JoinHorizontal(lipgloss.Top, cols...), 2)
	s = strings.TrimSuffix(s, "\n")

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i, l := range lines {
			lines[i] = l + strings.Repeat(" ", max(m.common.width-runewidth.StringWidth(l), 0))
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}

// COMMANDS

func renderWithGlamour(m pagerModel, md string) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(m, md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg(s)
	}
}

// This is where the magic happens.
func glamourRender(m pagerModel, markdown string) (string, error) {
	trunc := lipgloss.NewStyle().MaxWidth(m.viewport.Width - lineNumberWidth).Render

	if !config.GlamourEnabled {
		return markdown, nil
	}

	isCode := m.currentDocument.Note != "" && !utils.IsMarkdownFile(m.currentDocument.Note)
	width := max(0, min(int(m.common.cfg.GlamourMaxWidth), m.viewport.Width)) //nolint:gosec
	if isCode {
		width = 0
	}

	options := []glamour.TermRendererOption{
		utils.GlamourStyle(m.common.cfg.GlamourStyle, isCode),
		glamour.WithWordWrap(width),
	}

	if m.common.cfg.PreserveNewLines {
		options = append(options, glamour.WithPreservedNewLines())
	}
	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	if isCode {
		markdown = utils.WrapCodeBlock(markdown, filepath.Ext(m.currentDocument.Note))
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}

	if isCode {
		out = strings.TrimSpace(out)
	}

	// trim lines
	lines := strings.Split(out, "\n")

	var content strings.Builder
	for i, s := range lines {
		if isCode || m.common.cfg.ShowLineNumbers {
			content.WriteString(lineNumberStyle(fmt.Sprintf("%"+fmt.Sprint(lineNumberWidth)+"d", i+1)))
			content.WriteString(trunc(s))
		} else {
			content.WriteString(s)
		}

		// don't add an artificial newline after the last split
		if i+1 < len(lines) {
			content.WriteRune('\n')
		}
	}

	return content.String(), nil
}

func (m *pagerModel) initWatcher() {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
	}
}

func (m *pagerModel) watchFile() tea.Msg {
	if m.watcher == nil {
		return nil
	}
	dir := m.localDir()

	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return nil
	}

	log.Info("fsnotify watching dir", "dir", dir)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.currentDocument.localPath {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", dir, "error", err)
		}
	}
}

func (m *pagerModel) unwatchFile() {
	if m.watcher == nil || m.currentDocument.localPath == "" {
		return
	}
	dir := m.localDir()

	err := m.watcher.Remove(dir)
	if err == nil {
		log.Debug("fsnotify dir unwatched", "dir", dir)
	} else {
		log.Error("fsnotify fail to unwatch dir", "dir", dir, "error", err)
	}
}

func (m *pagerModel) localDir() string {
	return filepath.Dir(m.currentDocument.localPath)
}
