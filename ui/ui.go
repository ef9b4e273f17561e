// Package ui provides the terminal note reader.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/muesli/gitcha"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "Finished reading."
	ellipsis             = "…"
	keyEsc               = "esc"
)

var (
	config Config

	markdownExtensions = []string{
		"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown",
	}
)

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, content string, speech Speech) *tea.Program {
	log.Debug(
		"Starting readaloud",
		"high_perf_pager",
		cfg.HighPerformancePager,
		"glamour",
		cfg.GlamourEnabled,
		"transport",
		cfg.Transport,
	)

	config = cfg
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(cfg, content, speech)
	p := tea.NewProgram(m, opts...)
	if speech.NewController != nil {
		m.common.ctrl = speech.NewController(func(msg tea.Msg) { p.Send(msg) })
	}
	return p
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	initLocalFileSearchMsg struct {
		cwd string
		ch  chan gitcha.SearchResult
	}
)

type (
	foundLocalFileMsg       gitcha.SearchResult
	localFileSearchFinished struct{}
	statusMessageTimeoutMsg applicationContext
)

// applicationContext indicates the area of the application something applies
// to. Occasionally used as an argument to commands and messages.
type applicationContext int

const (
	stashContext applicationContext = iota
	pagerContext
)

// state is the top-level application state.
type state int

const (
	stateShowStash state = iota
	stateShowDocument
	stateShowVoices
)

func (s state) String() string {
	return map[state]string{
		stateShowStash:    "showing file listing",
		stateShowDocument: "showing document",
		stateShowVoices:   "showing voices",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	cwd    string
	width  int
	height int

	// Speech
	ctx       context.Context
	cancel    context.CancelFunc
	ctrl      *tts.Controller
	settings  *tts.SettingsStore
	catalog   tts.VoiceLister
	transport transportModel
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// Where esc leaves the voices view to.
	prevState state

	// Sub-models
	stash  stashModel
	pager  pagerModel
	voices voicesModel

	// Releases the command waiting for the next voice catalog change.
	stopListening context.CancelFunc

	// Channel that receives paths to local markdown files
	// (via the github.com/muesli/gitcha package)
	localFileFinder chan gitcha.SearchResult
}

// unloadDocument unloads a document from the pager and stops reading it.
// Note that while this method alters the model we also need to send along
// any commands returned.
func (m *model) unloadDocument() []tea.Cmd {
	m.state = stateShowStash
	m.stash.viewState = stashStateReady
	m.pager.unload()
	m.pager.showHelp = false

	batch := []tea.Cmd{stopCmd(m.common.ctrl)}
	if m.pager.viewport.HighPerformanceRendering {
		batch = append(batch, tea.ClearScrollArea) //nolint:staticcheck
	}

	if !m.stash.shouldSpin() {
		batch = append(batch, m.stash.spinner.Tick)
	}
	return batch
}

func newModel(cfg Config, content string, speech Speech) model {
	if cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	common := commonModel{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		settings:  speech.Settings,
		catalog:   speech.Catalog,
		transport: newTransportModel(cfg.Transport),
	}

	m := model{
		common: &common,
		state:  stateShowStash,
		pager:  newPagerModel(&common),
		stash:  newStashModel(&common),
		voices: newVoicesModel(&common),
	}

	path := cfg.Path
	if path == "" && content != "" {
		m.state = stateShowDocument
		m.pager.currentDocument = markdown{Body: content}
		return m
	}

	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		log.Error("unable to stat file", "file", path, "error", err)
		m.fatalErr = err
		return m
	}
	if info.IsDir() {
		m.state = stateShowStash
	} else {
		cwd, _ := os.Getwd()
		m.state = stateShowDocument
		m.pager.currentDocument = markdown{
			localPath: path,
			Note:      stripAbsolutePath(path, cwd),
			Modtime:   info.ModTime(),
		}
	}

	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.stash.spinner.Tick}

	switch m.state {
	case stateShowStash:
		cmds = append(cmds, findLocalFiles(*m.common))
	case stateShowDocument:
		if m.pager.currentDocument.localPath != "" {
			cmds = append(cmds, loadLocalMarkdown(&m.pager.currentDocument))
		} else {
			cmds = append(cmds, renderWithGlamour(m.pager, m.pager.currentDocument.speechText()))
		}
	}

	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, m.quit()
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always quits no matter where in the application you are.
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.capturingKeys() {
			break
		}

		switch msg.String() {
		case keyEsc:
			if m.state == stateShowVoices {
				m.voices.close()
				m.stopListeningVoices()
				m.state = m.prevState
				return m, nil
			}
			if m.state == stateShowDocument && m.pager.selection == "" ||
				m.stash.viewState == stashStateLoadingDocument {
				batch := m.unloadDocument()
				return m, tea.Batch(batch...)
			}

		case "r":
			if m.state == stateShowStash {
				m.stash.markdowns = nil
				m.stash.loaded = false
				return m, m.Init()
			}

		case "q":
			return m, m.quit()

		case "h", "delete":
			if m.state == stateShowDocument {
				cmds = append(cmds, m.unloadDocument()...)
				return m, tea.Batch(cmds...)
			}

		case "v":
			if m.state != stateShowVoices {
				m.prevState = m.state
				m.state = stateShowVoices
				return m, tea.Batch(m.voices.open(), m.listenVoices())
			}

		case "ctrl+z":
			return m, tea.Suspend
		}

		if m.state == stateShowDocument {
			if cmd, ok := m.handleSpeechKey(msg); ok {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.stash.setSize(msg.Width, msg.Height)
		m.pager.setSize(msg.Width, msg.Height)

	case initLocalFileSearchMsg:
		m.localFileFinder = msg.ch
		m.common.cwd = msg.cwd
		cmds = append(cmds, findNextLocalFile(m))

	case fetchedMarkdownMsg:
		// We've loaded a note and we're preparing to render it
		m.pager.currentDocument = *msg
		cmds = append(cmds, renderWithGlamour(m.pager, m.pager.currentDocument.speechText()))

	case contentRenderedMsg:
		m.state = stateShowDocument
		m.stash.viewState = stashStateReady

	case localFileSearchFinished:
		stashModel, cmd := m.stash.update(msg)
		m.stash = stashModel
		return m, cmd

	case foundLocalFileMsg:
		newMd := localFileToMarkdown(m.common.cwd, gitcha.SearchResult(msg))
		m.stash.addMarkdowns(newMd)
		if m.stash.filterApplied() {
			newMd.buildFilterValue()
		}
		if m.stash.shouldUpdateFilter() {
			cmds = append(cmds, filterMarkdowns(m.stash))
		}
		cmds = append(cmds, findNextLocalFile(m))

	case filteredMarkdownMsg:
		// Filtering results always go to the stash
		stashModel, cmd := m.stash.update(msg)
		m.stash = stashModel
		return m, cmd

	case tts.TransportMsg:
		var cmd tea.Cmd
		m.common.transport, cmd = m.common.transport.update(msg)
		return m, cmd

	case tts.NoticeMsg:
		var cmd tea.Cmd
		m.common.transport, cmd = m.common.transport.update(msg)
		return m, tea.Batch(cmd, m.notice(msg))

	case speechDoneMsg:
		if msg.err != nil {
			log.Debug("Speech request returned", "err", msg.err)
		}
		var cmd tea.Cmd
		m.common.transport, cmd = m.common.transport.update(msg)
		return m, cmd

	case tts.VoicesChangedMsg:
		m.stopListeningVoices()
		if m.state != stateShowVoices {
			return m, nil
		}
		var cmd tea.Cmd
		m.voices, cmd = m.voices.update(msg)
		return m, tea.Batch(cmd, m.listenVoices())

	case voicesFetchedMsg:
		var cmd tea.Cmd
		m.voices, cmd = m.voices.update(msg)
		return m, cmd
	}

	// Spinner ticks carry the id of their spinner, so every model can see
	// them and only the owner advances.
	if tick, ok := msg.(spinner.TickMsg); ok {
		var stashCmd, transportCmd, voicesCmd tea.Cmd
		m.stash, stashCmd = m.stash.update(tick)
		m.common.transport, transportCmd = m.common.transport.update(tick)
		m.voices, voicesCmd = m.voices.update(tick)
		return m, tea.Batch(stashCmd, transportCmd, voicesCmd)
	}

	switch m.state {
	case stateShowStash:
		newStashModel, cmd := m.stash.update(msg)
		m.stash = newStashModel
		cmds = append(cmds, cmd)

	case stateShowDocument:
		newPagerModel, cmd := m.pager.update(msg)
		m.pager = newPagerModel
		cmds = append(cmds, cmd)

	case stateShowVoices:
		newVoicesModel, cmd := m.voices.update(msg)
		m.voices = newVoicesModel
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// capturingKeys reports whether a text input owns the keyboard.
func (m model) capturingKeys() bool {
	switch m.state {
	case stateShowStash:
		return m.stash.filterState == filtering
	case stateShowDocument:
		return m.pager.searching()
	case stateShowVoices:
		return m.voices.filtering
	}
	return false
}

// handleSpeechKey runs the reading controls of the document view.
func (m *model) handleSpeechKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	ctrl := m.common.ctrl
	ctx := m.common.ctx

	switch msg.String() {
	case "r":
		return readCmd(ctx, ctrl, m.pager.editor()), true

	case " ":
		if m.common.transport.state.Visible() {
			return toggleCmd(ctrl), true
		}
		if m.common.transport.busy {
			return nil, true
		}
		return readCmd(ctx, ctrl, m.pager.editor()), true

	case "s":
		return stopCmd(ctrl), true

	case "a":
		return applyCmd(ctx, ctrl), true

	case "+", "=", "-", "_":
		delta := rateStep
		if k := msg.String(); k == "-" || k == "_" {
			delta = -rateStep
		}
		rate, err := adjustRate(m.common.settings, delta)
		if err != nil {
			return m.pager.showStatusMessage(pagerStatusMessage{err.Error(), true}), true
		}
		text := fmt.Sprintf("Rate %.1f×", rate)
		if s := m.common.settings.Get(); s.Backend == tts.BackendLocal && m.common.transport.state.Visible() {
			text += ", press a to apply"
		}
		return m.pager.showStatusMessage(pagerStatusMessage{text, false}), true
	}
	return nil, false
}

// notice shows a controller notice in the status bar.
func (m *model) notice(msg tts.NoticeMsg) tea.Cmd {
	if msg.Err != nil {
		log.Debug("Speech notice", "text", msg.Text, "kind", msg.Kind, "err", msg.Err)
	}
	if m.state != stateShowDocument {
		return nil
	}
	return m.pager.showStatusMessage(pagerStatusMessage{msg.Text, msg.Err != nil && !errors.Is(msg.Err, tts.ErrRateLimited)})
}

// listenVoices waits for the next local catalog change unless a command
// is already waiting.
func (m *model) listenVoices() tea.Cmd {
	if m.stopListening != nil || m.common.ctrl == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(m.common.ctx)
	cmd := tts.ListenVoices(ctx, m.common.ctrl.Local().Engine())
	if cmd == nil {
		cancel()
		return nil
	}
	m.stopListening = cancel
	return cmd
}

func (m *model) stopListeningVoices() {
	if m.stopListening != nil {
		m.stopListening()
		m.stopListening = nil
	}
}

// quit stops reading before leaving.
func (m model) quit() tea.Cmd {
	m.common.cancel()
	if m.common.ctrl == nil {
		return tea.Quit
	}
	return tea.Sequence(closeSpeechCmd(m.common.ctrl), tea.Quit)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	switch m.state { //nolint:exhaustive
	case stateShowDocument:
		return m.pager.View()
	case stateShowVoices:
		return m.voices.view()
	default:
		return m.stash.view()
	}
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func findLocalFiles(m commonModel) tea.Cmd {
	return func() tea.Msg {
		log.Info("findLocalFiles")
		var (
			cwd = m.cfg.Path
			err error
		)

		if cwd == "" {
			cwd, err = os.Getwd()
		} else {
			var info os.FileInfo
			info, err = os.Stat(cwd)
			if err == nil && info.IsDir() {
				cwd, err = filepath.Abs(cwd)
			}
		}

		if err != nil {
			log.Error("error finding local files", "error", err)
			return errMsg{err}
		}

		log.Debug("local directory is", "cwd", cwd)

		var ch chan gitcha.SearchResult
		if m.cfg.ShowAllFiles {
			ch, err = gitcha.FindAllFilesExcept(cwd, markdownExtensions, nil)
		} else {
			ch, err = gitcha.FindFilesExcept(cwd, markdownExtensions, ignorePatterns(m))
		}

		if err != nil {
			log.Error("error finding local files", "error", err)
			return errMsg{err}
		}

		return initLocalFileSearchMsg{ch: ch, cwd: cwd}
	}
}

func findNextLocalFile(m model) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-m.localFileFinder

		if ok {
			// Okay now find the next one
			return foundLocalFileMsg(res)
		}
		// We're done
		log.Debug("local file search finished")
		return localFileSearchFinished{}
	}
}

func waitForStatusMessageTimeout(appCtx applicationContext, t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg(appCtx)
	}
}

// ETC

func ignorePatterns(m commonModel) []string {
	return []string{
		m.cfg.Gopath,
		"node_modules",
		".*",
	}
}

// Convert a Gitcha result to an internal representation of a markdown
// document. Note that we could be doing things like checking if the file is
// a directory, but we trust that gitcha has already done that.
func localFileToMarkdown(cwd string, res gitcha.SearchResult) *markdown {
	return &markdown{
		localPath: res.Path,
		Note:      stripAbsolutePath(res.Path, cwd),
		Modtime:   res.Info.ModTime(),
	}
}

func stripAbsolutePath(fullPath, cwd string) string {
	fp, _ := filepath.EvalSymlinks(fullPath)
	cp, _ := filepath.EvalSymlinks(cwd)
	return strings.ReplaceAll(fp, cp+string(os.PathSeparator), "")
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
