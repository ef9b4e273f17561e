package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
)

const (
	stashHeaderHeight = 3
	stashFooterHeight = 2
	stashItemHeight   = 3
)

type filteredMarkdownMsg []*markdown

type stashViewState int

const (
	stashStateReady stashViewState = iota
	stashStateLoadingDocument
)

type filterState int

const (
	unfiltered    filterState = iota // no filter set
	filtering                        // user is actively setting a filter
	filterApplied                    // a filter is applied and user is not editing filter
)

type stashModel struct {
	common      *commonModel
	err         error
	spinner     spinner.Model
	filterInput textinput.Model
	viewState   stashViewState
	filterState filterState

	// Whether the file search has finished.
	loaded bool

	// Every note we've found.
	markdowns []*markdown

	// Notes matching the current filter.
	filteredMarkdowns []*markdown

	cursor int // index into the visible notes
	offset int // first visible note
}

func newStashModel(common *commonModel) stashModel {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	si := textinput.New()
	si.Prompt = "Find: "
	si.PromptStyle = lipgloss.NewStyle().Foreground(yellow)
	si.Cursor.Style = lipgloss.NewStyle().Foreground(fuchsia)
	si.CharLimit = 160

	return stashModel{
		common:      common,
		spinner:     sp,
		filterInput: si,
	}
}

func (m *stashModel) setSize(width, _ int) {
	m.filterInput.Width = max(0, width-lipgloss.Width(m.filterInput.Prompt)-4)
	m.clampCursor()
}

func (m stashModel) perPage() int {
	return max(1, (m.common.height-stashHeaderHeight-stashFooterHeight)/stashItemHeight)
}

func (m stashModel) shouldSpin() bool {
	return !m.loaded || m.viewState == stashStateLoadingDocument
}

func (m stashModel) filterApplied() bool {
	return m.filterState != unfiltered
}

// shouldUpdateFilter reports whether new notes must be run through the
// filter before they show up.
func (m stashModel) shouldUpdateFilter() bool {
	return m.filterApplied() && m.filterInput.Value() != ""
}

func (m *stashModel) addMarkdowns(mds ...*markdown) {
	if len(mds) == 0 {
		return
	}
	m.markdowns = append(m.markdowns, mds...)
	if !m.filterApplied() {
		sortMarkdowns(m.markdowns)
	}
}

// getVisibleMarkdowns returns the notes currently listed.
func (m stashModel) getVisibleMarkdowns() []*markdown {
	if m.shouldUpdateFilter() {
		return m.filteredMarkdowns
	}
	return m.markdowns
}

func (m stashModel) selectedMarkdown() *markdown {
	mds := m.getVisibleMarkdowns()
	if m.cursor < 0 || m.cursor >= len(mds) {
		return nil
	}
	return mds[m.cursor]
}

func (m *stashModel) clampCursor() {
	n := len(m.getVisibleMarkdowns())
	m.cursor = max(0, min(m.cursor, n-1))
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if per := m.perPage(); m.cursor >= m.offset+per {
		m.offset = m.cursor - per + 1
	}
}

func (m *stashModel) resetFiltering() {
	m.filterState = unfiltered
	m.filterInput.Reset()
	m.filteredMarkdowns = nil
	sortMarkdowns(m.markdowns)
	m.cursor, m.offset = 0, 0
}

func (m stashModel) update(msg tea.Msg) (stashModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case errMsg:
		m.err = msg

	case localFileSearchFinished:
		m.loaded = true

	case filteredMarkdownMsg:
		m.filteredMarkdowns = msg
		m.clampCursor()
		return m, nil

	case spinner.TickMsg:
		if m.shouldSpin() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.filterState == filtering {
		cmds = append(cmds, m.handleFiltering(msg))
	} else {
		cmds = append(cmds, m.handleDocumentBrowsing(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *stashModel) handleDocumentBrowsing(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.viewState != stashStateReady {
		return nil
	}

	switch keyMsg.String() {
	case "k", "ctrl+k", "up", "shift+tab":
		m.cursor--
		m.clampCursor()

	case "j", "ctrl+j", "down", "tab":
		m.cursor++
		m.clampCursor()

	case "home", "g":
		m.cursor = 0
		m.clampCursor()

	case "end", "G":
		m.cursor = len(m.getVisibleMarkdowns()) - 1
		m.clampCursor()

	case keyEsc:
		if m.filterApplied() {
			m.resetFiltering()
		}

	case "/":
		m.filterState = filtering
		m.filterInput.CursorEnd()
		return m.filterInput.Focus()

	case "enter":
		md := m.selectedMarkdown()
		if md == nil {
			break
		}
		m.viewState = stashStateLoadingDocument
		log.Debug("opening note", "path", md.localPath)
		return tea.Batch(loadLocalMarkdown(md), m.spinner.Tick)
	}
	return nil
}

func (m *stashModel) handleFiltering(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case keyEsc:
			m.resetFiltering()
			m.filterInput.Blur()
			return nil
		case "enter", "tab", "shift+tab", "ctrl+k", "up", "ctrl+j", "down":
			m.filterInput.Blur()
			h := m.getVisibleMarkdowns()
			if len(h) == 0 || m.filterInput.Value() == "" {
				m.resetFiltering()
				return nil
			}
			m.filterState = filterApplied
			return nil
		}
	}

	// Update the filter text input component
	newFilterInputModel, inputCmd := m.filterInput.Update(msg)
	currentFilterVal := m.filterInput.Value()
	newFilterVal := newFilterInputModel.Value()
	m.filterInput = newFilterInputModel
	cmds = append(cmds, inputCmd)

	// If the filtering input has changed, request updated filtering
	if newFilterVal != currentFilterVal {
		m.cursor, m.offset = 0, 0
		for _, md := range m.markdowns {
			md.buildFilterValue()
		}
		cmds = append(cmds, filterMarkdowns(*m))
	}

	return tea.Batch(cmds...)
}

func (m stashModel) view() string {
	var b strings.Builder

	mds := m.getVisibleMarkdowns()

	// Header
	header := logoView() + " "
	switch {
	case m.err != nil:
		header += errorTitleStyle.Render(m.err.Error())
	case m.viewState == stashStateLoadingDocument:
		header += m.spinner.View() + dimStyle.Render(" Loading note…")
	case !m.loaded:
		header += m.spinner.View() + dimStyle.Render(" Looking for notes…")
	case len(m.markdowns) == 0:
		header += dimStyle.Render("No notes found.")
	default:
		header += dimStyle.Render(fmt.Sprintf("%d %s", len(m.markdowns), plural(len(m.markdowns), "note", "notes")))
	}
	fmt.Fprintf(&b, "\n  %s\n\n", header)

	// Items
	per := m.perPage()
	end := min(len(mds), m.offset+per)
	width := uint(max(0, m.common.width-6)) //nolint:gosec
	for i := m.offset; i < end; i++ {
		md := mds[i]
		title := truncate.StringWithTail(md.Note, width, ellipsis)
		date := md.relativeTime()
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(title) + "\n")
			b.WriteString(selectedStyle.Foreground(normalDim).BorderForeground(fuchsia).Render(date) + "\n\n")
		} else {
			b.WriteString(unselectedStyle.Render(title) + "\n")
			b.WriteString(unselectedStyle.Foreground(midGray).Render(date) + "\n\n")
		}
	}

	// Footer
	if m.filterState == filtering {
		b.WriteString("  " + m.filterInput.View())
	} else {
		help := "j/k navigate • enter open • / find • v voices • q quit"
		if m.filterApplied() {
			help = fmt.Sprintf("“%s” • esc clear • ", m.filterInput.Value()) + help
		}
		b.WriteString("  " + subtleStyle.Render(help))
	}

	return b.String()
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

// COMMANDS

func filterMarkdowns(m stashModel) tea.Cmd {
	return func() tea.Msg {
		if m.filterInput.Value() == "" || !m.filterApplied() {
			return filteredMarkdownMsg(m.markdowns) // return everything
		}

		targets := []string{}
		mds := m.markdowns

		for _, t := range mds {
			targets = append(targets, t.filterValue)
		}

		ranks := fuzzy.Find(m.filterInput.Value(), targets)
		sort.Stable(ranks)

		filtered := []*markdown{}
		for _, r := range ranks {
			filtered = append(filtered, mds[r.Index])
		}

		return filteredMarkdownMsg(filtered)
	}
}
