// ABOUTME: Interactive property search screen with text and voice input modes.
// ABOUTME: Searches, listening, and indexing run as tea.Cmds off the update loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/propsearch/internal/models"
	"github.com/2389-research/propsearch/internal/voice"
)

// Searcher is the search-and-speak cycle the screen drives.
type Searcher interface {
	Ready(ctx context.Context) error
	SearchAndSpeak(ctx context.Context, query string) ([]models.SearchResult, error)
	Listen(ctx context.Context) (string, error)
	StopSpeaking()
	Size() int
}

// InputMode selects how queries are entered.
type InputMode int

const (
	ModeText InputMode = iota
	ModeVoice
)

func (m InputMode) String() string {
	if m == ModeVoice {
		return "Voice"
	}
	return "Text"
}

type phase int

const (
	phaseIndexing phase = iota
	phaseIdle
	phaseSearching
	phaseListening
)

type readyMsg struct{ err error }

type resultsMsg struct {
	query   string
	results []models.SearchResult
	err     error
}

type heardMsg struct {
	text string
	err  error
}

var (
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	heardStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("111"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// SearchModel is the bubbletea model for the search screen.
type SearchModel struct {
	searcher Searcher
	ctx      context.Context
	stop     *cancelHolder

	input   textinput.Model
	spinner spinner.Model
	mode    InputMode
	phase   phase

	query   string
	heard   string
	results []models.SearchResult
	notice  string
	err     error
}

// NewSearchModel creates the search screen. Indexing starts with Init.
func NewSearchModel(searcher Searcher) SearchModel {
	ctx, cancel := context.WithCancel(context.Background())

	in := textinput.New()
	in.Placeholder = "e.g. 2BHK apartment near park"
	in.Prompt = "Enter your search query: "
	in.Focus()
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot

	return SearchModel{
		searcher: searcher,
		ctx:      ctx,
		stop:     &cancelHolder{cancel: cancel},
		input:    in,
		spinner:  s,
		phase:    phaseIndexing,
	}
}

// Init implements tea.Model.
func (m SearchModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.prepare())
}

func (m SearchModel) prepare() tea.Cmd {
	ctx, searcher := m.ctx, m.searcher
	return func() tea.Msg {
		return readyMsg{err: searcher.Ready(ctx)}
	}
}

func (m SearchModel) search(query string) tea.Cmd {
	ctx, searcher := m.ctx, m.searcher
	return func() tea.Msg {
		results, err := searcher.SearchAndSpeak(ctx, query)
		return resultsMsg{query: query, results: results, err: err}
	}
}

func (m SearchModel) listen() tea.Cmd {
	ctx, searcher := m.ctx, m.searcher
	return func() tea.Msg {
		text, err := searcher.Listen(ctx)
		return heardMsg{text: text, err: err}
	}
}

// Update implements tea.Model.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.quit()
			return m, tea.Quit
		}
		m.phase = phaseIdle
		m.notice = fmt.Sprintf("Indexed %d listings.", m.searcher.Size())
		return m, nil

	case resultsMsg:
		m.phase = phaseIdle
		m.query = msg.query
		if msg.err != nil {
			m.results = nil
			m.notice = fmt.Sprintf("Search failed: %v", msg.err)
			return m, nil
		}
		m.results = msg.results
		m.notice = ""
		if len(msg.results) == 0 {
			m.notice = "No matches."
		}
		return m, nil

	case heardMsg:
		if msg.err != nil {
			m.phase = phaseIdle
			m.notice = voice.Notice(msg.err)
			return m, nil
		}
		m.heard = msg.text
		m.notice = ""
		m.phase = phaseSearching
		return m, tea.Batch(m.search(msg.text), m.spinner.Tick)

	case spinner.TickMsg:
		if m.phase != phaseIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SearchModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEscape:
		m.quit()
		return m, tea.Quit

	case tea.KeyCtrlS:
		m.searcher.StopSpeaking()
		m.notice = "Stopped speaking."
		return m, nil

	case tea.KeyTab:
		if m.mode == ModeText {
			m.mode = ModeVoice
			m.input.Blur()
			return m, nil
		}
		m.mode = ModeText
		m.input.Focus()
		return m, textinput.Blink

	case tea.KeyEnter:
		if m.phase != phaseIdle {
			return m, nil
		}
		if m.mode == ModeVoice {
			m.phase = phaseListening
			m.heard = ""
			m.notice = ""
			return m, tea.Batch(m.listen(), m.spinner.Tick)
		}
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.phase = phaseSearching
		m.heard = ""
		m.notice = ""
		return m, tea.Batch(m.search(query), m.spinner.Tick)
	}

	if m.mode != ModeText {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// quit cancels in-flight work and silences narration.
func (m SearchModel) quit() {
	if m.stop.cancel != nil {
		m.stop.cancel()
	}
	m.searcher.StopSpeaking()
}

// View implements tea.Model.
func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   PROPSEARCH"))
	b.WriteString(titleStyle.Render(" - Property Search"))
	b.WriteString("\n\n")

	if m.phase == phaseIndexing {
		b.WriteString(m.spinner.View())
		b.WriteString(" Indexing listings...\n")
		return b.String()
	}

	b.WriteString(stepStyle.Render(fmt.Sprintf("Input mode: %s", m.mode)))
	b.WriteString("\n")
	if m.mode == ModeText {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(promptStyle.Render("Press Enter and speak your query."))
	}
	b.WriteString("\n\n")

	switch m.phase {
	case phaseSearching:
		b.WriteString(m.spinner.View())
		b.WriteString(" Searching...\n\n")
	case phaseListening:
		b.WriteString(m.spinner.View())
		b.WriteString(" Listening...\n\n")
	}

	if m.heard != "" {
		b.WriteString(heardStyle.Render(fmt.Sprintf("You said: %s", m.heard)))
		b.WriteString("\n\n")
	}

	if len(m.results) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Top matches for %q:", m.query)))
		b.WriteString("\n")
		for i, r := range m.results {
			b.WriteString(resultStyle.Render(fmt.Sprintf("%d. %s", i+1, r.Listing.CombinedProperty)))
			b.WriteString("\n")
			b.WriteString(scoreStyle.Render(fmt.Sprintf("   Similarity Score: %s", r.FormattedScore())))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("enter search • tab switch mode • ctrl+s stop speaking • esc quit"))
	b.WriteString("\n")
	return b.String()
}

// Err returns the startup failure that ended the program, if any.
func (m SearchModel) Err() error {
	return m.err
}
