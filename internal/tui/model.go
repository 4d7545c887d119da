// Package tui is a small Bubble Tea browser over the two retrieval
// surfaces: free-text search across change records and across events.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"specdiff/internal/domain"
)

// QueryPort is the TUI-facing subset of the pipeline.
type QueryPort interface {
	QueryChanges(query string, topK int) ([]domain.ChangeHit, error)
	QueryEvents(query string, topK int) ([]domain.EventHit, error)
}

// mode selects which index a query goes to.
type mode int

const (
	modeChanges mode = iota
	modeEvents
)

func (m mode) String() string {
	if m == modeEvents {
		return "events"
	}
	return "changes"
}

// Model is the Bubble Tea model for the browser.
type Model struct {
	service  QueryPort
	input    textinput.Model
	viewport viewport.Model
	mode     mode
	header   string

	changeHits []domain.ChangeHit
	eventHits  []domain.EventHit
	cursor     int
	status     string
	ready      bool
}

// New creates a browser over the given query port. The versions map, if
// non-empty, is shown in the header.
func New(service QueryPort, versions map[string]string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter (tab switches changes/events)"
	ti.Focus()
	ti.CharLimit = 0
	header := "Spec Change Browser"
	if versions["old"] != "" || versions["new"] != "" {
		header += fmt.Sprintf("  %s → %s", versions["old"], versions["new"])
	}
	return Model{
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		header:   header,
		status:   "Indexes loaded. Type to search.",
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.mode == modeChanges {
				m.mode = modeEvents
			} else {
				m.mode = modeChanges
			}
			m.status = fmt.Sprintf("Searching %s.", m.mode)
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.runQuery(q)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "down":
			if n := m.resultCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if n := m.resultCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.header)
	modeLine := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("mode: " + m.mode.String())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + modeLine + "\n" + results + "\n" + input + "\n" + status
}

func (m *Model) runQuery(q string) {
	m.cursor = 0
	switch m.mode {
	case modeChanges:
		hits, err := m.service.QueryChanges(q, 10)
		if err != nil {
			m.status = "Error: " + err.Error()
			m.changeHits = nil
			return
		}
		m.changeHits = hits
		m.status = fmt.Sprintf("%d change results for %q", len(hits), q)
	case modeEvents:
		hits, err := m.service.QueryEvents(q, 10)
		if err != nil {
			m.status = "Error: " + err.Error()
			m.eventHits = nil
			return
		}
		m.eventHits = hits
		m.status = fmt.Sprintf("%d event results for %q", len(hits), q)
	}
}

func (m Model) resultCount() int {
	if m.mode == modeEvents {
		return len(m.eventHits)
	}
	return len(m.changeHits)
}

func (m Model) renderCurrent() string {
	if m.resultCount() == 0 {
		return "No results yet."
	}
	if m.mode == modeEvents {
		h := m.eventHits[m.cursor]
		title := fmt.Sprintf("Event %d/%d  distance=%.3f", m.cursor+1, len(m.eventHits), h.Score)
		label := labelStyle.Render(h.Event.Label)
		body := fmt.Sprintf("event_id: %d\nmembers: %d", h.Event.EventID, len(h.Event.Members))
		return title + "\n\n" + label + "\n" + body
	}
	h := m.changeHits[m.cursor]
	title := fmt.Sprintf("Change %d/%d  distance=%.3f", m.cursor+1, len(m.changeHits), h.Score)
	head := labelStyle.Render(fmt.Sprintf("[%s] section %s  chunk %s  sim=%.2f",
		h.Meta.ChangeType, h.Meta.SectionID, h.Meta.ChunkID, h.Meta.SimilarityScore))
	return title + "\n\n" + head + "\n" + h.Meta.Text
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
