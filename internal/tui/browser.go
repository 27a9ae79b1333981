package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/loocor/codmate/internal/services"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Browser is an interactive session list: navigate stored agent sessions,
// read their annotations, and add new ones.
type Browser struct {
	store *services.SessionStore
}

// NewBrowser creates a session browser over the store
func NewBrowser(store *services.SessionStore) *Browser {
	return &Browser{store: store}
}

// Run starts the interactive browser and blocks until it exits
func (b *Browser) Run() error {
	program := tea.NewProgram(newBrowserModel(b.store), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type browserModel struct {
	store    *services.SessionStore
	sessions []*services.SessionState
	cursor   int

	annotating bool
	input      textinput.Model

	showDetail bool
	detail     string

	width  int
	height int
	err    error
}

func newBrowserModel(store *services.SessionStore) browserModel {
	input := textinput.New()
	input.Placeholder = "Add a note..."
	input.CharLimit = 200

	return browserModel{
		store:    store,
		sessions: store.List(),
		input:    input,
	}
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.annotating {
			return m.updateAnnotating(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m browserModel) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.showDetail = false

	case "down", "j":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
		m.showDetail = false

	case "enter":
		if len(m.sessions) > 0 {
			m.showDetail = !m.showDetail
			if m.showDetail {
				m.detail = renderDetail(m.sessions[m.cursor])
			}
		}

	case "a":
		if len(m.sessions) > 0 {
			m.annotating = true
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		}

	case "r":
		m.sessions = m.store.List()
		if m.cursor >= len(m.sessions) && m.cursor > 0 {
			m.cursor = len(m.sessions) - 1
		}
	}
	return m, nil
}

func (m browserModel) updateAnnotating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.annotating = false
		m.input.Blur()
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		m.annotating = false
		m.input.Blur()

		if text != "" && len(m.sessions) > 0 {
			if err := m.store.Annotate(m.sessions[m.cursor].ID, text); err != nil {
				m.err = err
			} else {
				m.sessions = m.store.List()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CodMate Sessions"))
	b.WriteString("\n\n")

	if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("No stored sessions yet."))
		b.WriteString("\n")
	}

	for i, session := range m.sessions {
		line := formatSessionLine(session)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.showDetail && len(m.sessions) > 0 {
		b.WriteString("\n")
		b.WriteString(m.detail)
	}

	if m.annotating {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("enter to save, esc to cancel"))
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("j/k navigate · enter details · a annotate · r refresh · q quit"))
	return b.String()
}

func formatSessionLine(session *services.SessionState) string {
	title := session.Title
	if title == "" {
		title = "(untitled)"
	}

	notes := ""
	if n := len(session.Annotations); n > 0 {
		notes = fmt.Sprintf(" [%d notes]", n)
	}

	return fmt.Sprintf("%-20s %s%s  %s",
		session.Agent+":"+shortID(session.ID), title, notes,
		session.LastAccess.Format("2006-01-02 15:04"))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderDetail builds the markdown detail card for a session and renders
// it through glamour; on render failure the raw markdown is shown.
func renderDetail(session *services.SessionState) string {
	var md strings.Builder
	fmt.Fprintf(&md, "## %s\n\n", session.ID)
	fmt.Fprintf(&md, "- **Agent:** %s\n", session.Agent)
	fmt.Fprintf(&md, "- **Directory:** %s\n", session.WorkingDirectory)
	fmt.Fprintf(&md, "- **Created:** %s\n\n", session.CreatedAt.Format("2006-01-02 15:04"))

	if len(session.Annotations) > 0 {
		md.WriteString("### Notes\n\n")
		for _, note := range session.Annotations {
			fmt.Fprintf(&md, "- %s _(%s)_\n", note.Text, note.CreatedAt.Format("Jan 2 15:04"))
		}
	}

	rendered, err := glamour.Render(md.String(), "dark")
	if err != nil {
		return md.String()
	}
	return rendered
}
