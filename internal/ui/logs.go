package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smarteating/tray/internal/logtail"
)

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

func loadLogsCmd(path string) tea.Cmd {
	if path == "" {
		return func() tea.Msg { return logsMsg{} }
	}
	return func() tea.Msg {
		entries, err := logtail.Read(path, LogTailLines)
		return logsMsg{entries: entries, err: err}
	}
}

// handleLogs swaps in a fresh tail, staying pinned to the bottom when the
// operator was already there.
func (m *Model) handleLogs(msg logsMsg) {
	m.logErr = msg.err
	if msg.err != nil {
		return
	}
	follow := m.logViewport.AtBottom() || len(m.logEntries) == 0
	m.logEntries = msg.entries
	m.logViewport.SetContent(m.renderLogContent())
	if follow {
		m.logViewport.GotoBottom()
	}
}

func (m *Model) resizeLogViewport() {
	m.logViewport.Width = max(m.width-4, 0)
	m.logViewport.Height = max(m.height-4, 0)
	m.logViewport.SetContent(m.renderLogContent())
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if len(m.logEntries) == 0 {
		return styles.MutedText.Render("Nenhum registro ainda")
	}
	lines := make([]string, len(m.logEntries))
	width := max(m.logViewport.Width, 20)
	for i, e := range m.logEntries {
		text := truncate(e.String(), width)
		switch strings.ToUpper(e.Level) {
		case "ERROR":
			lines[i] = styles.DangerText.Render(text)
		case "WARN":
			lines[i] = styles.WarningText.Render(text)
		case "DEBUG":
			lines[i] = styles.FaintText.Render(text)
		default:
			lines[i] = styles.Text.Render(text)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLogs() string {
	title := "Logs"
	if m.logPath != "" {
		title = "Logs " + truncateMiddle(m.logPath, max(m.width-12, 10))
	}
	content := m.logViewport.View()
	if m.logErr != nil {
		content = m.theme.Styles().DangerText.Render(m.logErr.Error())
	} else if m.logPath == "" {
		content = m.theme.Styles().MutedText.Render("Registrando em stderr")
	}
	return m.renderTitledBox(title, content, m.width, max(m.height-2, 0), true)
}

// handleLogsKey scrolls the logs pane.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.logViewport.LineDown(1)
	case key.Matches(msg, m.keys.Up):
		m.logViewport.LineUp(1)
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.ViewDown()
	case key.Matches(msg, m.keys.PageUp):
		m.logViewport.ViewUp()
	}
	return m, nil
}
