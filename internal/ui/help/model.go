package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/keys"
	"github.com/ajanik/maildeck/internal/theme"
)

// section is one titled group of shortcuts in the overlay.
type section struct {
	title    string
	bindings []key.Binding
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   keys,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// sections groups the keymap by mail workflow.
func (m Model) sections() []section {
	k := m.keys
	return []section{
		{"Navigation", []key.Binding{
			k.Up, k.Down, k.Select, k.Back, k.Quit,
		}},
		{"Inbox", []key.Binding{
			k.Search, k.CycleCategory, k.Refresh, k.Sync,
		}},
		{"Triage", []key.Binding{
			k.ToggleRead, k.ToggleStar,
		}},
		{"Compose", []key.Binding{
			k.Compose, k.Reply, k.QuickReply,
		}},
		{"Session", []key.Binding{
			k.Accounts, k.SignOut, k.Command, k.Help,
		}},
	}
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBlue)

	keyStyle := lipgloss.NewStyle().
		Foreground(theme.ColorYellow).
		Width(10)

	var parts []string
	parts = append(parts, titleStyle.Render("Keyboard Shortcuts"))

	for _, sec := range m.sections() {
		parts = append(parts, sectionStyle.Render(sec.title))
		for _, b := range sec.bindings {
			h := b.Help()
			parts = append(parts, fmt.Sprintf(
				"  %s %s", keyStyle.Render(h.Key), h.Desc,
			))
		}
		parts = append(parts, "")
	}

	// Row markers used by the inbox list.
	legend := theme.HelpStyle.Render(
		"○ unread   " +
			theme.StarStyle.Render("★") + " starred   " +
			theme.SummaryStyle.Render("·") + " AI summary",
	)
	parts = append(parts, legend)

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
