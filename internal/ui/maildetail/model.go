package maildetail

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/keys"
	"github.com/ajanik/maildeck/internal/mailstore"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DetailLoadedMsg carries the loaded message detail. Detail is nil when
// the fetch failed or was superseded by a newer selection.
type DetailLoadedMsg struct {
	Detail *model.MessageDetail
	Err    error
}

// ReplyMsg asks the parent to open a reply draft for the shown message.
type ReplyMsg struct {
	Summary model.MessageSummary
}

// FlagUpdatedMsg is sent when a read/star mutation has settled.
type FlagUpdatedMsg struct {
	Err error
}

// Model is the message detail view component.
type Model struct {
	detail   *model.MessageDetail
	viewport viewport.Model
	store    *mailstore.Store
	sess     *session.Session
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(s *mailstore.Store, k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		store:    s,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetSession sets the session used for all backend calls.
func (m *Model) SetSession(sess *session.Session) {
	m.sess = sess
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Load returns a command that fetches the detail for id and, once it
// arrives, marks the message read.
func (m Model) Load(id int64) tea.Cmd {
	store := m.store
	sess := m.sess
	return func() tea.Msg {
		detail, err := store.SelectDetail(context.Background(), sess, id)
		if err != nil {
			return DetailLoadedMsg{Err: err}
		}
		if detail != nil && !detail.IsRead {
			// Opening a message marks it read; only the acknowledged
			// flag is displayed, so a failure here just leaves the
			// message unread.
			if err := store.SetRead(
				context.Background(), sess, id, true,
			); err == nil {
				detail = store.Selected()
			}
		}
		return DetailLoadedMsg{Detail: detail}
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		m.loading = false
		if msg.Err == nil && msg.Detail != nil {
			m.detail = msg.Detail
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoTop()
		}
		return m, nil

	case FlagUpdatedMsg:
		if msg.Err == nil {
			m.detail = m.store.Selected()
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Reply):
			if m.detail != nil {
				summary := m.detail.MessageSummary
				return m, func() tea.Msg {
					return ReplyMsg{Summary: summary}
				}
			}

		case key.Matches(msg, m.keys.ToggleStar):
			if m.detail != nil {
				return m, m.setStarred(!m.detail.IsStarred)
			}

		case key.Matches(msg, m.keys.ToggleRead):
			if m.detail != nil {
				return m, m.setRead(!m.detail.IsRead)
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return loadingStyle.Render("Loading message...")
	}

	if m.detail == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.detail == nil {
		return ""
	}

	d := m.detail
	var sections []string

	// Subject
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	subject := d.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	if d.IsStarred {
		subject = theme.StarStyle.Render("★ ") + subject
	}
	sections = append(sections, titleStyle.Render(subject))

	if d.AICategory != "" {
		badge := theme.CategoryStyle(d.AICategory).
			Render(strings.ToUpper(d.AICategory))
		sections = append(sections, badge)
	}
	sections = append(sections, "")

	// Metadata
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	from := d.FromAddress
	if d.FromName != "" {
		from = fmt.Sprintf("%s <%s>", d.FromName, d.FromAddress)
	}
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("From:"),
		valStyle.Render(from),
	))
	if d.ToAddress != "" {
		sections = append(sections, fmt.Sprintf(
			"%s    %s",
			metaStyle.Render("To:"),
			valStyle.Render(d.ToAddress),
		))
	}
	if !d.ReceivedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Date:"),
			valStyle.Render(d.ReceivedAt.Format("2006-01-02 15:04")),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))

	// AI summary block, when the backend produced one.
	if d.AISummary != "" {
		sections = append(sections, "")
		sections = append(sections, separator)
		sections = append(sections,
			theme.SummaryStyle.Render("Summary: "+d.AISummary))
	}

	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	body := d.BodyText
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No body text")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// setStarred issues the star mutation for the shown message.
func (m Model) setStarred(isStarred bool) tea.Cmd {
	store := m.store
	sess := m.sess
	id := m.detail.ID
	return func() tea.Msg {
		err := store.SetStarred(context.Background(), sess, id, isStarred)
		return FlagUpdatedMsg{Err: err}
	}
}

// setRead issues the read mutation for the shown message.
func (m Model) setRead(isRead bool) tea.Cmd {
	store := m.store
	sess := m.sess
	id := m.detail.ID
	return func() tea.Msg {
		err := store.SetRead(context.Background(), sess, id, isRead)
		return FlagUpdatedMsg{Err: err}
	}
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Clear drops the shown detail when leaving the view.
func (m *Model) Clear() {
	m.detail = nil
	m.store.ClearSelection()
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
