package maillist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/keys"
	"github.com/ajanik/maildeck/internal/mailstore"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/internal/theme"
)

// ListLoadedMsg is sent when a list load has settled. A nil Err means
// the store now holds the fresh set.
type ListLoadedMsg struct {
	Err error
}

// SelectedMailMsg is sent when a user opens a message.
type SelectedMailMsg struct {
	ID int64
}

// ReplyMsg asks the parent to open a reply draft for the summary.
type ReplyMsg struct {
	Summary model.MessageSummary
}

// SyncStartedMsg tells the parent a backend sync was triggered so it can
// schedule the delayed list reload.
type SyncStartedMsg struct {
	Err error
}

// FlagUpdatedMsg is sent when a read/star mutation has settled.
type FlagUpdatedMsg struct {
	Err error
}

// categories cycled by Tab. Empty string shows all mail.
var categories = []string{
	model.CategoryAll,
	model.CategoryFocused,
	model.CategoryOther,
}

// Model is the message list view component.
type Model struct {
	list          list.Model
	store         *mailstore.Store
	sess          *session.Session
	keys          *keys.KeyMap
	categoryIndex int
	searchText    string
	searchMode    bool
	searchInput   textinput.Model
	width         int
	height        int
}

// New creates a new message list model.
func New(s *mailstore.Store, k *keys.KeyMap, width, height int) Model {
	delegate := ItemDelegate{}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search mail..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		store:       s,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetSession sets the session used for all backend calls. Must be
// called before any load.
func (m *Model) SetSession(sess *session.Session) {
	m.sess = sess
}

// Init returns a command that loads the initial message set.
func (m Model) Init() tea.Cmd {
	return m.LoadList()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ListLoadedMsg:
		if msg.Err != nil {
			return m, nil
		}
		summaries := m.store.Summaries()
		items := make([]list.Item, len(summaries))
		for i, s := range summaries {
			items[i] = MailItem{Summary: s}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case FlagUpdatedMsg:
		if msg.Err != nil {
			return m, nil
		}
		// Re-render from the store's acknowledged state.
		return m, func() tea.Msg { return ListLoadedMsg{} }

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	// Delegate to list model for other messages
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchText = m.searchInput.Value()
		return m, m.LoadList()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.searchText = ""
		return m, m.LoadList()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(MailItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMailMsg{ID: item.Summary.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleCategory):
		m.categoryIndex = (m.categoryIndex + 1) % len(categories)
		return m, m.LoadList()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.LoadList()

	case key.Matches(msg, m.keys.Sync):
		return m, m.triggerSync()

	case key.Matches(msg, m.keys.Reply):
		item, ok := m.list.SelectedItem().(MailItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return ReplyMsg{Summary: item.Summary}
		}

	case key.Matches(msg, m.keys.ToggleRead):
		item, ok := m.list.SelectedItem().(MailItem)
		if !ok {
			return m, nil
		}
		return m, m.setRead(item.Summary.ID, !item.Summary.IsRead)

	case key.Matches(msg, m.keys.ToggleStar):
		item, ok := m.list.SelectedItem().(MailItem)
		if !ok {
			return m, nil
		}
		return m, m.setStarred(item.Summary.ID, !item.Summary.IsStarred)
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the message list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no messages are available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.searchText != "" || m.category() != model.CategoryAll {
		return style.Render("No matching mail.\nTry adjusting your filter.")
	}

	return style.Render(
		"No mail yet.\n\n" +
			"Press S to sync your providers, or A to add an account.",
	)
}

// FilterSummary describes the active filter for the status bar.
func (m Model) FilterSummary() string {
	cat := m.category()
	switch {
	case cat != model.CategoryAll && m.searchText != "":
		return fmt.Sprintf("category:%s search:%q", cat, m.searchText)
	case cat != model.CategoryAll:
		return "category:" + cat
	case m.searchText != "":
		return fmt.Sprintf("search:%q", m.searchText)
	default:
		return ""
	}
}

// LoadList returns a tea.Cmd that loads the message list for the
// current category and search text.
func (m Model) LoadList() tea.Cmd {
	store := m.store
	sess := m.sess
	filter := mailstore.Filter{
		Category:   m.category(),
		SearchText: m.searchText,
	}
	return func() tea.Msg {
		err := store.LoadList(context.Background(), sess, filter)
		return ListLoadedMsg{Err: err}
	}
}

// triggerSync fires the backend provider sync.
func (m Model) triggerSync() tea.Cmd {
	store := m.store
	sess := m.sess
	return func() tea.Msg {
		err := store.TriggerSync(context.Background(), sess)
		return SyncStartedMsg{Err: err}
	}
}

// setRead issues the read-flag mutation through the store.
func (m Model) setRead(id int64, isRead bool) tea.Cmd {
	store := m.store
	sess := m.sess
	return func() tea.Msg {
		err := store.SetRead(context.Background(), sess, id, isRead)
		return FlagUpdatedMsg{Err: err}
	}
}

// setStarred issues the star-flag mutation through the store.
func (m Model) setStarred(id int64, isStarred bool) tea.Cmd {
	store := m.store
	sess := m.sess
	return func() tea.Msg {
		err := store.SetStarred(context.Background(), sess, id, isStarred)
		return FlagUpdatedMsg{Err: err}
	}
}

// Searching reports whether the search input currently has focus, so
// the parent can leave plain letter keys to it.
func (m Model) Searching() bool {
	return m.searchMode
}

func (m Model) category() string {
	return categories[m.categoryIndex]
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
