// Package app hosts the root Bubble Tea model: view routing, the auth
// gate, and the glue between the mail store, the push channel, and the
// individual views.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ajanik/maildeck/internal/api"
	"github.com/ajanik/maildeck/internal/credential"
	"github.com/ajanik/maildeck/internal/keys"
	"github.com/ajanik/maildeck/internal/mailstore"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/push"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/internal/ui"
	"github.com/ajanik/maildeck/internal/ui/accounts"
	"github.com/ajanik/maildeck/internal/ui/command"
	"github.com/ajanik/maildeck/internal/ui/composeform"
	helpview "github.com/ajanik/maildeck/internal/ui/help"
	"github.com/ajanik/maildeck/internal/ui/login"
	"github.com/ajanik/maildeck/internal/ui/maildetail"
	"github.com/ajanik/maildeck/internal/ui/maillist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewDetail
	ViewCompose
	ViewAccounts
	ViewHelp
	ViewCommand
)

// syncReloadMsg fires when the post-sync reload delay has elapsed.
type syncReloadMsg struct{}

// sessionSavedMsg reports the outcome of persisting the session.
type sessionSavedMsg struct {
	err error
}

// sessionClearedMsg reports the outcome of removing the stored session.
type sessionClearedMsg struct {
	err error
}

// Model is the root Bubble Tea model. Every view except login stays
// unreachable until a valid session is held.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout

	client  *api.Client
	store   *mailstore.Store
	channel *push.Channel
	keys    *keys.KeyMap
	logger  zerolog.Logger

	sess *session.Session

	loginView    login.Model
	listView     maillist.Model
	detailView   maildetail.Model
	composeView  composeform.Model
	accountsView accounts.Model
	helpView     helpview.Model
	commandView  command.Model

	ready         bool
	statusText    string
	statusIsError bool
	newMailNotice string

	// initialCmd is the login form's init command when starting signed out.
	initialCmd tea.Cmd
}

// New creates the root model. A restored session (from the keyring)
// skips the login gate when still present and well-formed.
func New(
	cfg *model.AppConfig,
	restored *session.Session,
	logger zerolog.Logger,
) Model {
	client := api.NewClient(cfg.Server.BaseURL, logger)

	store := mailstore.New(
		client, logger,
		mailstore.WithSyncReloadDelay(
			time.Duration(cfg.Server.SyncReloadDelaySec)*time.Second,
		),
	)

	wsURL := cfg.Server.WebSocketURL
	if wsURL == "" {
		wsURL = deriveWebSocketURL(cfg.Server.BaseURL)
	}
	channel := push.New(wsURL, logger)

	k := keys.DefaultKeyMap()

	m := Model{
		client:       client,
		store:        store,
		channel:      channel,
		keys:         k,
		logger:       logger.With().Str("module", "app").Logger(),
		loginView:    login.New(client, 80, 24),
		listView:     maillist.New(store, k, 80, 24),
		detailView:   maildetail.New(store, k, 80, 24),
		composeView:  composeform.New(80, 24),
		accountsView: accounts.New(client, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
	}

	if restored != nil && restored.Valid() {
		m.setSession(restored)
		m.currentView = ViewList
	} else {
		m.currentView = ViewLogin
		m.initialCmd = m.loginView.Start()
	}

	return m
}

// deriveWebSocketURL maps the REST base URL onto the ws scheme.
func deriveWebSocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}

// setSession propagates the session to every view that talks to the
// backend.
func (m *Model) setSession(sess *session.Session) {
	m.sess = sess
	m.listView.SetSession(sess)
	m.detailView.SetSession(sess)
	m.composeView.SetSession(sess)
	m.accountsView.SetSession(sess)
}

// Init returns the initial commands: the login form when signed out, or
// the first list load plus the push subscription when a session was
// restored.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewLogin {
		return m.initialCmd
	}

	m.channel.Open(m.sess)
	return tea.Batch(
		m.listView.Init(),
		m.channel.WaitForEvent(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.loginView.SetSize(contentWidth, contentHeight)
		m.listView.SetSize(contentWidth, contentHeight)
		m.detailView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.accountsView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case login.LoginResultMsg:
		if msg.Err != nil {
			var cmd tea.Cmd
			m.loginView, cmd = m.loginView.Update(msg)
			return m, cmd
		}
		m.setSession(msg.Sess)
		m.currentView = ViewList
		m.statusText = ""
		m.statusIsError = false
		m.channel.Open(msg.Sess)
		return m, tea.Batch(
			m.saveSession(msg.Sess),
			m.listView.LoadList(),
			m.channel.WaitForEvent(),
		)

	case sessionSavedMsg:
		if msg.err != nil {
			// Not fatal; the session just won't survive a restart.
			m.logger.Warn().Err(msg.err).Msg("saving session failed")
		}
		return m, nil

	case sessionClearedMsg:
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Msg("clearing session failed")
		}
		return m, nil

	case maillist.ListLoadedMsg:
		if msg.Err != nil {
			if cmd, signedOut := m.handleAuthError(msg.Err); signedOut {
				return m, cmd
			}
			m.setError(msg.Err)
		} else {
			m.clearStatus()
		}
		var cmd tea.Cmd
		m.listView, cmd = m.listView.Update(msg)
		return m, cmd

	case maillist.SelectedMailMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detailView.SetLoading(true)
		return m, m.detailView.Load(msg.ID)

	case maillist.ReplyMsg:
		m.previousView = ViewList
		m.currentView = ViewCompose
		return m, m.composeView.StartReply(m.client, msg.Summary)

	case maillist.SyncStartedMsg:
		if msg.Err != nil {
			if cmd, signedOut := m.handleAuthError(msg.Err); signedOut {
				return m, cmd
			}
			m.setError(msg.Err)
			return m, nil
		}
		m.statusText = "Syncing providers..."
		m.statusIsError = false
		return m, tea.Tick(
			m.store.SyncReloadDelay(),
			func(time.Time) tea.Msg { return syncReloadMsg{} },
		)

	case syncReloadMsg:
		m.clearStatus()
		return m, m.listView.LoadList()

	case maillist.FlagUpdatedMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		var cmd tea.Cmd
		m.listView, cmd = m.listView.Update(msg)
		return m, cmd

	case maildetail.DetailLoadedMsg:
		if msg.Err != nil {
			if cmd, signedOut := m.handleAuthError(msg.Err); signedOut {
				return m, cmd
			}
			m.setError(msg.Err)
		}
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		// The read flag may have changed; re-render the list rows from
		// the store.
		var listCmd tea.Cmd
		m.listView, listCmd = m.listView.Update(maillist.ListLoadedMsg{})
		return m, tea.Batch(cmd, listCmd)

	case maildetail.FlagUpdatedMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		var listCmd tea.Cmd
		m.listView, listCmd = m.listView.Update(maillist.ListLoadedMsg{})
		return m, tea.Batch(cmd, listCmd)

	case maildetail.BackMsg:
		m.detailView.Clear()
		m.currentView = ViewList
		return m, nil

	case maildetail.ReplyMsg:
		m.previousView = ViewDetail
		m.currentView = ViewCompose
		return m, m.composeView.StartReply(m.client, msg.Summary)

	case composeform.SentMsg:
		m.currentView = ViewList
		m.statusText = "Message sent"
		m.statusIsError = false
		return m, m.listView.LoadList()

	case composeform.CancelMsg:
		m.currentView = m.previousView
		if m.currentView == ViewCompose {
			m.currentView = ViewList
		}
		return m, nil

	case accounts.BackMsg:
		m.currentView = ViewList
		return m, nil

	case push.EventMsg:
		if data, ok := msg.Event.NewMail(); ok {
			m.newMailNotice = fmt.Sprintf(
				"New mail from %s: %s", data.FromAddress, data.Subject,
			)
			return m, tea.Batch(
				m.listView.LoadList(),
				m.channel.WaitForEvent(),
			)
		}
		// Unknown event types are ignored; keep listening.
		return m, m.channel.WaitForEvent()

	case push.ClosedMsg:
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.KeyMsg:
		m.newMailNotice = ""
		if handled, mdl, cmd := m.handleGlobalKeys(msg); handled {
			return mdl, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that work across views. The boolean
// reports whether the key was consumed.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	// Views with focused text inputs get every key except ctrl chords.
	// The list view counts as typing while its search input has focus.
	searching := m.currentView == ViewList && m.listView.Searching()
	typing := searching ||
		m.currentView == ViewLogin ||
		m.currentView == ViewCompose ||
		m.currentView == ViewAccounts ||
		m.currentView == ViewCommand

	switch msg.String() {
	case "ctrl+c":
		m.channel.Close()
		return true, m, tea.Quit

	case "ctrl+o":
		if m.currentView != ViewLogin {
			mdl, cmd := m.signOut("")
			return true, mdl, cmd
		}

	case "q":
		if m.currentView == ViewList && !searching {
			m.channel.Close()
			return true, m, tea.Quit
		}

	case "?":
		if typing {
			break
		}
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return true, m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return true, m, nil

	case ":":
		if typing {
			break
		}
		if m.currentView == ViewCommand {
			m.currentView = m.previousView
			return true, m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return true, m, m.commandView.Focus()

	case "esc":
		if m.currentView == ViewHelp || m.currentView == ViewCommand {
			m.currentView = m.previousView
			return true, m, nil
		}

	case "c":
		if m.currentView == ViewList && !searching {
			m.previousView = m.currentView
			m.currentView = ViewCompose
			return true, m, m.composeView.StartCompose(m.client)
		}

	case "A":
		if m.currentView == ViewList && !searching {
			m.previousView = m.currentView
			m.currentView = ViewAccounts
			return true, m, m.accountsView.Start()
		}
	}

	return false, m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		m.listView, cmd = m.listView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewAccounts:
		m.accountsView, cmd = m.accountsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.connStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusBarText(), m.statusIsError)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewList:
		return m.listView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewCompose:
		return m.composeView.View()
	case ViewAccounts:
		return m.accountsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// headerTitle includes the unread count when mail is loaded.
func (m Model) headerTitle() string {
	if m.sess == nil {
		return "Maildeck"
	}
	if unread := m.store.UnreadCount(); unread > 0 {
		return fmt.Sprintf("Maildeck [%d unread]", unread)
	}
	return "Maildeck"
}

// connStatus describes the push channel for the header.
func (m Model) connStatus() string {
	if m.sess == nil {
		return "signed out"
	}
	switch m.channel.State() {
	case push.StateConnected:
		return "● live"
	case push.StateConnecting:
		return "connecting"
	default:
		return "offline"
	}
}

// statusBarText picks the most relevant line for the bottom bar.
func (m Model) statusBarText() string {
	if m.statusIsError {
		return m.statusText
	}
	if m.newMailNotice != "" {
		return m.newMailNotice
	}
	if m.statusText != "" {
		return m.statusText
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter submit | ctrl+r register | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close | enter execute | esc back"
	case ViewDetail:
		return "esc back | R reply | s star | m read | j/k scroll"
	case ViewCompose:
		return "tab next field | ctrl+s send | ctrl+q quick replies | ctrl+t tone | esc cancel"
	case ViewAccounts:
		return "a add | t test | d delete | esc back"
	default:
		if filterSummary := m.listView.FilterSummary(); filterSummary != "" {
			return filterSummary + " | / search | tab category | esc clear"
		}
		return "q quit | ? help | c compose | / search | tab category | S sync"
	}
}

// handleAuthError forces a sign-out when the backend rejected the
// session token. The boolean reports whether that happened.
func (m *Model) handleAuthError(err error) (tea.Cmd, bool) {
	if !api.IsAuthError(err) {
		return nil, false
	}
	m.logger.Warn().Err(err).Msg("session rejected by backend")
	mdl, cmd := m.signOut("Session expired, sign in again")
	*m = mdl
	return cmd, true
}

// signOut closes the push channel, forgets the session, clears the
// stored credential, and returns to the login gate.
func (m Model) signOut(notice string) (Model, tea.Cmd) {
	m.channel.Close()
	m.sess = nil
	m.currentView = ViewLogin
	m.statusText = notice
	m.statusIsError = notice != ""

	startCmd := m.loginView.Start()
	return m, tea.Batch(startCmd, clearSession())
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "reload":
		return m.listView.LoadList()
	case "sync":
		store := m.store
		sess := m.sess
		return func() tea.Msg {
			err := store.TriggerSync(context.Background(), sess)
			return maillist.SyncStartedMsg{Err: err}
		}
	case "compose", "new":
		m.previousView = m.currentView
		m.currentView = ViewCompose
		return m.composeView.StartCompose(m.client)
	case "accounts":
		m.previousView = m.currentView
		m.currentView = ViewAccounts
		return m.accountsView.Start()
	case "signout", "logout":
		mdl, c := m.signOut("")
		*m = mdl
		return c
	case "quit", "q":
		m.channel.Close()
		return tea.Quit
	default:
		m.statusText = "Unknown command: " + cmd
		m.statusIsError = true
		return nil
	}
}

func (m *Model) setError(err error) {
	m.statusText = err.Error()
	m.statusIsError = true
}

func (m *Model) clearStatus() {
	if m.statusIsError {
		m.statusText = ""
		m.statusIsError = false
	}
}

// saveSession persists the session so restarts skip the login gate.
func (m Model) saveSession(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		return sessionSavedMsg{err: credential.SaveSession(sess)}
	}
}

func clearSession() tea.Cmd {
	return func() tea.Msg {
		return sessionClearedMsg{err: credential.ClearSession()}
	}
}
