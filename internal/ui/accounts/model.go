package accounts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/api"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/internal/theme"
)

// BackMsg signals the parent to leave the accounts view.
type BackMsg struct{}

// loadedMsg carries the fetched provider accounts.
type loadedMsg struct {
	accounts []model.Account
	err      error
}

// savedMsg is sent after an add attempt.
type savedMsg struct {
	err error
}

// deletedMsg is sent after a delete attempt.
type deletedMsg struct {
	err error
}

// testedMsg is sent after a connectivity test.
type testedMsg struct {
	err error
}

// mode switches between the account list and the add form.
type mode int

const (
	modeList mode = iota
	modeAdd
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	emailAddress string
	accountType  string
	imapServer   string
	imapPort     string
	imapUsername string
	imapPassword string
	smtpServer   string
	smtpPort     string
}

// Model manages the backend's provider accounts: listing, adding,
// testing connectivity, and removing them.
type Model struct {
	client *api.Client
	sess   *session.Session

	accounts []model.Account
	cursor   int
	mode     mode
	form     *huh.Form
	fb       *formBindings

	busy       bool
	statusText string
	errText    string

	width  int
	height int
}

// New creates a new accounts model.
func New(client *api.Client, width, height int) Model {
	return Model{
		client: client,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetSession sets the session used for all backend calls.
func (m *Model) SetSession(sess *session.Session) {
	m.sess = sess
}

// Start resets the view and loads the account list.
func (m *Model) Start() tea.Cmd {
	m.mode = modeList
	m.cursor = 0
	m.statusText = ""
	m.errText = ""
	m.busy = false
	return m.load()
}

// Update handles messages for the accounts view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.accounts = msg.accounts
		if m.cursor >= len(m.accounts) {
			m.cursor = max(0, len(m.accounts)-1)
		}
		return m, nil

	case savedMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.statusText = "Account added"
		m.mode = modeList
		return m, m.load()

	case deletedMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.statusText = "Account removed"
		return m, m.load()

	case testedMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = "Connection test failed: " + msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.statusText = "Connection OK"
		return m, nil

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if m.mode == modeAdd {
			return m.updateForm(msg)
		}
		return m.handleListKeys(msg)
	}

	if m.mode == modeAdd {
		return m.updateForm(msg)
	}
	return m, nil
}

// handleListKeys processes key input while showing the account list.
func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		return m, func() tea.Msg { return BackMsg{} }

	case "j", "down":
		if m.cursor < len(m.accounts)-1 {
			m.cursor++
		}

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "a":
		return m, m.startAdd()

	case "r":
		return m, m.load()

	case "t":
		if acct, ok := m.selected(); ok {
			m.busy = true
			m.statusText = "Testing connection..."
			return m, m.test(acct)
		}

	case "d", "x":
		if acct, ok := m.selected(); ok {
			m.busy = true
			return m, m.delete(acct.ID)
		}
	}
	return m, nil
}

// updateForm drives the huh add-account form.
func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		return m, m.save()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}

	return m, cmd
}

// View renders the accounts view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var sections []string

	if m.mode == modeAdd {
		sections = append(sections, titleStyle.Render("Add Provider Account"))
		if m.form != nil {
			sections = append(sections, m.form.View())
		}
	} else {
		sections = append(sections, titleStyle.Render("Provider Accounts"))
		sections = append(sections, m.renderList())
		sections = append(sections, "")
		sections = append(sections, theme.HelpStyle.Render(
			"a: add · t: test · d: delete · r: reload · esc: back",
		))
	}

	switch {
	case m.errText != "":
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorRed).
			Render(m.errText))
	case m.statusText != "":
		sections = append(sections, theme.HelpStyle.Render(m.statusText))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// renderList draws the configured accounts.
func (m Model) renderList() string {
	if len(m.accounts) == 0 {
		return theme.HelpStyle.Render(
			"No provider accounts configured. Press a to add one.",
		)
	}

	var lines []string
	for i, acct := range m.accounts {
		server := acct.IMAPServer
		if server != "" && acct.IMAPPort != 0 {
			server = fmt.Sprintf("%s:%d", server, acct.IMAPPort)
		}
		line := fmt.Sprintf(
			"%s  %s  %s",
			lipgloss.NewStyle().
				Width(30).
				Foreground(theme.ColorBlue).
				Render(acct.EmailAddress),
			lipgloss.NewStyle().
				Width(10).
				Foreground(theme.ColorGray).
				Render(acct.AccountType),
			lipgloss.NewStyle().
				Foreground(theme.ColorGray).
				Render(server),
		)
		if i == m.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) selected() (model.Account, bool) {
	if m.cursor < 0 || m.cursor >= len(m.accounts) {
		return model.Account{}, false
	}
	return m.accounts[m.cursor], true
}

// startAdd initializes the add-account form.
func (m *Model) startAdd() tea.Cmd {
	*m.fb = formBindings{
		accountType: "imap",
		imapPort:    "993",
		smtpPort:    "587",
	}
	m.mode = modeAdd
	m.statusText = ""
	m.errText = ""
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email Address").
				Placeholder("you@example.com").
				Value(&m.fb.emailAddress).
				Validate(validateRequired("Email Address")),
			huh.NewSelect[string]().
				Title("Account Type").
				Options(
					huh.NewOption("IMAP", "imap"),
					huh.NewOption("Gmail", "gmail"),
					huh.NewOption("Outlook", "outlook"),
				).
				Value(&m.fb.accountType),
			huh.NewInput().
				Title("IMAP Server").
				Placeholder("imap.example.com").
				Value(&m.fb.imapServer),
			huh.NewInput().
				Title("IMAP Port").
				Value(&m.fb.imapPort).
				Validate(validateOptionalPort),
			huh.NewInput().
				Title("IMAP Username").
				Value(&m.fb.imapUsername),
			huh.NewInput().
				Title("IMAP Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.imapPassword),
			huh.NewInput().
				Title("SMTP Server").
				Placeholder("smtp.example.com").
				Value(&m.fb.smtpServer),
			huh.NewInput().
				Title("SMTP Port").
				Value(&m.fb.smtpPort).
				Validate(validateOptionalPort),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// request builds the API payload from the form bindings.
func (m Model) request() api.AccountRequest {
	imapPort, _ := strconv.Atoi(strings.TrimSpace(m.fb.imapPort))
	smtpPort, _ := strconv.Atoi(strings.TrimSpace(m.fb.smtpPort))
	return api.AccountRequest{
		EmailAddress: strings.TrimSpace(m.fb.emailAddress),
		AccountType:  m.fb.accountType,
		IMAPServer:   strings.TrimSpace(m.fb.imapServer),
		IMAPPort:     imapPort,
		IMAPUsername: strings.TrimSpace(m.fb.imapUsername),
		IMAPPassword: m.fb.imapPassword,
		SMTPServer:   strings.TrimSpace(m.fb.smtpServer),
		SMTPPort:     smtpPort,
	}
}

func (m *Model) load() tea.Cmd {
	m.busy = true
	client := m.client
	sess := m.sess
	return func() tea.Msg {
		accounts, err := client.ListAccounts(context.Background(), sess)
		return loadedMsg{accounts: accounts, err: err}
	}
}

func (m Model) save() tea.Cmd {
	client := m.client
	sess := m.sess
	req := m.request()
	return func() tea.Msg {
		err := client.AddAccount(context.Background(), sess, req)
		return savedMsg{err: err}
	}
}

func (m Model) delete(id int64) tea.Cmd {
	client := m.client
	sess := m.sess
	return func() tea.Msg {
		err := client.DeleteAccount(context.Background(), sess, id)
		return deletedMsg{err: err}
	}
}

func (m Model) test(acct model.Account) tea.Cmd {
	client := m.client
	sess := m.sess
	req := api.AccountRequest{
		EmailAddress: acct.EmailAddress,
		AccountType:  acct.AccountType,
		IMAPServer:   acct.IMAPServer,
		IMAPPort:     acct.IMAPPort,
		SMTPServer:   acct.SMTPServer,
		SMTPPort:     acct.SMTPPort,
	}
	return func() tea.Msg {
		err := client.TestAccount(context.Background(), sess, req)
		return testedMsg{err: err}
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalPort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port number")
	}
	return nil
}
