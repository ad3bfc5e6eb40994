package login

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/api"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/internal/theme"
)

// LoginResultMsg is dispatched when a sign-in or registration attempt
// has settled. Sess is non-nil on success.
type LoginResultMsg struct {
	Sess *session.Session
	Err  error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
	fullName string
}

// Model is the Bubble Tea model for the sign-in / registration gate.
// Every other view stays unreachable until it emits a successful
// LoginResultMsg.
type Model struct {
	client       *api.Client
	form         *huh.Form
	fb           *formBindings
	registerMode bool
	submitting   bool
	errText      string
	width        int
	height       int
}

// New creates a new login model.
func New(client *api.Client, width, height int) Model {
	return Model{
		client: client,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the sign-in form.
func (m *Model) Start() tea.Cmd {
	m.registerMode = false
	m.submitting = false
	m.errText = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoginResultMsg:
		m.submitting = false
		if msg.Err != nil {
			// Rebuild the form with the entered values preserved so
			// the user can correct and retry.
			m.errText = msg.Err.Error()
			m.fb.password = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, nil

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		if msg.String() == "ctrl+r" {
			m.registerMode = !m.registerMode
			m.errText = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
	}

	if m.form == nil || m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.submitting = true
		return m, m.submit()
	}
	if m.form.State == huh.StateAborted {
		return m, tea.Quit
	}

	return m, cmd
}

// View renders the login view.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "Sign in to Maildeck"
	if m.registerMode {
		titleText = "Create a Maildeck account"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var sections []string
	sections = append(sections, titleStyle.Render(titleText))

	if m.errText != "" {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorRed).
			MarginBottom(1).
			Render(m.errText))
	}

	if m.submitting {
		sections = append(sections, theme.HelpStyle.Render("Signing in..."))
	} else {
		sections = append(sections, m.form.View())
	}

	hint := "ctrl+r: switch to registration"
	if m.registerMode {
		hint = "ctrl+r: switch to sign in"
	}
	sections = append(sections, theme.HelpStyle.Render(hint))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the login view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&m.fb.email).
			Validate(validateRequired("Email")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validateRequired("Password")),
	}

	if m.registerMode {
		fields = append(fields, huh.NewInput().
			Title("Full Name").
			Placeholder("Ada Lovelace").
			Value(&m.fb.fullName).
			Validate(validateRequired("Full Name")))
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// submit performs the sign-in or registration call.
func (m Model) submit() tea.Cmd {
	client := m.client
	email := m.fb.email
	password := m.fb.password
	fullName := m.fb.fullName
	register := m.registerMode

	return func() tea.Msg {
		ctx := context.Background()

		var resp *api.LoginResponse
		var err error
		if register {
			resp, err = client.Register(ctx, api.RegisterRequest{
				Email:    email,
				Password: password,
				FullName: fullName,
			})
		} else {
			resp, err = client.Login(ctx, email, password)
		}
		if err != nil {
			return LoginResultMsg{Err: err}
		}

		return LoginResultMsg{Sess: &session.Session{
			Token: resp.AccessToken,
			User:  resp.User,
		}}
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
	h := m.height - 8
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
