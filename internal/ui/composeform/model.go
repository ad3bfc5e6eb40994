package composeform

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ajanik/maildeck/internal/compose"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/internal/theme"
)

// SentMsg is dispatched when the draft was sent; the opener should
// refresh its list.
type SentMsg struct{}

// CancelMsg is dispatched when the user abandons the draft.
type CancelMsg struct{}

// generatedMsg carries the result of an AI text generation call.
type generatedMsg struct {
	body string
	err  error
}

// repliesMsg carries fetched quick-reply suggestions.
type repliesMsg struct {
	replies []model.QuickReply
	err     error
}

// submitResultMsg carries the outcome of a send.
type submitResultMsg struct {
	err error
}

// Input focus order within the form.
const (
	focusTo = iota
	focusSubject
	focusBody
	focusPrompt
	focusCount
)

// replyTones cycled by the tone-generation shortcut.
var replyTones = []string{"professional", "friendly", "brief"}

// Model is the compose/reply form view. It owns a compose.Workflow for
// the lifetime of the view; closing or sending discards both.
type Model struct {
	workflow *compose.Workflow
	sess     *session.Session

	to      textinput.Model
	subject textinput.Model
	body    textarea.Model
	prompt  textinput.Model
	focus   int

	suggestions []model.QuickReply
	picking     bool
	pickIndex   int
	toneIndex   int

	generating bool
	submitting bool
	errText    string

	width  int
	height int
}

// New creates an idle form model; call StartCompose or StartReply to
// open a draft.
func New(width, height int) Model {
	to := textinput.New()
	to.Placeholder = "recipient@example.com"
	to.Prompt = "To:      "

	subject := textinput.New()
	subject.Placeholder = "Subject"
	subject.Prompt = "Subject: "

	body := textarea.New()
	body.Placeholder = "Write your message..."
	body.ShowLineNumbers = false

	prompt := textinput.New()
	prompt.Placeholder = "describe the email and press enter to generate..."
	prompt.Prompt = "AI: "

	return Model{
		to:      to,
		subject: subject,
		body:    body,
		prompt:  prompt,
		width:   width,
		height:  height,
	}
}

// SetSession sets the session used for all backend calls.
func (m *Model) SetSession(sess *session.Session) {
	m.sess = sess
}

// StartCompose opens a fresh draft.
func (m *Model) StartCompose(backend compose.Backend) tea.Cmd {
	m.workflow = compose.NewCompose(backend)
	return m.reset()
}

// StartReply opens a draft answering orig, pre-filled per the workflow.
func (m *Model) StartReply(
	backend compose.Backend, orig model.MessageSummary,
) tea.Cmd {
	m.workflow = compose.NewReply(backend, orig)
	return m.reset()
}

// reset synchronizes inputs with the new workflow draft.
func (m *Model) reset() tea.Cmd {
	draft := m.workflow.Draft()
	m.to.SetValue(draft.To)
	m.subject.SetValue(draft.Subject)
	m.body.SetValue("")
	m.prompt.SetValue("")
	m.suggestions = nil
	m.picking = false
	m.pickIndex = 0
	m.toneIndex = 0
	m.generating = false
	m.submitting = false
	m.errText = ""

	if m.workflow.IsReply() {
		m.focus = focusBody
	} else {
		m.focus = focusTo
	}
	return m.applyFocus()
}

// Init returns the initial command for the form.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.workflow == nil {
		return m, nil
	}

	switch msg := msg.(type) {
	case generatedMsg:
		m.generating = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		// Generated text replaces the body wholesale.
		m.errText = ""
		m.body.SetValue(msg.body)
		return m, nil

	case repliesMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.suggestions = msg.replies
		m.picking = len(msg.replies) > 0
		m.pickIndex = 0
		return m, nil

	case submitResultMsg:
		m.submitting = false
		if msg.err != nil {
			// Draft fields are preserved; the user fixes and retries.
			m.errText = msg.err.Error()
			return m, nil
		}
		return m, func() tea.Msg { return SentMsg{} }

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateFocused(msg)
}

// handleKeyMsg processes keyboard input for the form.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}

	if m.picking {
		return m.handlePickingKeys(msg)
	}

	switch msg.String() {
	case "esc":
		return m, func() tea.Msg { return CancelMsg{} }

	case "tab":
		m.focus = (m.focus + 1) % focusCount
		return m, m.applyFocus()

	case "shift+tab":
		m.focus = (m.focus + focusCount - 1) % focusCount
		return m, m.applyFocus()

	case "ctrl+s":
		return m, m.submit()

	case "ctrl+q":
		if m.workflow.IsReply() {
			return m, m.loadQuickReplies()
		}

	case "ctrl+t":
		if m.workflow.IsReply() && !m.generating {
			tone := replyTones[m.toneIndex]
			m.toneIndex = (m.toneIndex + 1) % len(replyTones)
			m.generating = true
			return m, m.generateReply(tone)
		}

	case "enter":
		if m.focus == focusPrompt && !m.generating {
			promptText := strings.TrimSpace(m.prompt.Value())
			if promptText == "" {
				return m, nil
			}
			m.generating = true
			return m, m.generateFromPrompt(promptText)
		}
	}

	return m.updateFocused(msg)
}

// handlePickingKeys navigates the quick-reply suggestion picker.
func (m Model) handlePickingKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.picking = false
		return m, nil

	case "j", "down":
		if m.pickIndex < len(m.suggestions)-1 {
			m.pickIndex++
		}
		return m, nil

	case "k", "up":
		if m.pickIndex > 0 {
			m.pickIndex--
		}
		return m, nil

	case "enter":
		// The chosen suggestion populates the body for further
		// editing; it never sends.
		chosen := m.suggestions[m.pickIndex]
		m.workflow.ApplySuggestion(chosen)
		m.body.SetValue(chosen.Text)
		m.picking = false
		m.focus = focusBody
		return m, m.applyFocus()
	}

	return m, nil
}

// updateFocused forwards a message to the focused input.
func (m Model) updateFocused(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusTo:
		m.to, cmd = m.to.Update(msg)
	case focusSubject:
		m.subject, cmd = m.subject.Update(msg)
	case focusBody:
		m.body, cmd = m.body.Update(msg)
	case focusPrompt:
		m.prompt, cmd = m.prompt.Update(msg)
	}
	return m, cmd
}

// applyFocus focuses the active input and blurs the rest.
func (m *Model) applyFocus() tea.Cmd {
	m.to.Blur()
	m.subject.Blur()
	m.body.Blur()
	m.prompt.Blur()

	switch m.focus {
	case focusTo:
		return m.to.Focus()
	case focusSubject:
		return m.subject.Focus()
	case focusBody:
		return m.body.Focus()
	case focusPrompt:
		return m.prompt.Focus()
	}
	return nil
}

// submit syncs the inputs into the workflow and sends the draft.
// Validation failures surface without any network call.
func (m *Model) submit() tea.Cmd {
	m.workflow.SetFields(
		m.to.Value(), m.subject.Value(), m.body.Value(),
	)
	m.submitting = true
	m.errText = ""

	wf := m.workflow
	sess := m.sess
	return func() tea.Msg {
		err := wf.Submit(context.Background(), sess)
		return submitResultMsg{err: err}
	}
}

// generateFromPrompt asks the backend to write the body from the prompt.
func (m *Model) generateFromPrompt(promptText string) tea.Cmd {
	wf := m.workflow
	sess := m.sess
	return func() tea.Msg {
		err := wf.GenerateFromPrompt(context.Background(), sess, promptText)
		if err != nil {
			return generatedMsg{err: err}
		}
		return generatedMsg{body: wf.Draft().Body}
	}
}

// generateReply asks the backend for a tone-directed reply body.
func (m *Model) generateReply(tone string) tea.Cmd {
	wf := m.workflow
	sess := m.sess
	return func() tea.Msg {
		err := wf.GenerateReplyWithTone(context.Background(), sess, tone)
		if err != nil {
			return generatedMsg{err: err}
		}
		return generatedMsg{body: wf.Draft().Body}
	}
}

// loadQuickReplies fetches suggested replies for the original message.
func (m *Model) loadQuickReplies() tea.Cmd {
	wf := m.workflow
	sess := m.sess
	return func() tea.Msg {
		replies, err := wf.LoadQuickReplies(context.Background(), sess)
		return repliesMsg{replies: replies, err: err}
	}
}

// View renders the compose form.
func (m Model) View() string {
	if m.workflow == nil {
		return ""
	}

	titleText := "New Message"
	if m.workflow.IsReply() {
		titleText = "Reply"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var sections []string
	sections = append(sections, titleStyle.Render(titleText))
	sections = append(sections, m.to.View())
	sections = append(sections, m.subject.View())
	sections = append(sections, "")
	sections = append(sections, m.body.View())
	sections = append(sections, "")
	sections = append(sections, m.prompt.View())

	if m.picking {
		sections = append(sections, "")
		sections = append(sections, m.renderSuggestions())
	}

	switch {
	case m.submitting:
		sections = append(sections, theme.HelpStyle.Render("Sending..."))
	case m.generating:
		sections = append(sections, theme.HelpStyle.Render("Generating..."))
	case m.errText != "":
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorRed).
			Render(m.errText))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// renderSuggestions draws the quick-reply picker.
func (m Model) renderSuggestions() string {
	var lines []string
	lines = append(lines, theme.HelpStyle.Render(
		"Quick replies (enter to use, esc to dismiss):",
	))
	for i, qr := range m.suggestions {
		tone := theme.ToneStyle(qr.Tone).Render("[" + qr.Tone + "]")
		line := fmt.Sprintf("%s %s", tone, qr.Text)
		if i == m.pickIndex {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.to.Width = width - 12
	m.subject.Width = width - 12
	m.prompt.Width = width - 8
	m.body.SetWidth(width - 6)

	bodyHeight := height - 12
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	m.body.SetHeight(bodyHeight)
}
