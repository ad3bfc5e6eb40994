package app_test

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajanik/maildeck/internal/app"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
)

// newApp builds a signed-in root model sized and ready for key input.
// The backend URL points nowhere; these tests never execute network
// commands.
func newApp(t *testing.T) app.Model {
	t.Helper()

	cfg := &model.AppConfig{
		Server: model.ServerConfig{
			BaseURL:            "http://127.0.0.1:1",
			SyncReloadDelaySec: 3,
		},
	}
	sess := &session.Session{
		Token: "t",
		User:  model.User{Email: "user@example.com"},
	}

	m := app.New(cfg, sess, zerolog.Nop())
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
}

func update(t *testing.T, m app.Model, msg tea.Msg) app.Model {
	t.Helper()
	mdl, _ := m.Update(msg)
	am, ok := mdl.(app.Model)
	require.True(t, ok)
	return am
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestQuitKeyFromList(t *testing.T) {
	m := newApp(t)

	mdl, cmd := m.Update(keyRune('q'))
	_, ok := mdl.(app.Model)
	require.True(t, ok)
	require.NotNil(t, cmd)

	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestSearchModeKeepsLetterKeys(t *testing.T) {
	m := newApp(t)
	m = update(t, m, keyRune('/'))

	// While the search input has focus, q is text, not quit.
	mdl, cmd := m.Update(keyRune('q'))
	m, ok := mdl.(app.Model)
	require.True(t, ok)
	if cmd != nil {
		_, isQuit := cmd().(tea.QuitMsg)
		assert.False(t, isQuit, "typing q in search must not quit")
	}

	// Committing the search shows it in the status bar, proving the
	// keystroke landed in the input.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), `search:"q"`)
}

func TestSearchModeKeepsOverlayKeys(t *testing.T) {
	m := newApp(t)
	m = update(t, m, keyRune('/'))

	m = update(t, m, keyRune('?'))
	assert.False(t, strings.Contains(m.View(), "Keyboard Shortcuts"),
		"? in search must not open help")

	m = update(t, m, keyRune(':'))
	assert.False(t, strings.Contains(m.View(), "Command Palette"),
		": in search must not open the command palette")
}
