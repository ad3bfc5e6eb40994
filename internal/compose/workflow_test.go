package compose_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajanik/maildeck/internal/api"
	"github.com/ajanik/maildeck/internal/compose"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
)

// fakeBackend implements compose.Backend, recording calls.
type fakeBackend struct {
	sent      []api.SendRequest
	sendErr   error
	composed  string
	replied   string
	replies   []model.QuickReply
	callCount int
}

func (f *fakeBackend) SendEmail(
	_ context.Context, _ *session.Session, send api.SendRequest,
) error {
	f.callCount++
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, send)
	return nil
}

func (f *fakeBackend) ComposeWithAI(
	_ context.Context, _ *session.Session, _ string,
) (string, error) {
	f.callCount++
	if f.composed == "" {
		return "", errors.New("no generation configured")
	}
	return f.composed, nil
}

func (f *fakeBackend) QuickReplies(
	_ context.Context, _ *session.Session, _ int64,
) ([]model.QuickReply, error) {
	f.callCount++
	return f.replies, nil
}

func (f *fakeBackend) GenerateReply(
	_ context.Context, _ *session.Session, _ int64, _ string,
) (string, error) {
	f.callCount++
	if f.replied == "" {
		return "", errors.New("no generation configured")
	}
	return f.replied, nil
}

var sess = &session.Session{Token: "t"}

func origMessage() model.MessageSummary {
	return model.MessageSummary{
		ID:          42,
		FromAddress: "alice@example.com",
		Subject:     "Project update",
	}
}

func TestNewComposeStartsEmpty(t *testing.T) {
	w := compose.NewCompose(&fakeBackend{})

	assert.Equal(t, compose.StateEditing, w.State())
	assert.False(t, w.IsReply())
	draft := w.Draft()
	assert.NotEmpty(t, draft.ID)
	assert.Empty(t, draft.To)
	assert.Empty(t, draft.Subject)
	assert.Empty(t, draft.Body)
}

func TestNewReplyPrefills(t *testing.T) {
	w := compose.NewReply(&fakeBackend{}, origMessage())

	assert.True(t, w.IsReply())
	draft := w.Draft()
	assert.Equal(t, "alice@example.com", draft.To)
	assert.Equal(t, "Re: Project update", draft.Subject)
}

func TestNewReplyDoesNotStackPrefix(t *testing.T) {
	orig := origMessage()
	orig.Subject = "RE: Project update"
	w := compose.NewReply(&fakeBackend{}, orig)

	assert.Equal(t, "RE: Project update", w.Draft().Subject)
}

func TestSubmitValidatesWithoutNetworkCall(t *testing.T) {
	cases := []struct {
		name  string
		to    string
		subj  string
		body  string
		field string
	}{
		{"blank recipient", "  ", "Hi", "Body", "recipient"},
		{"blank subject", "bob@example.com", "", "Body", "subject"},
		{"blank body", "bob@example.com", "Hi", "   ", "body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := &fakeBackend{}
			w := compose.NewCompose(fb)
			w.SetFields(tc.to, tc.subj, tc.body)

			err := w.Submit(context.Background(), sess)

			var verr *compose.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Zero(t, fb.callCount, "validation must not hit the network")
			assert.Equal(t, compose.StateEditing, w.State())
		})
	}
}

func TestSubmitSendsWholeDraft(t *testing.T) {
	fb := &fakeBackend{}
	w := compose.NewCompose(fb)
	w.SetFields("bob@example.com", "Hello", "Hi Bob")

	require.NoError(t, w.Submit(context.Background(), sess))

	assert.Equal(t, compose.StateSent, w.State())
	require.Len(t, fb.sent, 1)
	assert.Equal(t, "bob@example.com", fb.sent[0].ToAddress)
	assert.Equal(t, "Hello", fb.sent[0].Subject)
	assert.Equal(t, "Hi Bob", fb.sent[0].BodyText)

	// The draft is gone; further edits are ignored.
	assert.Empty(t, w.Draft().To)
	w.SetFields("x", "y", "z")
	assert.Empty(t, w.Draft().To)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	fb := &fakeBackend{sendErr: errors.New("backend down")}
	w := compose.NewCompose(fb)
	w.SetFields("bob@example.com", "Hello", "Hi Bob")

	err := w.Submit(context.Background(), sess)
	require.Error(t, err)

	assert.Equal(t, compose.StateEditing, w.State())
	draft := w.Draft()
	assert.Equal(t, "bob@example.com", draft.To)
	assert.Equal(t, "Hello", draft.Subject)
	assert.Equal(t, "Hi Bob", draft.Body)
}

func TestGenerateFromPromptReplacesBody(t *testing.T) {
	fb := &fakeBackend{composed: "Generated text."}
	w := compose.NewCompose(fb)
	w.SetFields("bob@example.com", "Hello", "half-written draft")

	require.NoError(t, w.GenerateFromPrompt(context.Background(), sess, "write hello"))

	// Replace, never append.
	assert.Equal(t, "Generated text.", w.Draft().Body)
	assert.Equal(t, "bob@example.com", w.Draft().To)
}

func TestGenerateFromPromptFailureKeepsBody(t *testing.T) {
	fb := &fakeBackend{}
	w := compose.NewCompose(fb)
	w.SetFields("bob@example.com", "Hello", "my words")

	err := w.GenerateFromPrompt(context.Background(), sess, "write hello")
	require.Error(t, err)
	assert.Equal(t, "my words", w.Draft().Body)
	assert.Equal(t, compose.StateEditing, w.State())
}

func TestGenerateReplyWithTone(t *testing.T) {
	fb := &fakeBackend{replied: "Thanks, sounds good."}
	w := compose.NewReply(fb, origMessage())

	require.NoError(t, w.GenerateReplyWithTone(context.Background(), sess, "friendly"))
	assert.Equal(t, "Thanks, sounds good.", w.Draft().Body)
}

func TestGenerateReplyWithToneRejectsCompose(t *testing.T) {
	w := compose.NewCompose(&fakeBackend{replied: "text"})

	err := w.GenerateReplyWithTone(context.Background(), sess, "friendly")
	require.Error(t, err)
}

func TestApplySuggestionNeverSends(t *testing.T) {
	fb := &fakeBackend{
		replies: []model.QuickReply{
			{Tone: "brief", Text: "Got it, thanks."},
		},
	}
	w := compose.NewReply(fb, origMessage())

	replies, err := w.LoadQuickReplies(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, replies, 1)

	w.ApplySuggestion(replies[0])

	assert.Equal(t, "Got it, thanks.", w.Draft().Body)
	assert.Equal(t, compose.StateEditing, w.State())
	assert.Empty(t, fb.sent)
}

func TestLoadQuickRepliesRejectsCompose(t *testing.T) {
	w := compose.NewCompose(&fakeBackend{})

	_, err := w.LoadQuickReplies(context.Background(), sess)
	require.Error(t, err)
}
