// Package compose implements the draft workflow for new messages and
// replies: a small state machine over a transient draft that is either
// sent whole or discarded, never partially transmitted.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ajanik/maildeck/internal/api"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
)

// State is the workflow phase.
type State int

const (
	// StateEditing is the initial state; all draft fields are mutable.
	StateEditing State = iota

	// StateSubmitting means a send is in flight.
	StateSubmitting

	// StateSent is terminal; the draft has been transmitted and cleared.
	StateSent
)

// Backend is the slice of the API client the workflow depends on.
type Backend interface {
	SendEmail(
		ctx context.Context, sess *session.Session, send api.SendRequest,
	) error
	ComposeWithAI(
		ctx context.Context, sess *session.Session, prompt string,
	) (string, error)
	QuickReplies(
		ctx context.Context, sess *session.Session, id int64,
	) ([]model.QuickReply, error)
	GenerateReply(
		ctx context.Context, sess *session.Session, id int64, tone string,
	) (string, error)
}

// ValidationError reports a required draft field left blank. It is
// raised locally, before any network call.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

// Draft is the transient, never-persisted message being edited.
type Draft struct {
	ID      string
	To      string
	Subject string
	Body    string
}

// Workflow drives one compose or reply session. It exists only for the
// lifetime of the compose view; closing or sending discards it.
type Workflow struct {
	backend Backend

	state State
	draft Draft

	// replyToID is non-zero when this draft replies to a message.
	replyToID int64
}

// NewCompose starts a workflow with an empty draft.
func NewCompose(backend Backend) *Workflow {
	return &Workflow{
		backend: backend,
		state:   StateEditing,
		draft:   Draft{ID: uuid.NewString()},
	}
}

// NewReply starts a workflow pre-filled from the message being answered:
// the recipient is the original sender and the subject gains a single
// "Re:" prefix.
func NewReply(backend Backend, orig model.MessageSummary) *Workflow {
	subject := orig.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return &Workflow{
		backend:   backend,
		state:     StateEditing,
		replyToID: orig.ID,
		draft: Draft{
			ID:      uuid.NewString(),
			To:      orig.FromAddress,
			Subject: subject,
		},
	}
}

// State returns the current workflow phase.
func (w *Workflow) State() State { return w.state }

// Draft returns the current draft contents.
func (w *Workflow) Draft() Draft { return w.draft }

// IsReply reports whether this workflow answers an existing message.
func (w *Workflow) IsReply() bool { return w.replyToID != 0 }

// SetFields updates the editable draft fields. Ignored outside editing.
func (w *Workflow) SetFields(to, subject, body string) {
	if w.state != StateEditing {
		return
	}
	w.draft.To = to
	w.draft.Subject = subject
	w.draft.Body = body
}

// GenerateFromPrompt asks the backend to write body text from the
// prompt and, on success, replaces the draft body with the result
// (never appends). On failure the draft is unchanged and the workflow
// stays in editing.
func (w *Workflow) GenerateFromPrompt(
	ctx context.Context, sess *session.Session, prompt string,
) error {
	if w.state != StateEditing {
		return fmt.Errorf("cannot generate text while %s", w.stateName())
	}

	text, err := w.backend.ComposeWithAI(ctx, sess, prompt)
	if err != nil {
		return fmt.Errorf("generating draft body: %w", err)
	}

	w.draft.Body = text
	return nil
}

// GenerateReplyWithTone asks the backend for a full reply in the given
// tone; same replace-not-append semantics as GenerateFromPrompt. Only
// valid for reply workflows.
func (w *Workflow) GenerateReplyWithTone(
	ctx context.Context, sess *session.Session, tone string,
) error {
	if w.state != StateEditing {
		return fmt.Errorf("cannot generate text while %s", w.stateName())
	}
	if w.replyToID == 0 {
		return fmt.Errorf("not a reply draft")
	}

	text, err := w.backend.GenerateReply(ctx, sess, w.replyToID, tone)
	if err != nil {
		return fmt.Errorf("generating reply: %w", err)
	}

	w.draft.Body = text
	return nil
}

// LoadQuickReplies fetches suggested replies for the message being
// answered. Only valid for reply workflows.
func (w *Workflow) LoadQuickReplies(
	ctx context.Context, sess *session.Session,
) ([]model.QuickReply, error) {
	if w.replyToID == 0 {
		return nil, fmt.Errorf("not a reply draft")
	}

	replies, err := w.backend.QuickReplies(ctx, sess, w.replyToID)
	if err != nil {
		return nil, fmt.Errorf("loading quick replies: %w", err)
	}
	return replies, nil
}

// ApplySuggestion puts the chosen suggestion's text into the draft body
// verbatim for further editing. It never sends.
func (w *Workflow) ApplySuggestion(qr model.QuickReply) {
	if w.state != StateEditing {
		return
	}
	w.draft.Body = qr.Text
}

// Submit validates the draft and sends it. A blank recipient, subject,
// or body is rejected locally with a ValidationError and no network
// call. On success the draft is discarded and the workflow reaches
// StateSent; on failure it returns to editing with every field intact.
func (w *Workflow) Submit(
	ctx context.Context, sess *session.Session,
) error {
	if w.state != StateEditing {
		return fmt.Errorf("cannot submit while %s", w.stateName())
	}

	switch {
	case strings.TrimSpace(w.draft.To) == "":
		return &ValidationError{Field: "recipient"}
	case strings.TrimSpace(w.draft.Subject) == "":
		return &ValidationError{Field: "subject"}
	case strings.TrimSpace(w.draft.Body) == "":
		return &ValidationError{Field: "body"}
	}

	w.state = StateSubmitting

	err := w.backend.SendEmail(ctx, sess, api.SendRequest{
		ToAddress: w.draft.To,
		Subject:   w.draft.Subject,
		BodyText:  w.draft.Body,
	})
	if err != nil {
		w.state = StateEditing
		return fmt.Errorf("sending message: %w", err)
	}

	w.state = StateSent
	w.draft = Draft{}
	return nil
}

func (w *Workflow) stateName() string {
	switch w.state {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSent:
		return "sent"
	default:
		return "unknown"
	}
}
