package model

import "time"

// Mailbox categories assigned by the backend's classifier.
const (
	CategoryFocused = "focused"
	CategoryOther   = "other"
	CategoryAll     = ""
)

// MessageSummary is one email as it appears in a list view. It carries no
// body; the full message is fetched separately as a MessageDetail. A
// summary is immutable apart from the IsRead and IsStarred flags, which
// change only through acknowledged backend mutations.
type MessageSummary struct {
	// ID is the backend's identifier for this message.
	ID int64 `json:"id"`

	// MessageID is the RFC 5322 Message-ID header, when known.
	MessageID string `json:"message_id,omitempty"`

	// FromAddress is the sender's email address.
	FromAddress string `json:"from_address"`

	// FromName is the sender's display name, when present.
	FromName string `json:"from_name,omitempty"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// AISummary is a backend-generated one-line summary, when available.
	AISummary string `json:"ai_summary,omitempty"`

	// AICategory is the backend-assigned category (e.g. "focused").
	AICategory string `json:"ai_category,omitempty"`

	// Preview is a snippet of the body text.
	Preview string `json:"preview,omitempty"`

	IsRead    bool `json:"is_read"`
	IsStarred bool `json:"is_starred"`

	// ReceivedAt is when the message arrived at the provider.
	ReceivedAt time.Time `json:"received_at"`
}

// Sender returns the display name when present, falling back to the
// bare address.
func (s MessageSummary) Sender() string {
	if s.FromName != "" {
		return s.FromName
	}
	return s.FromAddress
}

// MessageDetail is a MessageSummary plus the full message body. It is
// fetched lazily when a summary is selected and is not cached; selecting
// the same message again re-fetches it.
type MessageDetail struct {
	MessageSummary

	// ToAddress is the recipient address recorded by the backend.
	ToAddress string `json:"to_address,omitempty"`

	// BodyText is the plain-text body.
	BodyText string `json:"body_text"`

	// BodyHTML is the HTML body, when the message has one.
	BodyHTML string `json:"body_html,omitempty"`
}

// QuickReply is a backend-suggested short reply tagged with a tone label.
// Choosing one populates a draft body for further editing; it never sends.
type QuickReply struct {
	Tone string `json:"tone"`
	Text string `json:"text"`
}

// User is the minimal profile returned alongside an access token.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Account is a configured upstream mail provider (IMAP/SMTP) managed
// through the backend's settings endpoints.
type Account struct {
	ID           int64  `json:"id"`
	EmailAddress string `json:"email_address"`
	AccountType  string `json:"account_type"`
	IMAPServer   string `json:"imap_server,omitempty"`
	IMAPPort     int    `json:"imap_port,omitempty"`
	SMTPServer   string `json:"smtp_server,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
}
