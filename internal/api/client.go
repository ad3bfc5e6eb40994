// Package api is a thin HTTP client for the mail backend's REST API.
// Every protected call takes the session explicitly and carries its
// bearer token in the Authorization header; the client itself holds no
// credential state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
)

// Client talks to the mail backend. It handles JSON (de)serialization,
// bearer authentication, and structured error decoding. Failed calls are
// not retried; the caller surfaces the error and the user retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a backend client for the given root URL
// (e.g. http://localhost:8001).
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("module", "api").Logger(),
	}
}

// LoginResponse is returned by both login and registration.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

// RegisterRequest is the payload for creating a new backend user.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// SendRequest is the payload for sending an email.
type SendRequest struct {
	ToAddress string `json:"to_address"`
	Subject   string `json:"subject"`
	BodyText  string `json:"body_text"`
}

// AccountRequest is the payload for adding or testing a provider account.
type AccountRequest struct {
	EmailAddress string `json:"email_address"`
	AccountType  string `json:"account_type"`
	IMAPServer   string `json:"imap_server,omitempty"`
	IMAPPort     int    `json:"imap_port,omitempty"`
	IMAPUsername string `json:"imap_username,omitempty"`
	IMAPPassword string `json:"imap_password,omitempty"`
	SMTPServer   string `json:"smtp_server,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
}

// Login authenticates with the backend. The endpoint speaks the OAuth2
// password flow, so credentials go form-encoded rather than as JSON.
func (c *Client) Login(
	ctx context.Context, email, password string,
) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/auth/login",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out LoginResponse
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new user and returns a session-ready response.
func (c *Client) Register(
	ctx context.Context, reg RegisterRequest,
) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, nil, http.MethodPost, "/auth/register", reg, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEmails fetches message summaries, optionally filtered by category
// and search text. Both filters are applied by the backend; see the mail
// store for the client-side search contract layered on top.
func (c *Client) ListEmails(
	ctx context.Context,
	sess *session.Session,
	category, search string,
) ([]model.MessageSummary, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if search != "" {
		q.Set("search", search)
	}
	path := "/emails"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var out []model.MessageSummary
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEmail fetches the full detail for a single message.
func (c *Client) GetEmail(
	ctx context.Context, sess *session.Session, id int64,
) (*model.MessageDetail, error) {
	var out model.MessageDetail
	path := fmt.Sprintf("/emails/%d", id)
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendEmail transmits a complete outbound message.
func (c *Client) SendEmail(
	ctx context.Context, sess *session.Session, send SendRequest,
) error {
	return c.do(ctx, sess, http.MethodPost, "/emails/send", send, nil)
}

// SetRead updates the read flag for a message on the backend.
func (c *Client) SetRead(
	ctx context.Context, sess *session.Session, id int64, isRead bool,
) error {
	path := fmt.Sprintf("/emails/%d/read", id)
	body := map[string]bool{"is_read": isRead}
	return c.do(ctx, sess, http.MethodPatch, path, body, nil)
}

// SetStarred updates the starred flag for a message on the backend.
func (c *Client) SetStarred(
	ctx context.Context, sess *session.Session, id int64, isStarred bool,
) error {
	path := fmt.Sprintf("/emails/%d/star", id)
	body := map[string]bool{"is_starred": isStarred}
	return c.do(ctx, sess, http.MethodPatch, path, body, nil)
}

// TriggerSync asks the backend to pull new mail from upstream providers.
// Ingestion runs asynchronously; the call returns immediately.
func (c *Client) TriggerSync(
	ctx context.Context, sess *session.Session,
) error {
	return c.do(ctx, sess, http.MethodPost, "/emails/sync", nil, nil)
}

// ComposeWithAI generates email body text from a free-form prompt.
func (c *Client) ComposeWithAI(
	ctx context.Context, sess *session.Session, prompt string,
) (string, error) {
	var out struct {
		EmailText string `json:"email_text"`
	}
	body := map[string]string{"prompt": prompt}
	if err := c.do(ctx, sess, http.MethodPost, "/ai/compose", body, &out); err != nil {
		return "", err
	}
	return out.EmailText, nil
}

// QuickReplies fetches suggested short replies for a message.
func (c *Client) QuickReplies(
	ctx context.Context, sess *session.Session, id int64,
) ([]model.QuickReply, error) {
	var out struct {
		Replies []model.QuickReply `json:"replies"`
	}
	path := fmt.Sprintf("/ai/quick-replies/%d", id)
	if err := c.do(ctx, sess, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Replies, nil
}

// GenerateReply generates a full reply to a message in the given tone.
func (c *Client) GenerateReply(
	ctx context.Context, sess *session.Session, id int64, tone string,
) (string, error) {
	var out struct {
		EmailText string `json:"email_text"`
	}
	path := fmt.Sprintf("/ai/reply/%d", id)
	body := map[string]string{"tone": tone}
	if err := c.do(ctx, sess, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.EmailText, nil
}

// ListAccounts fetches the configured provider accounts.
func (c *Client) ListAccounts(
	ctx context.Context, sess *session.Session,
) ([]model.Account, error) {
	var out []model.Account
	err := c.do(ctx, sess, http.MethodGet, "/settings/accounts", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddAccount registers a new provider account with the backend.
func (c *Client) AddAccount(
	ctx context.Context, sess *session.Session, acct AccountRequest,
) error {
	return c.do(ctx, sess, http.MethodPost, "/settings/accounts", acct, nil)
}

// DeleteAccount removes a provider account.
func (c *Client) DeleteAccount(
	ctx context.Context, sess *session.Session, id int64,
) error {
	path := fmt.Sprintf("/settings/accounts/%d", id)
	return c.do(ctx, sess, http.MethodDelete, path, nil, nil)
}

// TestAccount verifies IMAP connectivity for the given settings without
// saving them.
func (c *Client) TestAccount(
	ctx context.Context, sess *session.Session, acct AccountRequest,
) error {
	return c.do(ctx, sess, http.MethodPost, "/settings/accounts/test", acct, nil)
}

// do builds a JSON request, attaches the bearer token when a session is
// given, and decodes the JSON response into result.
func (c *Client) do(
	ctx context.Context,
	sess *session.Session,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.baseURL+path, bodyReader,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	return c.send(req, result)
}

// send executes a prepared request and handles status and decoding.
func (c *Client) send(req *http.Request, result interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"executing request %s %s: %w", req.Method, req.URL.Path, err,
		)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Msg("request complete")

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Message: decodeDetail(respBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Detail:     decodeDetail(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w",
			req.Method, req.URL.Path, err,
		)
	}

	return nil
}

// decodeDetail extracts the backend's {"detail": ...} error string,
// falling back to the raw body.
func decodeDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(body))
}
