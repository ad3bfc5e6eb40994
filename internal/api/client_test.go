package api_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajanik/maildeck/internal/api"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
	"github.com/ajanik/maildeck/tests/testutil"
)

func seedEmails() []model.MessageDetail {
	return []model.MessageDetail{
		{
			MessageSummary: model.MessageSummary{
				ID:          1,
				FromAddress: "alice@example.com",
				FromName:    "Alice",
				Subject:     "Quarterly report",
				AICategory:  "focused",
			},
			BodyText: "The numbers are in.",
		},
		{
			MessageSummary: model.MessageSummary{
				ID:          2,
				FromAddress: "deals@shop.example",
				Subject:     "50% off everything",
				AICategory:  "other",
			},
			BodyText: "Buy now.",
		},
	}
}

func newClient(t *testing.T, emails ...model.MessageDetail) (*api.Client, *testutil.Server, *session.Session) {
	t.Helper()
	srv := testutil.NewServer(t, emails...)
	client := api.NewClient(srv.URL, zerolog.Nop())
	sess := &session.Session{Token: testutil.Token}
	return client, srv, sess
}

func TestLogin(t *testing.T) {
	client, _, _ := newClient(t)

	resp, err := client.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, testutil.Token, resp.AccessToken)
	assert.Equal(t, "user@example.com", resp.User.Email)
	assert.Equal(t, "Test User", resp.User.FullName)
}

func TestLoginBadCredentials(t *testing.T) {
	client, _, _ := newClient(t)

	_, err := client.Login(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.Contains(t, err.Error(), "Incorrect email or password")
}

func TestListEmails(t *testing.T) {
	client, _, sess := newClient(t, seedEmails()...)

	emails, err := client.ListEmails(context.Background(), sess, "", "")
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "Quarterly report", emails[0].Subject)
}

func TestListEmailsByCategory(t *testing.T) {
	client, _, sess := newClient(t, seedEmails()...)

	emails, err := client.ListEmails(context.Background(), sess, "focused", "")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, int64(1), emails[0].ID)
}

func TestListEmailsRejectsBadToken(t *testing.T) {
	client, _, _ := newClient(t, seedEmails()...)

	bad := &session.Session{Token: "stale-token"}
	_, err := client.ListEmails(context.Background(), bad, "", "")
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
}

func TestGetEmail(t *testing.T) {
	client, _, sess := newClient(t, seedEmails()...)

	detail, err := client.GetEmail(context.Background(), sess, 1)
	require.NoError(t, err)
	assert.Equal(t, "The numbers are in.", detail.BodyText)
}

func TestGetEmailNotFound(t *testing.T) {
	client, _, sess := newClient(t, seedEmails()...)

	_, err := client.GetEmail(context.Background(), sess, 99)
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Contains(t, apiErr.Detail, "not found")
}

func TestSetReadAndStarred(t *testing.T) {
	client, _, sess := newClient(t, seedEmails()...)
	ctx := context.Background()

	require.NoError(t, client.SetRead(ctx, sess, 1, true))
	require.NoError(t, client.SetStarred(ctx, sess, 1, true))

	detail, err := client.GetEmail(ctx, sess, 1)
	require.NoError(t, err)
	assert.True(t, detail.IsRead)
	assert.True(t, detail.IsStarred)
}

func TestSendEmail(t *testing.T) {
	client, srv, sess := newClient(t)

	err := client.SendEmail(context.Background(), sess, api.SendRequest{
		ToAddress: "bob@example.com",
		Subject:   "Hello",
		BodyText:  "Hi Bob",
	})
	require.NoError(t, err)

	sent := srv.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob@example.com", sent[0]["to_address"])
	assert.Equal(t, "Hello", sent[0]["subject"])
	assert.Equal(t, "Hi Bob", sent[0]["body_text"])
}

func TestTriggerSync(t *testing.T) {
	client, srv, sess := newClient(t)

	require.NoError(t, client.TriggerSync(context.Background(), sess))
	require.NoError(t, client.TriggerSync(context.Background(), sess))
	assert.Equal(t, 2, srv.SyncCount())
}

func TestListAccounts(t *testing.T) {
	client, srv, sess := newClient(t)
	srv.SetAccounts([]model.Account{
		{ID: 1, EmailAddress: "me@example.com", AccountType: "imap"},
	})

	accounts, err := client.ListAccounts(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "me@example.com", accounts[0].EmailAddress)
}
