package mailstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajanik/maildeck/internal/mailstore"
	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
)

// fakeBackend implements mailstore.Backend with swappable behavior.
type fakeBackend struct {
	mu sync.Mutex

	listFunc func(category, search string) ([]model.MessageSummary, error)
	getFunc  func(id int64) (*model.MessageDetail, error)

	readErr  error
	starErr  error
	syncErr  error
	syncSeen int
}

func (f *fakeBackend) ListEmails(
	_ context.Context, _ *session.Session, category, search string,
) ([]model.MessageSummary, error) {
	f.mu.Lock()
	fn := f.listFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(category, search)
}

func (f *fakeBackend) GetEmail(
	_ context.Context, _ *session.Session, id int64,
) (*model.MessageDetail, error) {
	f.mu.Lock()
	fn := f.getFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no detail configured")
	}
	return fn(id)
}

func (f *fakeBackend) SetRead(
	_ context.Context, _ *session.Session, _ int64, _ bool,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr
}

func (f *fakeBackend) SetStarred(
	_ context.Context, _ *session.Session, _ int64, _ bool,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starErr
}

func (f *fakeBackend) TriggerSync(
	_ context.Context, _ *session.Session,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncSeen++
	return f.syncErr
}

func (f *fakeBackend) setList(summaries []model.MessageSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFunc = func(string, string) ([]model.MessageSummary, error) {
		return summaries, nil
	}
}

func summaries() []model.MessageSummary {
	return []model.MessageSummary{
		{
			ID:          1,
			FromAddress: "alice@example.com",
			FromName:    "Alice",
			Subject:     "Quarterly report",
			Preview:     "The numbers are in",
		},
		{
			ID:          2,
			FromAddress: "bob@example.com",
			FromName:    "Bob",
			Subject:     "Lunch tomorrow?",
			IsRead:      true,
		},
	}
}

func newStore(fb *fakeBackend) *mailstore.Store {
	return mailstore.New(fb, zerolog.Nop())
}

var sess = &session.Session{Token: "t"}

func TestFilterMatches(t *testing.T) {
	s := model.MessageSummary{
		FromAddress: "alice@example.com",
		FromName:    "Alice Smith",
		Subject:     "Quarterly Report",
		Preview:     "The numbers are in",
	}

	assert.True(t, mailstore.Filter{}.Matches(s))
	assert.True(t, mailstore.Filter{SearchText: "quarterly"}.Matches(s))
	assert.True(t, mailstore.Filter{SearchText: "ALICE"}.Matches(s))
	assert.True(t, mailstore.Filter{SearchText: "numbers"}.Matches(s))
	assert.True(t, mailstore.Filter{SearchText: "smith"}.Matches(s))
	assert.False(t, mailstore.Filter{SearchText: "invoice"}.Matches(s))
}

func TestLoadListReplacesSet(t *testing.T) {
	fb := &fakeBackend{}
	fb.setList(summaries())
	store := newStore(fb)

	require.NoError(t, store.LoadList(context.Background(), sess, mailstore.Filter{}))
	assert.Len(t, store.Summaries(), 2)

	fb.setList(summaries()[:1])
	require.NoError(t, store.LoadList(context.Background(), sess, mailstore.Filter{}))
	assert.Len(t, store.Summaries(), 1)
}

func TestLoadListAppliesSearchLocally(t *testing.T) {
	fb := &fakeBackend{}
	var sawSearch string
	fb.mu.Lock()
	fb.listFunc = func(_, search string) ([]model.MessageSummary, error) {
		sawSearch = search
		return summaries(), nil
	}
	fb.mu.Unlock()
	store := newStore(fb)

	filter := mailstore.Filter{SearchText: "lunch"}
	require.NoError(t, store.LoadList(context.Background(), sess, filter))

	// The backend is never asked to search; the predicate runs locally.
	assert.Empty(t, sawSearch)

	got := store.Summaries()
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
	for _, s := range got {
		assert.True(t, filter.Matches(s))
	}
}

func TestLoadListLatestWins(t *testing.T) {
	fb := &fakeBackend{}
	store := newStore(fb)

	entered := make(chan struct{})
	release := make(chan struct{})
	stale := []model.MessageSummary{{ID: 99, Subject: "stale"}}

	calls := 0
	fb.mu.Lock()
	fb.listFunc = func(string, string) ([]model.MessageSummary, error) {
		fb.mu.Lock()
		calls++
		n := calls
		fb.mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
			return stale, nil
		}
		return summaries(), nil
	}
	fb.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- store.LoadList(context.Background(), sess, mailstore.Filter{})
	}()
	<-entered

	// A second load supersedes the first while it is still in flight.
	require.NoError(t, store.LoadList(context.Background(), sess, mailstore.Filter{}))
	close(release)
	require.NoError(t, <-firstDone)

	got := store.Summaries()
	require.Len(t, got, 2)
	for _, s := range got {
		assert.NotEqual(t, int64(99), s.ID, "superseded load must not apply")
	}
}

func TestLoadListErrorKeepsState(t *testing.T) {
	fb := &fakeBackend{}
	fb.setList(summaries())
	store := newStore(fb)
	require.NoError(t, store.LoadList(context.Background(), sess, mailstore.Filter{}))

	fb.mu.Lock()
	fb.listFunc = func(string, string) ([]model.MessageSummary, error) {
		return nil, errors.New("backend down")
	}
	fb.mu.Unlock()

	err := store.LoadList(context.Background(), sess, mailstore.Filter{})
	require.Error(t, err)
	assert.Len(t, store.Summaries(), 2, "failed load must not clear state")
}

func TestSetReadUpdatesAfterAck(t *testing.T) {
	fb := &fakeBackend{}
	fb.setList(summaries())
	fb.getFunc = func(id int64) (*model.MessageDetail, error) {
		return &model.MessageDetail{
			MessageSummary: summaries()[0],
		}, nil
	}
	store := newStore(fb)
	ctx := context.Background()

	require.NoError(t, store.LoadList(ctx, sess, mailstore.Filter{}))
	_, err := store.SelectDetail(ctx, sess, 1)
	require.NoError(t, err)

	require.NoError(t, store.SetRead(ctx, sess, 1, true))

	got := store.Summaries()
	assert.True(t, got[0].IsRead)
	require.NotNil(t, store.Selected())
	assert.True(t, store.Selected().IsRead)
}

func TestSetReadFailureLeavesState(t *testing.T) {
	fb := &fakeBackend{readErr: errors.New("backend down")}
	fb.setList(summaries())
	store := newStore(fb)
	ctx := context.Background()

	require.NoError(t, store.LoadList(ctx, sess, mailstore.Filter{}))

	err := store.SetRead(ctx, sess, 1, true)
	require.Error(t, err)
	assert.False(t, store.Summaries()[0].IsRead,
		"unacknowledged mutation must not change displayed state")
}

func TestSetStarredRoundTrip(t *testing.T) {
	fb := &fakeBackend{}
	fb.setList(summaries())
	store := newStore(fb)
	ctx := context.Background()

	require.NoError(t, store.LoadList(ctx, sess, mailstore.Filter{}))

	require.NoError(t, store.SetStarred(ctx, sess, 2, true))
	assert.True(t, store.Summaries()[1].IsStarred)

	require.NoError(t, store.SetStarred(ctx, sess, 2, false))
	assert.False(t, store.Summaries()[1].IsStarred)
}

func TestSelectDetailStaleDiscard(t *testing.T) {
	fb := &fakeBackend{}
	store := newStore(fb)

	entered := make(chan struct{})
	release := make(chan struct{})
	fb.getFunc = func(id int64) (*model.MessageDetail, error) {
		close(entered)
		<-release
		return &model.MessageDetail{
			MessageSummary: model.MessageSummary{ID: id},
		}, nil
	}

	type result struct {
		detail *model.MessageDetail
		err    error
	}
	done := make(chan result, 1)
	go func() {
		d, err := store.SelectDetail(context.Background(), sess, 1)
		done <- result{d, err}
	}()
	<-entered

	// The user navigated away before the fetch landed.
	store.ClearSelection()
	close(release)

	res := <-done
	require.NoError(t, res.err)
	assert.Nil(t, res.detail, "stale detail fetch must be ignored")
	assert.Nil(t, store.Selected())
}

func TestTriggerSyncPassesThrough(t *testing.T) {
	fb := &fakeBackend{}
	store := newStore(fb)

	require.NoError(t, store.TriggerSync(context.Background(), sess))
	assert.Equal(t, 1, fb.syncSeen)

	fb.mu.Lock()
	fb.syncErr = errors.New("backend down")
	fb.mu.Unlock()
	require.Error(t, store.TriggerSync(context.Background(), sess))
}

func TestUnreadCount(t *testing.T) {
	fb := &fakeBackend{}
	fb.setList(summaries())
	store := newStore(fb)

	require.NoError(t, store.LoadList(context.Background(), sess, mailstore.Filter{}))
	assert.Equal(t, 1, store.UnreadCount())
}
