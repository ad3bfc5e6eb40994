// Package mailstore holds the client-side mail state: the current list
// of message summaries, the selected message detail, and the rules that
// keep both consistent with the backend under concurrent refreshes.
package mailstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajanik/maildeck/internal/model"
	"github.com/ajanik/maildeck/internal/session"
)

// Backend is the slice of the API client the store depends on.
type Backend interface {
	ListEmails(
		ctx context.Context,
		sess *session.Session,
		category, search string,
	) ([]model.MessageSummary, error)
	GetEmail(
		ctx context.Context, sess *session.Session, id int64,
	) (*model.MessageDetail, error)
	SetRead(
		ctx context.Context, sess *session.Session, id int64, isRead bool,
	) error
	SetStarred(
		ctx context.Context, sess *session.Session, id int64, isStarred bool,
	) error
	TriggerSync(ctx context.Context, sess *session.Session) error
}

// Filter selects which summaries a list load should produce.
type Filter struct {
	// Category is delegated to the backend ("focused", "other", or
	// empty for all).
	Category string

	// SearchText is matched client-side; see Matches.
	SearchText string
}

// Matches reports whether the summary satisfies the search text:
// a case-insensitive substring match against subject, sender address,
// sender display name, and preview. An empty search matches everything.
//
// Search is always applied client-side over the fetched set, never
// delegated to the backend, so the displayed list provably satisfies
// this predicate regardless of what filter semantics the backend has.
func (f Filter) Matches(s model.MessageSummary) bool {
	if f.SearchText == "" {
		return true
	}
	needle := strings.ToLower(f.SearchText)
	for _, hay := range []string{
		s.Subject, s.FromAddress, s.FromName, s.Preview,
	} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// Store is the client-side source of mail view state. All access is
// mutex-guarded; loads run concurrently as Bubble Tea commands and the
// store discards any result that a newer request has superseded.
type Store struct {
	backend Backend
	logger  zerolog.Logger

	mu        sync.Mutex
	summaries []model.MessageSummary
	filter    Filter
	selected  *model.MessageDetail

	// listSeq is the sequence number of the most recently issued list
	// load. A load only applies its result while it still holds the
	// newest sequence, so a late response from a superseded fetch can
	// never overwrite fresher state.
	listSeq uint64

	// selectSeq is bumped on every selection change; a detail fetch
	// started before the bump is ignored when it lands.
	selectSeq uint64

	syncReloadDelay time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithSyncReloadDelay overrides how long callers should wait after
// TriggerSync before reloading the list.
func WithSyncReloadDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.syncReloadDelay = d
		}
	}
}

// New creates an empty Store backed by the given client.
func New(backend Backend, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		backend:         backend,
		logger:          logger.With().Str("module", "mailstore").Logger(),
		syncReloadDelay: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadList fetches summaries for the filter and wholesale-replaces the
// held set. The category is delegated to the backend; search text is
// applied locally per Filter.Matches. If a newer load was issued while
// this one was in flight, the result (or error) is discarded and the
// held state is untouched. A failed fetch likewise leaves prior state
// unchanged.
func (s *Store) LoadList(
	ctx context.Context, sess *session.Session, filter Filter,
) error {
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	fetched, err := s.backend.ListEmails(ctx, sess, filter.Category, "")

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.listSeq {
		s.logger.Debug().
			Uint64("seq", seq).
			Uint64("latest", s.listSeq).
			Msg("discarding superseded list load")
		return nil
	}

	if err != nil {
		return fmt.Errorf("loading message list: %w", err)
	}

	matched := make([]model.MessageSummary, 0, len(fetched))
	for _, m := range fetched {
		if filter.Matches(m) {
			matched = append(matched, m)
		}
	}

	s.summaries = matched
	s.filter = filter
	return nil
}

// Reload re-runs LoadList with the currently applied filter.
func (s *Store) Reload(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	return s.LoadList(ctx, sess, filter)
}

// SelectDetail fetches the full message for id and makes it the single
// selected detail. The summary list is not touched. A selection change
// made while the fetch is in flight causes the result to be ignored.
func (s *Store) SelectDetail(
	ctx context.Context, sess *session.Session, id int64,
) (*model.MessageDetail, error) {
	s.mu.Lock()
	s.selectSeq++
	gen := s.selectSeq
	s.mu.Unlock()

	detail, err := s.backend.GetEmail(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("loading message %d: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.selectSeq {
		s.logger.Debug().Int64("id", id).Msg("discarding stale detail load")
		return nil, nil
	}

	s.selected = detail
	return detail, nil
}

// ClearSelection drops the selected detail and abandons interest in any
// in-flight detail fetch.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectSeq++
	s.selected = nil
}

// SetRead issues the read-flag mutation and, only after the backend
// acknowledges it, updates the locally displayed flag in place. On
// failure the displayed state is left untouched so it never diverges
// from the backend.
func (s *Store) SetRead(
	ctx context.Context, sess *session.Session, id int64, isRead bool,
) error {
	if err := s.backend.SetRead(ctx, sess, id, isRead); err != nil {
		return fmt.Errorf("marking message %d read=%v: %w", id, isRead, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.summaries {
		if s.summaries[i].ID == id {
			s.summaries[i].IsRead = isRead
		}
	}
	if s.selected != nil && s.selected.ID == id {
		s.selected.IsRead = isRead
	}
	return nil
}

// SetStarred issues the star-flag mutation; same acknowledgment rule as
// SetRead.
func (s *Store) SetStarred(
	ctx context.Context, sess *session.Session, id int64, isStarred bool,
) error {
	if err := s.backend.SetStarred(ctx, sess, id, isStarred); err != nil {
		return fmt.Errorf("starring message %d=%v: %w", id, isStarred, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.summaries {
		if s.summaries[i].ID == id {
			s.summaries[i].IsStarred = isStarred
		}
	}
	if s.selected != nil && s.selected.ID == id {
		s.selected.IsStarred = isStarred
	}
	return nil
}

// TriggerSync asks the backend to ingest new mail from upstream
// providers. The call is fire-and-forget; the backend gives no
// completion signal, so callers should reload the list after
// SyncReloadDelay has passed.
func (s *Store) TriggerSync(
	ctx context.Context, sess *session.Session,
) error {
	if err := s.backend.TriggerSync(ctx, sess); err != nil {
		return fmt.Errorf("triggering sync: %w", err)
	}
	return nil
}

// SyncReloadDelay is how long to wait after TriggerSync before reloading.
func (s *Store) SyncReloadDelay() time.Duration {
	return s.syncReloadDelay
}

// Summaries returns a copy of the currently held summary set.
func (s *Store) Summaries() []model.MessageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MessageSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// Selected returns a copy of the selected detail, or nil.
func (s *Store) Selected() *model.MessageDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	detail := *s.selected
	return &detail
}

// Filter returns the filter applied by the last successful load.
func (s *Store) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// UnreadCount returns the number of held summaries not yet read.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.summaries {
		if !m.IsRead {
			count++
		}
	}
	return count
}
