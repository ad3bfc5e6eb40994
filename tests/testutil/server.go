// Package testutil provides a fake mail backend for tests: an
// httptest.Server speaking the same REST surface as the real backend,
// with mutable in-memory mail state.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/ajanik/maildeck/internal/model"
)

// Token is the bearer token the fake backend accepts.
const Token = "test-token"

// Server is an in-memory mail backend for client tests.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	emails   []model.MessageDetail
	synced   int
	sent     []map[string]string
	accounts []model.Account
}

// NewServer starts a fake backend seeded with the given messages. It is
// shut down automatically when the test completes.
func NewServer(t *testing.T, emails ...model.MessageDetail) *Server {
	t.Helper()

	s := &Server{emails: emails}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /emails", s.auth(s.handleList))
	mux.HandleFunc("GET /emails/{id}", s.auth(s.handleGet))
	mux.HandleFunc("PATCH /emails/{id}/read", s.auth(s.handleRead))
	mux.HandleFunc("PATCH /emails/{id}/star", s.auth(s.handleStar))
	mux.HandleFunc("POST /emails/send", s.auth(s.handleSend))
	mux.HandleFunc("POST /emails/sync", s.auth(s.handleSync))
	mux.HandleFunc("GET /settings/accounts", s.auth(s.handleAccounts))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// SyncCount returns how many sync triggers the backend has received.
func (s *Server) SyncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// Sent returns the payloads of all send requests received.
func (s *Server) Sent() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(s.sent))
	copy(out, s.sent)
	return out
}

// SetAccounts seeds the provider account list.
func (s *Server) SetAccounts(accounts []model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

// auth rejects requests without the expected bearer token.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	if r.PostFormValue("username") != "user@example.com" ||
		r.PostFormValue("password") != "secret" {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	writeJSON(w, map[string]any{
		"access_token": Token,
		"token_type":   "bearer",
		"user": model.User{
			ID:       1,
			Email:    "user@example.com",
			FullName: "Test User",
		},
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.MessageSummary, 0, len(s.emails))
	for _, e := range s.emails {
		if category != "" && category != "all" && e.AICategory != category {
			continue
		}
		out = append(out, e.MessageSummary)
	}
	writeJSON(w, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.find(r); e != nil {
		writeJSON(w, e)
		return
	}
	writeError(w, http.StatusNotFound, "Email not found")
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsRead bool `json:"is_read"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.find(r); e != nil {
		e.IsRead = body.IsRead
		writeJSON(w, e.MessageSummary)
		return
	}
	writeError(w, http.StatusNotFound, "Email not found")
}

func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsStarred bool `json:"is_starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.find(r); e != nil {
		e.IsStarred = body.IsStarred
		writeJSON(w, e.MessageSummary)
		return
	}
	writeError(w, http.StatusNotFound, "Email not found")
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	s.sent = append(s.sent, body)
	s.mu.Unlock()

	writeJSON(w, map[string]string{"status": "sent"})
}

func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.synced++
	s.mu.Unlock()
	writeJSON(w, map[string]string{"status": "sync started"})
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts == nil {
		writeJSON(w, []model.Account{})
		return
	}
	writeJSON(w, s.accounts)
}

// find locates the email addressed by the {id} path segment. Callers
// must hold the mutex.
func (s *Server) find(r *http.Request) *model.MessageDetail {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil
	}
	for i := range s.emails {
		if s.emails[i].ID == id {
			return &s.emails[i]
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
