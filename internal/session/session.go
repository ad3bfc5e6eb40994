// Package session defines the credential object that authorizes calls
// against the mail backend. A Session is passed explicitly to every
// protected operation rather than read from ambient state, so tests can
// inject a fake and nothing hides a dependency on the signed-in user.
package session

import "github.com/ajanik/maildeck/internal/model"

// Session holds the bearer token and user profile returned by a
// successful login or registration. It lives for the duration of the
// program run (optionally persisted to the system keyring between runs).
type Session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Valid reports whether the session carries a usable bearer token.
// An invalid session is the sole gate for protected views.
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}
