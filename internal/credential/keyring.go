// Package credential persists the session credential in the system
// keyring, taking the place a browser client gives to localStorage.
package credential

import (
	"encoding/json"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/ajanik/maildeck/internal/session"
)

const (
	serviceName = "maildeck"
	sessionKey  = "session"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/maildeck/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("maildeck-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// SaveSession stores the session (token + profile) in the system keyring.
func SaveSession(sess *session.Session) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = ring.Set(keyring.Item{
		Key:  sessionKey,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	return nil
}

// LoadSession retrieves a previously stored session. A missing entry is
// not an error; it returns (nil, nil) and the caller falls through to
// the login view.
func LoadSession() (*session.Session, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(sessionKey)
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	return &sess, nil
}

// ClearSession removes the stored session from the system keyring.
func ClearSession() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(sessionKey)
	if err != nil && err != keyring.ErrKeyNotFound {
		return fmt.Errorf("clearing session: %w", err)
	}

	return nil
}
