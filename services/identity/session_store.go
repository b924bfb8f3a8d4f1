package identity

import (
	"fmt"

	"github.com/gin-contrib/sessions"
)

const sessionKey = "device_id"

// SessionStore keeps the identity in the signed cookie session of a browser.
type SessionStore struct {
	session sessions.Session
}

func NewSessionStore(session sessions.Session) *SessionStore {
	return &SessionStore{session: session}
}

func (s *SessionStore) Load() (string, error) {
	id, ok := s.session.Get(sessionKey).(string)
	if !ok || id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

func (s *SessionStore) Save(id string) error {
	s.session.Set(sessionKey, id)
	if err := s.session.Save(); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}
