package client

import (
	"encoding/json"
	"os"
	"path/filepath"

	usermodel "VChat/module/user/model"

	"github.com/pkg/errors"
)

// Session is the authenticated identity plus its token. It survives process
// restarts through the SessionStore file.
type Session struct {
	Token string          `json:"token"`
	User  *usermodel.User `json:"user"`
}

// SessionStore persists the session as a JSON file, the CLI equivalent of
// browser local storage.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load returns the persisted session, or nil when none exists.
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	if sess.Token == "" || sess.User == nil {
		return nil, nil
	}
	return sess, nil
}

func (s *SessionStore) Save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "session dir")
		}
	}
	return errors.Wrap(os.WriteFile(s.path, data, 0o600), "write session")
}

// Clear removes the persisted session; clearing an absent file is not an
// error.
func (s *SessionStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "clear session")
	}
	return nil
}
