// Package session holds the signed-in user's bearer token and the
// currently connected database.
//
// The session is persisted to ~/.onyxprism/session.json so the CLI and
// the TUI share it across runs. At most one database is connected at a
// time: selecting a new one replaces the previous selection.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/onyxprism/prism/applog"
)

// Database identifies a database registered with the backend.
type Database struct {
	Database string `json:"database"`
	DBType   string `json:"db_type"`
	DBID     string `json:"db_id"`
}

// State is the persisted session record.
type State struct {
	AccessToken         string    `json:"access_token,omitempty"`
	TokenType           string    `json:"token_type,omitempty"`
	ConnectedDatabaseID string    `json:"connected_database_id,omitempty"`
	ConnectedDatabase   *Database `json:"connected_database,omitempty"`
}

// Store is a concurrency-safe session shared by every component.
type Store struct {
	mu     sync.RWMutex
	saveMu sync.Mutex // serializes snapshot+write so the file holds the latest state
	path   string     // empty: in-memory only
	state  State
}

// DefaultPath returns ~/.onyxprism/session.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".onyxprism", "session.json"), nil
}

// Open loads the session at path. A missing file yields an empty session.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory(initial State) *Store {
	return &Store{state: initial}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.ConnectedDatabase != nil {
		db := *st.ConnectedDatabase
		st.ConnectedDatabase = &db
	}
	return st
}

// Token returns the token type and access token.
func (s *Store) Token() (tokenType, token string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.TokenType, s.state.AccessToken
}

// SignedIn reports whether an access token is present.
func (s *Store) SignedIn() bool {
	_, token := s.Token()
	return token != ""
}

// Authorization returns the header value "<type> <token>", or "" when
// signed out.
func (s *Store) Authorization() string {
	typ, token := s.Token()
	if token == "" {
		return ""
	}
	if typ == "" {
		typ = "bearer"
	}
	return typ + " " + token
}

// ConnectedDatabaseID returns the active database id, or "".
func (s *Store) ConnectedDatabaseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ConnectedDatabaseID
}

// ConnectedDatabase returns a copy of the active database, or nil.
func (s *Store) ConnectedDatabase() *Database {
	return s.Snapshot().ConnectedDatabase
}

// SetToken records a successful sign-in.
func (s *Store) SetToken(tokenType, token string) error {
	s.mu.Lock()
	s.state.TokenType = tokenType
	s.state.AccessToken = token
	s.mu.Unlock()

	applog.Event("session", "signed in")
	return s.save()
}

// SetConnectedDatabase replaces the active database. nil disconnects.
func (s *Store) SetConnectedDatabase(db *Database) error {
	s.mu.Lock()
	if db == nil {
		s.state.ConnectedDatabaseID = ""
		s.state.ConnectedDatabase = nil
	} else {
		cp := *db
		s.state.ConnectedDatabaseID = cp.DBID
		s.state.ConnectedDatabase = &cp
	}
	s.mu.Unlock()

	if db == nil {
		applog.Event("session", "database disconnected")
	} else {
		applog.Event("session", "database connected: %s (%s)", db.Database, db.DBID)
	}
	return s.save()
}

// Clear removes the token and the database selection. Used on logout
// and whenever the backend answers 401.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()

	applog.Event("session", "session cleared")
	return s.save()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	st := s.Snapshot()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
