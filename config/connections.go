// connections.go manages saved connect-form profiles.
//
// Profiles live in ~/.onyxprism/connections.json so users can re-run
// onboarding against a database without retyping credentials. Passwords
// are only present when the user opted in.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Connection is a named, saveable database connect form.
type Connection struct {
	Name     string `json:"name"`
	DBType   string `json:"db_type"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Database string `json:"database"`
}

// DBTypes lists the database engines the backend can connect to.
var DBTypes = []string{"postgresql", "mysql", "sqlite", "mssql"}

// ConnectionStore is the profile file. Connections is kept sorted by name.
type ConnectionStore struct {
	path        string
	Connections []Connection `json:"connections"`
}

// NewConnectionStore loads dir/connections.json, creating dir if needed.
func NewConnectionStore(dir string) (*ConnectionStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	s := &ConnectionStore{path: filepath.Join(dir, "connections.json")}

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.sort()
	return s, nil
}

// Save replaces the file atomically so a crash never leaves half a file.
func (s *ConnectionStore) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Add inserts conn, or replaces the profile with the same name. Names
// are trimmed; a blank name is ignored.
func (s *ConnectionStore) Add(conn Connection) {
	conn.Name = strings.TrimSpace(conn.Name)
	if conn.Name == "" {
		return
	}
	if i := s.Index(conn.Name); i >= 0 {
		s.Connections[i] = conn
		return
	}
	s.Connections = append(s.Connections, conn)
	s.sort()
}

// Delete removes the profile called name, if any.
func (s *ConnectionStore) Delete(name string) {
	if i := s.Index(name); i >= 0 {
		s.Connections = append(s.Connections[:i], s.Connections[i+1:]...)
	}
}

// Get looks a profile up by name.
func (s *ConnectionStore) Get(name string) (Connection, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Connections[i], true
	}
	return Connection{}, false
}

// Index returns the position of name in Connections, or -1.
func (s *ConnectionStore) Index(name string) int {
	for i, c := range s.Connections {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *ConnectionStore) sort() {
	sort.SliceStable(s.Connections, func(i, j int) bool {
		return s.Connections[i].Name < s.Connections[j].Name
	})
}

// DefaultConnection is the form a new profile starts from.
func DefaultConnection() Connection {
	return Connection{
		DBType: "postgresql",
		Host:   "localhost",
		Port:   "5432",
	}
}
