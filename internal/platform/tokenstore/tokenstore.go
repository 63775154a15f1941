// Package tokenstore persists the bearer token in two independent locations:
// a cookie record named "jwt" with a 7-day expiry and a key-value entry named
// "token". Either location may be cleared out from under the client; reads
// consult the cookie first and fall through to the key-value entry.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// CookieName mirrors the browser cookie the web client writes.
	CookieName = "jwt"
	// EntryKey is the key-value entry the web client writes alongside it.
	EntryKey = "token"

	// CookieTTL matches the server-enforced 7-day token validity.
	CookieTTL = 7 * 24 * time.Hour

	cookieFile = "cookies.json"
	stateFile  = "state.json"
)

// Store is the durable home of exactly one bearer token.
type Store interface {
	Put(token string) error
	Get() (string, bool)
	Clear() error
}

type cookieRecord struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// FileStore keeps the cookie record and the key-value entry as two JSON
// files under a state directory, each written with 0600 permissions.
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewFileStore creates the state directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Put writes the token to both backing locations.
func (s *FileStore) Put(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := map[string]cookieRecord{
		CookieName: {Name: CookieName, Value: token, Expires: s.now().Add(CookieTTL)},
	}
	if err := s.writeJSON(cookieFile, rec); err != nil {
		return err
	}
	return s.writeJSON(stateFile, map[string]string{EntryKey: token})
}

// Get returns the stored token. The cookie record wins when present and
// unexpired; otherwise the key-value entry is consulted.
func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cookies map[string]cookieRecord
	if err := s.readJSON(cookieFile, &cookies); err == nil {
		if c, ok := cookies[CookieName]; ok && c.Value != "" && s.now().Before(c.Expires) {
			return c.Value, true
		}
	}

	var entries map[string]string
	if err := s.readJSON(stateFile, &entries); err == nil {
		if tok := entries[EntryKey]; tok != "" {
			return tok, true
		}
	}
	return "", false
}

// Clear erases both backing locations. Missing files are not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, name := range []string{cookieFile, stateFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("clearing %s: %w", name, err)
			}
		}
	}
	return firstErr
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// MemoryStore is an in-memory Store for tests and the sandbox.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Put(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
