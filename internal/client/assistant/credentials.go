package assistant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Keys checked, in order, for a bearer token.
const (
	TokenKey       = "auth_token"
	AccessTokenKey = "access_token"
)

// CredentialProvider supplies the bearer token attached to requests.
type CredentialProvider interface {
	Token() (string, bool)
}

// Store is a string key/value store such as the host's local storage.
type Store interface {
	Get(key string) (string, bool)
}

// StaticToken always yields the same token.
type StaticToken string

func (t StaticToken) Token() (string, bool) {
	token := strings.TrimSpace(string(t))
	return token, token != ""
}

// StoreCredentials reads the token from a Store, trying each key in order.
type StoreCredentials struct {
	Store Store
	Keys  []string
}

// NewStoreCredentials uses the default key order.
func NewStoreCredentials(store Store) StoreCredentials {
	return StoreCredentials{Store: store, Keys: []string{TokenKey, AccessTokenKey}}
}

func (c StoreCredentials) Token() (string, bool) {
	if c.Store == nil {
		return "", false
	}
	for _, key := range c.Keys {
		if value, ok := c.Store.Get(key); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value, true
			}
		}
	}
	return "", false
}

// MapStore is an in-memory Store.
type MapStore map[string]string

func (m MapStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// FileStore is a YAML backed Store persisted on disk. A missing file reads as
// empty.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

// OpenFileStore loads path if it exists.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("read storage %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &fs.values); err != nil {
		return nil, fmt.Errorf("parse storage %s: %w", path, err)
	}
	if fs.values == nil {
		fs.values = make(map[string]string)
	}
	return fs, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and writes the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write storage %s: %w", s.path, err)
	}
	return nil
}
