// Package auth provides the client-local bearer token store attached to
// the push-channel handshake and to every snapshot/action request.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken is returned when the store holds no usable credential.
var ErrNoToken = errors.New("no bearer token available")

// TokenStore supplies the current bearer credential. Implementations must
// be safe for concurrent use.
type TokenStore interface {
	// Token returns the current bearer token.
	Token() (string, error)
}

// StaticStore returns a fixed token. Useful for tests and for sessions
// that receive their credential at construction time.
type StaticStore struct {
	token string
}

// NewStaticStore creates a store holding the given token.
func NewStaticStore(token string) *StaticStore {
	return &StaticStore{token: token}
}

// Token returns the fixed token.
func (s *StaticStore) Token() (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// FileStore reads the bearer token from a file on every call, so a rotated
// credential is picked up without restarting the session.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given token file.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path is required")
	}
	return &FileStore{path: path}, nil
}

// Token reads and trims the token file contents.
func (s *FileStore) Token() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
