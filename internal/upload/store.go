// Package upload keeps uploaded content in a temporary directory until it is
// attached to a post, together with a bounded cache of computed properties.
package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for tokens not produced by Store.Save.
	ErrInvalidToken = errors.New("invalid upload token")
	// ErrNotFound is returned when a token does not name a stored upload.
	ErrNotFound = errors.New("upload not found")
)

// Store is a flat directory of uploads named by their token.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// NewToken returns a fresh token of the form <uuid>.<ext>.
func NewToken(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !validExtension(ext) {
		return "", fmt.Errorf("%w: bad extension %q", ErrInvalidToken, ext)
	}
	return uuid.NewString() + "." + ext, nil
}

// ValidateToken checks that token has the form <uuid>.<ext>, which also
// rules out path separators and parent references.
func ValidateToken(token string) error {
	name, ext, ok := strings.Cut(token, ".")
	if !ok || !validExtension(ext) {
		return ErrInvalidToken
	}
	if _, err := uuid.Parse(name); err != nil || len(name) != 36 {
		return ErrInvalidToken
	}
	return nil
}

// TokenExtension returns the extension part of a valid token.
func TokenExtension(token string) string {
	_, ext, _ := strings.Cut(token, ".")
	return ext
}

func validExtension(ext string) bool {
	if ext == "" || len(ext) > 8 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Path returns the file path of a token.
func (s *Store) Path(token string) (string, error) {
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, token), nil
}

// Save writes data under a new token with the given extension.
func (s *Store) Save(data []byte, ext string) (string, error) {
	token, err := NewToken(ext)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, token)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return token, nil
}

// Read returns the content of an upload.
func (s *Store) Read(token string) ([]byte, error) {
	path, err := s.Path(token)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // token validated above
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// Remove deletes an upload. Removing a missing upload is not an error.
func (s *Store) Remove(token string) error {
	path, err := s.Path(token)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}
