// Package credentials persists the app token the box issues when the
// gateway is paired. The file holds the raw token string and nothing else.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	// tokenDirPerm is the permission mode for the directory holding the token.
	tokenDirPerm = fs.FileMode(0o700)

	// tokenFilePerm is the permission mode for the token file.
	tokenFilePerm = fs.FileMode(0o600)
)

// Store reads and writes the app token at a fixed path.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path. The file and its
// directory are created on the first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the token file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored app token, or "" when no token has been saved.
// A missing file is not an error.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("reading app token: %w", err)
	}

	return strings.TrimRight(string(data), "\r\n"), nil
}

// Save replaces the stored app token. The token is written to a temp
// file in the same directory and renamed over the target, so a crash
// leaves either the old token or the new one. Concurrent writers in
// other processes are serialized through an advisory lock file.
func (s *Store) Save(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, tokenDirPerm); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking token file: %w", err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, tokenFilePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
