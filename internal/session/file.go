package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FileStore keeps the credential in a single file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path. An empty path selects
// DefaultTokenPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultTokenPath()
	}
	return &FileStore{path: path}
}

// Path returns the file the credential is written to.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Credential() (string, bool) {
	if f == nil || f.path == "" {
		return "", false
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

func (f *FileStore) SetCredential(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(strings.TrimSpace(token)), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (f *FileStore) ClearCredential() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// DefaultTokenPath returns the default credential file under the user cache dir.
func DefaultTokenPath() string {
	return filepath.Join(userCacheDir(), "inboxchat", "session.token")
}

// DefaultDatabasePath returns the default SQLite database under the user cache dir.
func DefaultDatabasePath() string {
	return filepath.Join(userCacheDir(), "inboxchat", "session.db")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		return os.TempDir()
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
