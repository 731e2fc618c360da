package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Theme is the color scheme that the operator last selected
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a user-supplied theme name
func ParseTheme(value string) (Theme, error) {
	switch Theme(value) {
	case ThemeLight, ThemeDark:
		return Theme(value), nil
	}
	return "", fmt.Errorf("unsupported theme '%s': expected '%s' or '%s'", value, ThemeLight, ThemeDark)
}

// fileContents is the on-disk layout of a FileStore: the credential keys sit next to
// the persisted UI preferences
type fileContents struct {
	Credential `yaml:",inline"`
	Theme      Theme `yaml:"theme,omitempty"`
}

// FileStore persists the credential in a YAML file in the operator's config directory.
// Every write replaces the whole file with a rename, so a concurrent reader sees
// either the old contents or the new contents and never a partially-cleared file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// DefaultFilePath returns the location of the credentials file within the user's
// config directory
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(dir, "tabularium", "session.yaml"), nil
}

// NewFileStore returns a FileStore backed by the file at the given path. The file and
// its parent directory are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the backing file
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return Credential{}, err
	}
	return contents.Credential, nil
}

func (s *FileStore) Set(ctx context.Context, c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return err
	}
	contents.Credential = c
	return s.write(contents)
}

// Clear removes the credential keys. The theme preference survives a logout.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.Set(ctx, Credential{})
}

// Theme returns the persisted theme, defaulting to ThemeLight
func (s *FileStore) Theme() (Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return "", err
	}
	if contents.Theme == "" {
		return ThemeLight, nil
	}
	return contents.Theme, nil
}

// SetTheme persists the operator's theme selection
func (s *FileStore) SetTheme(theme Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		return err
	}
	contents.Theme = theme
	return s.write(contents)
}

func (s *FileStore) read() (fileContents, error) {
	var contents fileContents
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return contents, nil
	}
	if err != nil {
		return contents, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return contents, fmt.Errorf("failed to parse credentials file %s: %w", s.path, err)
	}
	return contents, nil
}

func (s *FileStore) write(contents fileContents) error {
	data, err := yaml.Marshal(&contents)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credentials file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
