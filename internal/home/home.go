package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the quill home directory.
	DefaultDirName = ".quill"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// JournalFileName is the default LLM call journal.
	JournalFileName = "journal.db"

	// CreditsTokenFileName holds the CLI's credit token between invocations.
	CreditsTokenFileName = "credits_token"
)

// Dir represents the quill home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.quill).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// JournalPath returns the path to the LLM call journal.
func (d *Dir) JournalPath() string {
	return filepath.Join(d.path, JournalFileName)
}

// CreditsTokenPath returns the file the CLI stores its credit cookie in.
func (d *Dir) CreditsTokenPath() string {
	return filepath.Join(d.path, CreditsTokenFileName)
}

// EnsureExists creates the home directory if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ReadCreditsToken returns the stored CLI credit token, or "" if none.
func (d *Dir) ReadCreditsToken() (string, error) {
	data, err := os.ReadFile(d.CreditsTokenPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credits token: %w", err)
	}
	return string(data), nil
}

// WriteCreditsToken stores the CLI credit token, readable only by the owner.
func (d *Dir) WriteCreditsToken(token string) error {
	if err := d.EnsureExists(); err != nil {
		return err
	}
	if err := os.WriteFile(d.CreditsTokenPath(), []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to write credits token: %w", err)
	}
	return nil
}
