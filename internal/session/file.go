package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDir is the session directory relative to the user's home.
	DefaultDir = ".config/chapterbase"

	// FileName is the name of the session document inside the directory.
	FileName = "session.json"
)

// FileStore persists the session as a single JSON document.
//
// SECURITY: The document holds bearer credentials.
//   - The directory is created with 0700 permissions
//   - The file is written with 0600 permissions via temp file and rename
//   - Token values are never logged, only the session id
type FileStore struct {
	*docStore
	file *sessionFile
}

// NewFileStore creates a store backed by <dir>/session.json. An empty dir
// selects ~/.config/chapterbase. The file is read lazily on first access.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	f := &sessionFile{dir: dir, path: filepath.Join(dir, FileName)}
	return &FileStore{docStore: newDocStore(f), file: f}, nil
}

// Path returns the location of the session document.
func (s *FileStore) Path() string {
	return s.file.path
}

// Dir returns the directory holding the session document.
func (s *FileStore) Dir() string {
	return s.file.dir
}

// Reload discards the cached session so the next access reads the file.
func (s *FileStore) Reload() {
	s.invalidate()
}

var _ Store = (*FileStore)(nil)

// sessionFile is the backend of a FileStore.
type sessionFile struct {
	dir  string
	path string
}

func (f *sessionFile) describe() string {
	return f.path
}

// read returns the stored document. A missing file is an empty session.
func (f *sessionFile) read() (document, error) {
	// #nosec G304 -- path is derived from the configured session directory
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return doc, nil
}

// write replaces the document atomically. An empty document removes the file.
func (f *sessionFile) write(doc document) error {
	if doc == (document{}) {
		err := os.Remove(f.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpPath)
	}()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict session file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
