package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates the base directory and returns a local storage.
// baseURL prefixes keys in download URLs, e.g. "http://localhost:8080/media".
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// fullPath maps a key below basePath; keys escaping it resolve to basePath itself
func (s *LocalStorage) fullPath(key string) string {
	cleanKey := filepath.Clean("/" + key)
	return filepath.Join(s.basePath, cleanKey)
}

// Write stores content through a temp file and an atomic rename
func (s *LocalStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	path := s.fullPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Read opens a stored file
func (s *LocalStorage) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks whether a file is stored under key
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	info, err := os.Stat(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return !info.IsDir(), nil
}

// GetURL returns baseURL + "/" + key; local URLs do not expire
func (s *LocalStorage) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrNotFound
	}
	return s.baseURL + "/" + strings.TrimPrefix(key, "/"), nil
}
