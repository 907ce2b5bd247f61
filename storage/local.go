package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage local file system archive
type LocalStorage struct {
	basePath string
}

// NewLocalStorage create local archive rooted at basePath
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./data/receipts"
	}

	// Ensure directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Save writes through a temp file so a crash never leaves a partial record
func (s *LocalStorage) Save(ctx context.Context, key string, data []byte) error {
	filePath := filepath.Join(s.basePath, key)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Get read an archived object
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Exists check if object exists
func (s *LocalStorage) Exists(ctx context.Context, key string) bool {
	_, err := os.Stat(filepath.Join(s.basePath, key))
	return err == nil
}
