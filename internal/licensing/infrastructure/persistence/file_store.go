package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/security"
)

// FileStore keeps all keys in a single JSON object on disk.
// Every write rewrites the whole file.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
}

var _ domain.KeyValueStore = (*FileStore)(nil)

// NewFileStore creates a file-backed store. The file is created on first write.
func NewFileStore(filePath string) (*FileStore, error) {
	cleanPath, err := security.ValidateFilePath(filePath)
	if err != nil {
		return nil, fmt.Errorf("invalid store path: %w", err)
	}
	return &FileStore{filePath: cleanPath}, nil
}

// FilePath returns the path to the store file.
func (s *FileStore) FilePath() string {
	return s.filePath
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (s *FileStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(values), nil
}

func (s *FileStore) Close() error {
	return nil
}

// load returns an empty map when the file does not exist yet (first run).
func (s *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := security.SafeReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", s.filePath, err)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	// user read/write only
	return security.SafeWriteFile(s.filePath, data, 0600)
}
