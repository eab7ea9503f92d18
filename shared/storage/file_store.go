package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const stateFileName = "alert_state.json"

// FileStore persists all keys in a single JSON document inside the data directory
type FileStore struct {
	filePath string
	values   map[string]json.RawMessage
	mu       sync.RWMutex
}

// NewFileStore creates a file-backed store, loading any existing state
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileStore{
		filePath: filepath.Join(dataDir, stateFileName),
		values:   make(map[string]json.RawMessage),
	}

	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load state file: %w", err)
	}

	return store, nil
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	value, ok := fs.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (fs *FileStore) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.values[key] = append(json.RawMessage(nil), value...)
	return fs.save()
}

func (fs *FileStore) Delete(_ context.Context, keys ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, key := range keys {
		delete(fs.values, key)
	}
	return fs.save()
}

func (fs *FileStore) Close() error {
	return nil
}

// load reads the state document from disk
func (fs *FileStore) load() error {
	file, err := os.Open(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// First run, start empty
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&fs.values); err != nil {
		return fmt.Errorf("failed to decode state file: %w", err)
	}
	if fs.values == nil {
		fs.values = make(map[string]json.RawMessage)
	}
	return nil
}

// save rewrites the state document through a temp file so a crash never leaves it truncated
func (fs *FileStore) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), stateFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fs.values); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, fs.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
