package clientcache

import (
	"os"
	"sync"

	json "github.com/goccy/go-json"
)

// Storage is the persisted layer behind the in-memory cache. It mirrors a
// browser's string key/value store: best-effort durability, nothing more.
// Callers of the cache never see a Storage error; failures are logged and
// the in-memory layer remains the source of truth.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}

// MemoryStorage is a Storage backed by a plain map. It is the fallback
// for environments without a durable layer and the default in tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	return value, ok, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *MemoryStorage) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	return keys, nil
}

// NopStorage discards writes and never finds a key. It keeps the cache
// fully functional when persistence is disabled.
type NopStorage struct{}

func (NopStorage) Get(string) (string, bool, error) { return "", false, nil }
func (NopStorage) Set(string, string) error         { return nil }
func (NopStorage) Remove(string) error              { return nil }
func (NopStorage) Keys() ([]string, error)          { return nil, nil }

// FileStorage persists entries as a single JSON document on disk. Every
// mutation rewrites the file; the expected cardinality is small.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a file-backed storage at path. The file is
// created lazily on first write.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return "", false, err
	}
	value, ok := items[key]
	return value, ok, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	items[key] = value
	return s.save(items)
}

func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	delete(items, key)
	return s.save(items)
}

func (s *FileStorage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	items := make(map[string]string)
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *FileStorage) save(items map[string]string) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
