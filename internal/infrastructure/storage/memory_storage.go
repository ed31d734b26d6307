package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	dispatchapp "github.com/erp/sourcing/internal/application/dispatch"
)

// Ensure MemoryObjectStorage implements ObjectStorage
var _ dispatchapp.ObjectStorage = (*MemoryObjectStorage)(nil)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryObjectStorage keeps objects in process memory.
// It backs local development and tests; objects are lost on restart.
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

// NewMemoryObjectStorage creates an empty store whose URLs start with baseURL
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "memory://artifacts"
	}
	return &MemoryObjectStorage{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Put stores a copy of data under key
func (s *MemoryObjectStorage) Put(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Get returns a copy of the object stored under key
func (s *MemoryObjectStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return append([]byte(nil), obj.data...), nil
}

// Delete removes the object stored under key
func (s *MemoryObjectStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// URL returns the object's link under the configured base URL
func (s *MemoryObjectStorage) URL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	return joinURL(s.baseURL, key), nil
}

// Keys lists stored keys in sorted order
func (s *MemoryObjectStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentType returns the content type recorded for key
func (s *MemoryObjectStorage) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}
