package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

// MockObjectStorage implements ObjectStorage in memory for testing
type MockObjectStorage struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

var _ cache.ObjectStorage = &MockObjectStorage{}

// NewMockObjectStorage creates a new mock object storage
func NewMockObjectStorage() *MockObjectStorage {
	return &MockObjectStorage{
		objects: make(map[string][]byte),
	}
}

// HasObject implements ObjectStorage
func (m *MockObjectStorage) HasObject(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[key]
	return exists, nil
}

// GetObject implements ObjectStorage
func (m *MockObjectStorage) GetObject(ctx context.Context, key string, dest string) (int64, error) {
	m.mu.RLock()
	content, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return 0, fmt.Errorf("object not found: %s", key)
	}

	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return 0, err
	}
	err = os.WriteFile(dest, content, 0644)
	if err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

// UploadObject implements ObjectStorage
func (m *MockObjectStorage) UploadObject(ctx context.Context, key string, src string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
	return nil
}

// ListObjects implements ObjectStorage
func (m *MockObjectStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result, nil
}

// DeleteObjects implements ObjectStorage
func (m *MockObjectStorage) DeleteObjects(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

// AddObject adds an object to the mock storage
func (m *MockObjectStorage) AddObject(key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content
}

// Object returns the content of an object and whether it exists
func (m *MockObjectStorage) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.objects[key]
	return content, ok
}

// Keys returns all object keys, sorted
func (m *MockObjectStorage) Keys() []string {
	res, _ := m.ListObjects(context.Background(), "")
	return res
}
