package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps objects in process memory. Used for local runs and tests.
type MemoryStore struct {
	bucket string

	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore(bucket string) *MemoryStore {
	if strings.TrimSpace(bucket) == "" {
		bucket = "photos"
	}
	return &MemoryStore{bucket: bucket, objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(_ context.Context, key string, content []byte, contentType string) error {
	buf := make([]byte, len(content))
	copy(buf, content)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Key: key, ContentType: contentType, Content: buf}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &obj, nil
}

func (m *MemoryStore) URL(key string) string {
	return "memory://" + m.bucket + "/" + strings.TrimLeft(key, "/")
}

// Keys returns the stored keys in no particular order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
