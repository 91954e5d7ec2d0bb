package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore implements Store in memory for tests and sandboxing.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*object
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*object)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put stores body under bucket/key.
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("memory storage: bucket and key are required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("memory storage: read body: %w", err)
	}
	m.mu.Lock()
	m.objects[objectKey(bucket, key)] = &object{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

// Get writes the object at bucket/key into w.
func (m *MemoryStore) Get(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	obj, ok := m.objects[objectKey(bucket, key)]
	m.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	n, err := w.Write(obj.data)
	return int64(n), err
}

// Object returns a copy of the stored bytes.
func (m *MemoryStore) Object(bucket, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Keys lists the keys stored in bucket whose name starts with prefix.
func (m *MemoryStore) Keys(bucket, prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	full := objectKey(bucket, prefix)
	keys := make([]string, 0)
	for k := range m.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys
}
