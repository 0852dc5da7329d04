package partition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MemoryStorage is a Storage held in a map, for tests and dry runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	Bucket  string
	Objects map[string][]byte
	Types   map[string]string
	// PutErr, when set, is returned by every Put.
	PutErr error
}

func NewMemoryStorage(bucket string) *MemoryStorage {
	return &MemoryStorage{Bucket: bucket, Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (m *MemoryStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	if _, ok := m.Objects[key]; ok {
		return errors.Wrapf(ErrKeyCollision, "object %v", key)
	}
	m.Objects[key] = append([]byte(nil), data...)
	m.Types[key] = contentType
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, errors.Wrapf(ErrKeyNotFound, "object %v", key)
	}
	return data, nil
}

func (m *MemoryStorage) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.Objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStorage) Move(ctx context.Context, src string, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[src]
	if !ok {
		return errors.Wrapf(ErrKeyNotFound, "object %v", src)
	}
	m.Objects[dst] = data
	m.Types[dst] = m.Types[src]
	delete(m.Objects, src)
	delete(m.Types, src)
	return nil
}

func (m *MemoryStorage) URL(key string) string {
	return fmt.Sprintf("mem://%v/%v", m.Bucket, key)
}
