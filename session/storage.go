package session

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Storage.Load when the key is absent.
	ErrNotFound = errors.New("session storage key not found")
	// ErrStorageUnavailable wraps backend failures from a Storage.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// Storage persists opaque blobs by key.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage is a process-local Storage, the equivalent of tab-scoped
// storage. It is safe for concurrent use.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.data[key] = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
