package kvstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory
type MemoryBackend struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

// Get returns a copy of the document under key
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of value under key
func (b *MemoryBackend) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs[key] = append([]byte(nil), value...)
	return nil
}

// Update runs fn while holding the backend lock
func (b *MemoryBackend) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var current []byte
	if data, ok := b.docs[key]; ok {
		current = append([]byte(nil), data...)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	b.docs[key] = next
	return nil
}
