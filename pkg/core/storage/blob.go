// Package storage archives raw filing documents in object storage so every
// ingestion run keeps a replayable copy of its source material.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = fmt.Errorf("blob not found")

// BlobStore is a write-once archive of raw filing bytes keyed by storage key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// SignedURL returns a time-limited download URL for the object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MemoryBlobStore keeps objects in process memory. Used in tests and when no
// bucket is configured.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ BlobStore = (*MemoryBlobStore)(nil)

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = buf
	return nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return data, nil
}

func (m *MemoryBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key]; !ok {
		return "", fmt.Errorf("sign %q: %w", key, ErrNotFound)
	}
	return "memory://" + key, nil
}
