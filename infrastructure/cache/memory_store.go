package cache

import (
	"context"
	"sync"

	"github.com/ahrav/shinise-scout/internal/ports"
)

// MemoryStore is a process-local DocumentStore for single-instance runs and
// tests. Documents live until the process exits.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]ports.Document
}

var _ ports.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]ports.Document)}
}

// GetDoc implements ports.DocumentStore.
func (m *MemoryStore) GetDoc(ctx context.Context, collection, key string) (*ports.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection+"/"+key]
	if !ok {
		return nil, nil
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return &doc, nil
}

// SetDoc implements ports.DocumentStore.
func (m *MemoryStore) SetDoc(ctx context.Context, collection, key string, doc ports.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc.Data = append([]byte(nil), doc.Data...)
	m.mu.Lock()
	m.docs[collection+"/"+key] = doc
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
