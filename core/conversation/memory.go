package conversation

import (
	"context"
	"sync"
)

// MemoryStore keeps encoded records in process memory.
// Records pass through the codec, so a state read back is the state a remote store would return.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64][]byte
}

// NewMemoryStore constructs an empty in-memory Store for tests and development.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64][]byte)}
}

// Get returns the stored state for chatID or Start.
func (m *MemoryStore) Get(ctx context.Context, chatID int64) (State, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "get", ChatID: chatID, Err: err}
	}
	m.mu.RLock()
	raw, ok := m.records[chatID]
	m.mu.RUnlock()
	if !ok {
		return Start{}, nil
	}
	st, err := Decode(raw)
	if err != nil {
		return nil, &StoreError{Op: "get", ChatID: chatID, Err: err}
	}
	return st, nil
}

// Set upserts the state for chatID.
func (m *MemoryStore) Set(ctx context.Context, chatID int64, st State) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "set", ChatID: chatID, Err: err}
	}
	raw, err := Encode(st)
	if err != nil {
		return &StoreError{Op: "set", ChatID: chatID, Err: err}
	}
	m.mu.Lock()
	m.records[chatID] = raw
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored conversations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Delete removes the record for chatID.
func (m *MemoryStore) Delete(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, chatID)
}

// Clear removes every record.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[int64][]byte)
}
