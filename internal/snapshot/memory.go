package snapshot

import (
	"context"
	"sync"

	"pomodoro/focus/internal/model"
)

// MemoryStore is a process-local Store. It stores the encoded bytes so that
// reads go through the same decoding path as the durable stores.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the stored bytes.
func (s *MemoryStore) Load(ctx context.Context) (*model.TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return decode(s.data)
}

// Save encodes and keeps snapshot.
func (s *MemoryStore) Save(ctx context.Context, snapshot model.TimerSnapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.saves++
	s.mu.Unlock()
	return nil
}

// Clear drops the stored bytes.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

// SetRaw stores arbitrary bytes, bypassing validation.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	s.data = append([]byte(nil), data...)
	s.mu.Unlock()
}

// Saves reports how many successful writes happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
