package store

import (
	"context"
	"sync"

	"github.com/atmx/prediction-amm/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	kv     map[Key][]uint64
	ledger []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv: make(map[Key][]uint64),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]uint64(nil), data...), nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, data []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.kv[key] = append([]uint64(nil), data...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.kv, key)
	return nil
}

func (s *MemoryStore) Scan(_ context.Context, kind uint64) (map[Key][]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key][]uint64)
	for k, v := range s.kv {
		if k[0] == kind {
			out[k] = append([]uint64(nil), v...)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntriesByMarket(_ context.Context, marketID uint64) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.MarketID == marketID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetLedgerEntriesByPlayer(_ context.Context, playerID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.PlayerID == playerID {
			result = append(result, e)
		}
	}
	return result, nil
}
