package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/prediction-amm/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Set(ctx context.Context, key Key, data []uint64) error {
	if err := s.primary.Set(ctx, key, data); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, kvKey(key))
	return nil
}

// SetMany forwards to the primary's batch path when it has one.
func (s *CachedStore) SetMany(ctx context.Context, entries map[Key][]uint64) error {
	if err := SetAll(ctx, s.primary, entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, kvKey(k))
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, key Key) error {
	if err := s.primary.Delete(ctx, key); err != nil {
		return err
	}
	s.rdb.Del(ctx, kvKey(key))
	return nil
}

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if err := s.primary.InsertLedgerEntry(ctx, entry); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketHistoryKey(entry.MarketID), playerHistoryKey(entry.PlayerID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Get(ctx context.Context, key Key) ([]uint64, error) {
	data, err := s.rdb.Get(ctx, kvKey(key)).Bytes()
	if err == nil {
		var words []uint64
		if json.Unmarshal(data, &words) == nil {
			return words, nil
		}
	}

	// Cache miss: read from primary.
	words, err := s.primary.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, kvKey(key), words)
	return words, nil
}

func (s *CachedStore) GetLedgerEntriesByMarket(ctx context.Context, marketID uint64) ([]model.LedgerEntry, error) {
	if entries, ok := s.cachedEntries(ctx, marketHistoryKey(marketID)); ok {
		return entries, nil
	}
	entries, err := s.primary.GetLedgerEntriesByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, marketHistoryKey(marketID), entries)
	return entries, nil
}

func (s *CachedStore) GetLedgerEntriesByPlayer(ctx context.Context, playerID string) ([]model.LedgerEntry, error) {
	if entries, ok := s.cachedEntries(ctx, playerHistoryKey(playerID)); ok {
		return entries, nil
	}
	entries, err := s.primary.GetLedgerEntriesByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, playerHistoryKey(playerID), entries)
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) Scan(ctx context.Context, kind uint64) (map[Key][]uint64, error) {
	return s.primary.Scan(ctx, kind)
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) cachedEntries(ctx context.Context, key string) ([]model.LedgerEntry, bool) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []model.LedgerEntry
	if json.Unmarshal(data, &entries) != nil {
		return nil, false
	}
	return entries, true
}

func kvKey(k Key) string                 { return fmt.Sprintf("kv:%d:%d:%d:%d", k[0], k[1], k[2], k[3]) }
func marketHistoryKey(id uint64) string  { return fmt.Sprintf("history:market:%d", id) }
func playerHistoryKey(pid string) string { return fmt.Sprintf("history:player:%s", pid) }
