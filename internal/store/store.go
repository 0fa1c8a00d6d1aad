// Package store defines the persistence boundary for the market engine.
//
// Engine state is persisted as flat word streams in a key-value map keyed
// by four 64-bit words; codec.go defines the per-entity layout. Accepted
// trades are additionally appended to an immutable history ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/prediction-amm/internal/model"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Key addresses one persisted entity. Word 0 is the entity kind.
type Key [4]uint64

// Entity kinds.
const (
	KindGlobal   uint64 = 0
	KindMarket   uint64 = 1
	KindPlayer   uint64 = 2
	KindPosition uint64 = 3
)

// GlobalKey is the key of the global state record.
func GlobalKey() Key { return Key{KindGlobal, 0, 0, 0} }

// MarketKey is the key of market id.
func MarketKey(id uint64) Key { return Key{KindMarket, 0, id, 0} }

// PlayerKey is the key of a player account.
func PlayerKey(pid model.PlayerID) Key { return Key{KindPlayer, pid[0], pid[1], 0} }

// PositionKey is the key of a player's position in market.
func PositionKey(pid model.PlayerID, market uint64) Key {
	return Key{KindPosition, pid[0], pid[1], market}
}

// KV is the word-stream key-value map engine state is checkpointed into.
type KV interface {
	// Get returns the words stored at key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]uint64, error)

	// Set stores data at key, replacing any previous value.
	Set(ctx context.Context, key Key, data []uint64) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error

	// Scan returns every entry of the given kind.
	Scan(ctx context.Context, kind uint64) (map[Key][]uint64, error)
}

// BatchKV is implemented by stores that can write many entries at once.
type BatchKV interface {
	SetMany(ctx context.Context, entries map[Key][]uint64) error
}

// SetAll writes entries through kv's batch path if it has one, otherwise
// one Set at a time.
func SetAll(ctx context.Context, kv KV, entries map[Key][]uint64) error {
	if b, ok := kv.(BatchKV); ok {
		return b.SetMany(ctx, entries)
	}
	for k, v := range entries {
		if err := kv.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// History is the immutable trade ledger.
type History interface {
	// InsertLedgerEntry appends an immutable trade record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntriesByMarket returns all trades for a market.
	GetLedgerEntriesByMarket(ctx context.Context, marketID uint64) ([]model.LedgerEntry, error)

	// GetLedgerEntriesByPlayer returns all trades for a player.
	GetLedgerEntriesByPlayer(ctx context.Context, playerID string) ([]model.LedgerEntry, error)
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	KV
	History
}
