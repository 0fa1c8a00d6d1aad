package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/prediction-amm/internal/model"
)

// Schema creates the tables PostgresStore expects.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key  BYTEA PRIMARY KEY,
	kind SMALLINT NOT NULL,
	data BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_entries_kind ON kv_entries (kind);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id             UUID PRIMARY KEY,
	correlation_id NUMERIC(20) NOT NULL,
	player_id      TEXT NOT NULL,
	market_id      NUMERIC(20) NOT NULL,
	action         TEXT NOT NULL,
	side           TEXT NOT NULL,
	amount         NUMERIC(20) NOT NULL,
	shares         NUMERIC(20) NOT NULL,
	price          NUMERIC NOT NULL,
	tick           NUMERIC(20) NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_entries_market ON ledger_entries (market_id, timestamp);
CREATE INDEX IF NOT EXISTS ledger_entries_player ON ledger_entries (player_id, timestamp);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Keys and word streams are stored as BYTEA; ledger magnitudes as NUMERIC
// so that the full unsigned 64-bit range survives.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) ([]uint64, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM kv_entries WHERE key = $1`, keyBytes(key)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %v: %w", key, err)
	}
	return bytesToWords(raw)
}

func (s *PostgresStore) Set(ctx context.Context, key Key, data []uint64) error {
	_, err := s.pool.Exec(ctx, upsertKV, keyBytes(key), int16(key[0]), wordsToBytes(data))
	return err
}

// SetMany upserts every entry in one batch.
func (s *PostgresStore) SetMany(ctx context.Context, entries map[Key][]uint64) error {
	batch := &pgx.Batch{}
	for k, v := range entries {
		batch.Queue(upsertKV, keyBytes(k), int16(k[0]), wordsToBytes(v))
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

const upsertKV = `INSERT INTO kv_entries (key, kind, data) VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`

func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, keyBytes(key))
	return err
}

func (s *PostgresStore) Scan(ctx context.Context, kind uint64) (map[Key][]uint64, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, data FROM kv_entries WHERE kind = $1`, int16(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Key][]uint64)
	for rows.Next() {
		var rawKey, rawData []byte
		if err := rows.Scan(&rawKey, &rawData); err != nil {
			return nil, err
		}
		k, err := bytesToKey(rawKey)
		if err != nil {
			return nil, err
		}
		if out[k], err = bytesToWords(rawData); err != nil {
			return nil, err
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, correlation_id, player_id, market_id, action, side, amount, shares, price, tick, timestamp)
		 VALUES ($1, $2::NUMERIC, $3, $4::NUMERIC, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		e.ID, u64(e.CorrelationID), e.PlayerID, u64(e.MarketID), e.Action, e.Side,
		u64(e.Amount), u64(e.Shares), e.Price.String(), u64(e.Tick),
		e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntriesByMarket(ctx context.Context, marketID uint64) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, correlation_id::TEXT, player_id, market_id::TEXT, action, side,
		        amount::TEXT, shares::TEXT, price::TEXT, tick::TEXT, timestamp
		 FROM ledger_entries WHERE market_id = $1::NUMERIC ORDER BY timestamp`, u64(marketID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) GetLedgerEntriesByPlayer(ctx context.Context, playerID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, correlation_id::TEXT, player_id, market_id::TEXT, action, side,
		        amount::TEXT, shares::TEXT, price::TEXT, tick::TEXT, timestamp
		 FROM ledger_entries WHERE player_id = $1 ORDER BY timestamp`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanLedgerEntries reads pgx rows into LedgerEntry slices.
func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var corrS, marketS, amountS, sharesS, priceS, tickS string

		if err := rows.Scan(&e.ID, &corrS, &e.PlayerID, &marketS, &e.Action, &e.Side,
			&amountS, &sharesS, &priceS, &tickS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.CorrelationID, _ = strconv.ParseUint(corrS, 10, 64)
		e.MarketID, _ = strconv.ParseUint(marketS, 10, 64)
		e.Amount, _ = strconv.ParseUint(amountS, 10, 64)
		e.Shares, _ = strconv.ParseUint(sharesS, 10, 64)
		e.Tick, _ = strconv.ParseUint(tickS, 10, 64)
		e.Price, _ = decimal.NewFromString(priceS)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func keyBytes(k Key) []byte {
	b := make([]byte, 32)
	for i, w := range k {
		binary.BigEndian.PutUint64(b[i*8:], w)
	}
	return b
}

func bytesToKey(b []byte) (Key, error) {
	var k Key
	if len(b) != 32 {
		return k, fmt.Errorf("key of %d bytes: %w", len(b), ErrCorrupt)
	}
	for i := range k {
		k[i] = binary.BigEndian.Uint64(b[i*8:])
	}
	return k, nil
}

func wordsToBytes(ws []uint64) []byte {
	b := make([]byte, len(ws)*8)
	for i, w := range ws {
		binary.LittleEndian.PutUint64(b[i*8:], w)
	}
	return b
}

func bytesToWords(b []byte) ([]uint64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("word stream of %d bytes: %w", len(b), ErrCorrupt)
	}
	ws := make([]uint64, len(b)/8)
	for i := range ws {
		ws[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return ws, nil
}
