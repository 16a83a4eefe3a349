package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"

	_ "modernc.org/sqlite"
)

const (
	DefaultMaxBytes int64 = 256 << 20 // 256 MiB
	evictBatchSize        = 50
	vacuumInterval        = 100 // run incremental vacuum every N evictions
)

// Entry kinds.
const (
	KindTicks = "ticks"
	KindOrder = "order"
	KindBar   = "bar"
)

// Entry is one journaled payload.
type Entry struct {
	ID       int64
	Kind     string
	Received time.Time
	ByteSize int
	Raw      []byte
}

// Store journals tick batches and fills in a FIFO SQLite database capped at
// maxBytes of payload. Oldest rows are evicted when the budget is exceeded.
type Store struct {
	db           *sql.DB
	maxBytes     int64
	mu           sync.Mutex
	cachedSize   int64
	evictCounter int
	pending      sync.WaitGroup
}

func OpenStore(path string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			kind      TEXT    NOT NULL,
			received  TEXT    NOT NULL,
			byte_size INTEGER NOT NULL,
			raw       BLOB    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_je_kind ON journal_entries(kind)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema (%s): %w", stmt, err)
		}
	}

	var size int64
	row := db.QueryRow(`SELECT COALESCE(SUM(byte_size), 0) FROM journal_entries`)
	if err := row.Scan(&size); err != nil {
		db.Close()
		return nil, fmt.Errorf("read current size: %w", err)
	}

	telemetry.Infof("journal: opened %s  rows_bytes=%d", path, size)

	return &Store{db: db, maxBytes: maxBytes, cachedSize: size}, nil
}

// Attach journals every tick batch, closed bar and fill published on bus.
func (s *Store) Attach(bus *events.Bus) {
	for typ, kind := range map[events.EventType]string{
		events.EventTicks:       KindTicks,
		events.EventBar:         KindBar,
		events.EventOrderFilled: KindOrder,
	} {
		kind := kind
		bus.Subscribe(typ, func(e events.Event) error {
			return s.insertEvent(kind, e)
		})
	}
}

func (s *Store) insertEvent(kind string, e events.Event) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("journal %s: %w", kind, err)
	}
	s.Insert(kind, raw)
	return nil
}

// Insert stores raw asynchronously.
func (s *Store) Insert(kind string, raw []byte) {
	rawCopy := make([]byte, len(raw))
	copy(rawCopy, raw)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Append(kind, rawCopy); err != nil {
			telemetry.Warnf("journal: %v", err)
		}
	}()
}

// Append stores raw and evicts old rows if the budget is exceeded.
func (s *Store) Append(kind string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawLen := int64(len(raw))
	_, err := s.db.Exec(
		`INSERT INTO journal_entries (kind, received, byte_size, raw) VALUES (?, ?, ?, ?)`,
		kind,
		time.Now().UTC().Format(time.RFC3339Nano),
		rawLen,
		raw,
	)
	if err != nil {
		telemetry.Metrics.JournalErrors.Inc()
		return fmt.Errorf("insert failed: %w", err)
	}
	telemetry.Metrics.JournalWrites.Inc()

	s.cachedSize += rawLen
	if s.cachedSize > s.maxBytes {
		s.evict()
	}
	return nil
}

// evict removes oldest rows until total size is under budget.
// Must be called with s.mu held.
func (s *Store) evict() {
	for s.cachedSize > s.maxBytes {
		var freed int64
		var lastID sql.NullInt64
		err := s.db.QueryRow(
			`SELECT COALESCE(SUM(byte_size), 0), MAX(id) FROM (
				SELECT id, byte_size FROM journal_entries ORDER BY id ASC LIMIT ?
			)`,
			evictBatchSize,
		).Scan(&freed, &lastID)
		if err != nil || !lastID.Valid {
			break
		}
		if _, err := s.db.Exec(`DELETE FROM journal_entries WHERE id <= ?`, lastID.Int64); err != nil {
			telemetry.Warnf("journal: evict failed: %v", err)
			break
		}
		s.cachedSize -= freed
		s.evictCounter++

		if s.evictCounter%vacuumInterval == 0 {
			s.db.Exec(`PRAGMA incremental_vacuum`)
		}
	}
}

// Query filters Recent.
type Query struct {
	Kind     string // "" for all kinds
	Contains string // case-insensitive substring of the raw payload
	Limit    int
}

// Recent returns matching entries, newest first.
func (s *Store) Recent(q Query) ([]Entry, error) {
	return Recent(s.db, q)
}

// Recent runs q against an open journal database.
func Recent(db *sql.DB, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	stmt := `SELECT id, kind, received, byte_size, raw FROM journal_entries WHERE 1=1`
	var args []any
	if q.Kind != "" {
		stmt += ` AND kind = ?`
		args = append(args, q.Kind)
	}
	if q.Contains != "" {
		stmt += ` AND LOWER(CAST(raw AS TEXT)) LIKE ?`
		args = append(args, "%"+strings.ToLower(q.Contains)+"%")
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var received string
		if err := rows.Scan(&e.ID, &e.Kind, &received, &e.ByteSize, &e.Raw); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.Received, _ = time.Parse(time.RFC3339Nano, received)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastTick returns the newest journaled tick for token. Batches are scanned
// newest first and the scan stops at the first batch carrying the token.
func (s *Store) LastTick(ctx context.Context, token int64) (events.Tick, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw FROM journal_entries WHERE kind = ? ORDER BY id DESC`, KindTicks)
	if err != nil {
		return events.Tick{}, false, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return events.Tick{}, false, fmt.Errorf("scan: %w", err)
		}
		var batch []events.Tick
		if err := json.Unmarshal(raw, &batch); err != nil {
			continue
		}
		for i := len(batch) - 1; i >= 0; i-- {
			if batch[i].InstrumentToken == token {
				return batch[i], true, nil
			}
		}
	}
	return events.Tick{}, false, rows.Err()
}

// Size returns the payload bytes currently held.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedSize
}

// Close waits for queued inserts and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.pending.Wait()
	return s.db.Close()
}
