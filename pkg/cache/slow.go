package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SlowTier is the persistent cache tier, backed by SQLite. Each entry is one
// index row plus its payload blob; every mutation runs in a transaction, so
// readers never observe a torn index. A corrupt or unreadable database is
// treated as a full cache miss and rebuilt on the next successful write,
// never a crash.
type SlowTier struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	budget  int64
	corrupt bool
	logger  *slog.Logger

	hits    int64
	misses  int64
	evicted int64
	refused int64

	// onEvict, when set, receives the number of rows evicted by a Put.
	onEvict func(n int64)
}

// NewSlowTier opens (or creates) the persistent tier at dbPath. The path may
// be ":memory:" for tests. An unreadable existing database does not fail
// construction; the tier starts in the corrupt state and rebuilds itself on
// the first Put.
func NewSlowTier(dbPath string, budgetBytes int64, logger *slog.Logger) (*SlowTier, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	t := &SlowTier{db: db, path: dbPath, budget: budgetBytes, logger: logger}
	if err := t.initSchema(); err != nil {
		t.markCorrupt(err)
	}
	return t, nil
}

func (t *SlowTier) initSchema() error {
	// Timestamps are stored as UnixNano integers so eviction ordering is
	// exact.
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		kind TEXT NOT NULL,
		byte_size INTEGER NOT NULL,
		importance REAL NOT NULL,
		created_at INTEGER NOT NULL,
		last_accessed_at INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cache_recency ON cache_entries(last_accessed_at, importance);
	`
	_, err := t.db.Exec(schema)
	return err
}

func (t *SlowTier) markCorrupt(err error) {
	t.corrupt = true
	if t.logger != nil {
		t.logger.Warn("persistent cache tier unreadable, treating as empty",
			slog.String("path", t.path),
			slog.String("error", err.Error()))
	}
}

// rebuild drops and recreates the index table, recreating the database
// file from scratch when the file itself is unreadable. Called on the first
// write after corruption was detected. Must be called with the lock held.
func (t *SlowTier) rebuild() error {
	if _, err := t.db.Exec("DROP TABLE IF EXISTS cache_entries"); err == nil {
		if err := t.initSchema(); err == nil {
			t.corrupt = false
			if t.logger != nil {
				t.logger.Info("persistent cache tier rebuilt", slog.String("path", t.path))
			}
			return nil
		}
	}

	if t.path == ":memory:" {
		return errors.New("in-memory cache tier unrecoverable")
	}

	t.db.Close()
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	db, err := sql.Open("sqlite", t.path)
	if err != nil {
		return err
	}
	t.db = db
	if err := t.initSchema(); err != nil {
		return err
	}
	t.corrupt = false
	if t.logger != nil {
		t.logger.Info("persistent cache tier recreated", slog.String("path", t.path))
	}
	return nil
}

// Get returns the entry for key, updating its recency and access count in
// the same transaction. Any read error is a miss, never a failure.
func (t *SlowTier) Get(ctx context.Context, key string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.corrupt {
		t.misses++
		return nil, false
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		t.markCorrupt(err)
		t.misses++
		return nil, false
	}
	defer tx.Rollback()

	var e Entry
	var kind string
	var createdNs, accessedNs int64
	err = tx.QueryRowContext(ctx, `
		SELECT key, payload, kind, byte_size, importance, created_at, last_accessed_at, access_count
		FROM cache_entries WHERE key = ?
	`, key).Scan(&e.Key, &e.Payload, &kind, &e.ByteSize, &e.Importance, &createdNs, &accessedNs, &e.AccessCount)
	if err == sql.ErrNoRows {
		t.misses++
		return nil, false
	}
	if err != nil {
		t.markCorrupt(err)
		t.misses++
		return nil, false
	}
	e.Kind = PayloadKind(kind)
	e.CreatedAt = time.Unix(0, createdNs)
	e.LastAccessedAt = time.Unix(0, accessedNs)

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		"UPDATE cache_entries SET last_accessed_at = ?, access_count = access_count + 1 WHERE key = ?",
		now.UnixNano(), key); err == nil {
		_ = tx.Commit()
		e.LastAccessedAt = now
		e.AccessCount++
	}

	t.hits++
	return &e, true
}

// Put upserts an entry and evicts oldest-and-least-important rows until the
// tier fits its byte budget, all in one transaction. Returns false when the
// entry alone exceeds the budget or the write failed; caching is
// best-effort, so neither is an error to the caller.
func (t *SlowTier) Put(ctx context.Context, e *Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.ByteSize > t.budget {
		t.refused++
		return false
	}

	if t.corrupt {
		if err := t.rebuild(); err != nil {
			t.refused++
			return false
		}
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		t.refused++
		return false
	}
	defer tx.Rollback()

	now := time.Now()
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	lastAccessed := e.LastAccessedAt
	if lastAccessed.IsZero() {
		lastAccessed = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries
			(key, payload, kind, byte_size, importance, created_at, last_accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Key, e.Payload, string(e.Kind), e.ByteSize, e.Importance, createdAt.UnixNano(), lastAccessed.UnixNano(), e.AccessCount)
	if err != nil {
		t.refused++
		return false
	}

	evicted, err := t.enforceBudget(ctx, tx, e.Key)
	if err != nil {
		t.refused++
		return false
	}
	if err := tx.Commit(); err != nil {
		t.refused++
		return false
	}
	t.evicted += evicted
	if evicted > 0 && t.onEvict != nil {
		t.onEvict(evicted)
	}
	return true
}

// enforceBudget deletes rows oldest-and-least-important first until the
// resident byte total fits the budget. The just-written key is deleted last
// only if nothing else can free enough space.
func (t *SlowTier) enforceBudget(ctx context.Context, tx *sql.Tx, keep string) (int64, error) {
	var evicted int64
	for {
		var total int64
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(byte_size), 0) FROM cache_entries").Scan(&total); err != nil {
			return evicted, err
		}
		if total <= t.budget {
			return evicted, nil
		}

		var victim string
		err := tx.QueryRowContext(ctx, `
			SELECT key FROM cache_entries
			WHERE key != ?
			ORDER BY last_accessed_at, importance, key
			LIMIT 1
		`, keep).Scan(&victim)
		if err == sql.ErrNoRows {
			return evicted, nil
		}
		if err != nil {
			return evicted, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", victim); err != nil {
			return evicted, err
		}
		evicted++
	}
}

// Stats returns a snapshot of tier counters. Entry and byte totals are read
// from the index; a corrupt tier reports zero residency.
func (t *SlowTier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		Hits:      t.hits,
		Misses:    t.misses,
		Evictions: t.evicted,
		Rejected:  t.refused,
	}
	if t.corrupt {
		return s
	}
	var entries int
	var bytes int64
	if err := t.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(byte_size), 0) FROM cache_entries").Scan(&entries, &bytes); err == nil {
		s.Entries = entries
		s.Bytes = bytes
	}
	return s
}

// Close closes the underlying database.
func (t *SlowTier) Close() error {
	return t.db.Close()
}
