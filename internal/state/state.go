package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-tagger/internal/logging"
	"photo-tagger/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// Photo is an inventory entry: the canonical key plus the OS path the
// photo was last seen at. The key set only ever grows; the path is
// refreshed on every discovery pass so completed work can be located even
// when the library moves between mounts.
type Photo struct {
	Key  string
	Path string
}

// Store owns the durable run state: the inventory, the completion set
// and the incremental-scan checkpoint. All three live in one SQLite
// database opened in WAL mode.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if necessary) the state database at dbPath.
// The parent directory must already exist and be writable.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("State database path: %s", dbPath)

	// WAL mode keeps single-row completion inserts durable and cheap;
	// busy_timeout guards against stray readers holding the file.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close state database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	// Single-process, mostly sequential access
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close state database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	logging.Info("State database initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- Every photo key ever discovered. Append-only: rows are never deleted,
	-- even when the file disappears from storage.
	CREATE TABLE IF NOT EXISTS inventory (
		key TEXT PRIMARY KEY,
		last_path TEXT NOT NULL,
		discovered_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_seen_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Every photo key successfully annotated and written. Append-only.
	CREATE TABLE IF NOT EXISTS completed (
		key TEXT PRIMARY KEY,
		tags TEXT,
		completed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Reference timestamp of the last successful incremental run.
	-- Single row, overwritten atomically.
	CREATE TABLE IF NOT EXISTS checkpoint (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		scan_started_at INTEGER NOT NULL
	);
	`

	_, err = s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Inventory returns every known photo key mapped to its last-seen path.
func (s *Store) Inventory(ctx context.Context) (map[string]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_inventory", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT key, last_path FROM inventory")
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close inventory rows: %v", closeErr)
		}
	}()

	inventory := make(map[string]string)
	for rows.Next() {
		var key, path string
		if err = rows.Scan(&key, &path); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		inventory[key] = path
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	metrics.InventorySize.Set(float64(len(inventory)))
	return inventory, nil
}

// Completed returns the set of photo keys that have been fully processed.
func (s *Store) Completed(ctx context.Context) (map[string]bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_completed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT key FROM completed")
	if err != nil {
		return nil, fmt.Errorf("failed to load completion set: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close completed rows: %v", closeErr)
		}
	}()

	completed := make(map[string]bool)
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan completed row: %w", err)
		}
		completed[key] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read completion set: %w", err)
	}

	metrics.CompletedSize.Set(float64(len(completed)))
	return completed, nil
}

// MergeInventory folds a discovery pass into the inventory in a single
// transaction. Existing keys keep their discovered_at but have last_path
// and last_seen_at refreshed. Returns the number of newly added keys.
func (s *Store) MergeInventory(ctx context.Context, photos []Photo) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("merge_inventory", start, err) }()

	before, err := s.countInventory(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin inventory merge: %w", err)
	}

	for _, p := range photos {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (key, last_path)
			VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET
				last_path = excluded.last_path,
				last_seen_at = strftime('%s', 'now')
			`, p.Key, p.Path)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return 0, errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return 0, fmt.Errorf("failed to merge inventory entry %s: %w", p.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit inventory merge: %w", err)
	}

	after, err := s.countInventory(ctx)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

func (s *Store) countInventory(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inventory").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count inventory: %w", err)
	}
	return n, nil
}

// MarkCompleted records a single completion and commits it immediately,
// so a crash mid-batch loses at most the in-flight item.
func (s *Store) MarkCompleted(ctx context.Context, key string, tags []string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_completed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completed (key, tags) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
		`, key, strings.Join(tags, ", "))
	if err != nil {
		return fmt.Errorf("failed to mark %s completed: %w", key, err)
	}
	return nil
}

// Checkpoint returns the reference timestamp of the last successful
// incremental run. The second return value is false when no checkpoint
// has been recorded yet.
func (s *Store) Checkpoint(ctx context.Context) (time.Time, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_checkpoint", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var nanos int64
	err = s.db.QueryRowContext(ctx,
		"SELECT scan_started_at FROM checkpoint WHERE id = 1",
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return time.Unix(0, nanos), true, nil
}

// SetCheckpoint overwrites the checkpoint with t. Stored at nanosecond
// resolution so mod-time comparisons at the boundary stay strict.
func (s *Store) SetCheckpoint(ctx context.Context, t time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_checkpoint", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, scan_started_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET scan_started_at = excluded.scan_started_at
		`, t.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	return nil
}

// recordQuery records state store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)
}
