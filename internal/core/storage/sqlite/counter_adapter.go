package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/buzzline-lab/buzztrack/internal/migrations"
	_ "modernc.org/sqlite" // Register pure-Go sqlite driver
)

const connectPingTimeout = 5 * time.Second

// Adapter implements storage.CounterStore on a SQLite database file.
type Adapter struct {
	db            *sql.DB
	stmtIncrement *sql.Stmt
	stmtReset     *sql.Stmt
	stmtGet       *sql.Stmt
	stmtGetAll    *sql.Stmt
}

// NewAdapter opens the counter database at path and prepares it for a fresh
// run: any database file left over from a previous run is deleted first
// (counts never accumulate across runs), then the schema is created via
// migrations and statements are prepared.
//
// The connection pool is capped at a single connection; SQLite allows one
// writer at a time and the consumer's update path is sequential anyway.
func NewAdapter(path string, autoMigrate bool) (*Adapter, error) {
	if err := removeStaleDatabase(path); err != nil {
		return nil, fmt.Errorf("failed to remove stale database: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := migrations.RunMigrations(db, autoMigrate); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := validateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	stmtIncrement, err := db.Prepare(queryIncrementKeyword)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare increment statement: %w", err)
	}

	stmtReset, err := db.Prepare(queryResetCounts)
	if err != nil {
		stmtIncrement.Close()
		db.Close()
		return nil, fmt.Errorf("failed to prepare reset statement: %w", err)
	}

	stmtGet, err := db.Prepare(queryGetCount)
	if err != nil {
		stmtIncrement.Close()
		stmtReset.Close()
		db.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	stmtGetAll, err := db.Prepare(queryGetAllCounts)
	if err != nil {
		stmtIncrement.Close()
		stmtReset.Close()
		stmtGet.Close()
		db.Close()
		return nil, fmt.Errorf("failed to prepare getAll statement: %w", err)
	}

	slog.Info("[Sqlite] Counter adapter initialized", "path", path)

	return &Adapter{
		db:            db,
		stmtIncrement: stmtIncrement,
		stmtReset:     stmtReset,
		stmtGet:       stmtGet,
		stmtGetAll:    stmtGetAll,
	}, nil
}

// removeStaleDatabase deletes a previous run's database file. WAL sidecar
// files go with it so the fresh database cannot pick up stale pages.
func removeStaleDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// validateSchema checks that the keyword_counts table exists.
func validateSchema(db *sql.DB) error {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sqlite_master
			WHERE type = 'table' AND name = 'keyword_counts'
		)
	`
	if err := db.QueryRow(query).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	if !exists {
		return fmt.Errorf("keyword_counts table does not exist")
	}
	return nil
}

// Reset empties the counter table. Idempotent: resetting an already-empty
// table is a no-op.
func (a *Adapter) Reset(ctx context.Context) error {
	if _, err := a.stmtReset.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to reset counters: %w", err)
	}
	slog.Info("[Sqlite] Counter table reset")
	return nil
}

// Increment applies one keyword mention: insert with count 1 on first sight,
// otherwise add 1. Single atomic upsert statement.
func (a *Adapter) Increment(ctx context.Context, keyword string) error {
	if _, err := a.stmtIncrement.ExecContext(ctx, keyword); err != nil {
		return fmt.Errorf("failed to increment keyword %q: %w", keyword, err)
	}
	slog.Debug("[Sqlite] Incremented keyword", "keyword", keyword)
	return nil
}

// Get returns the current count for one keyword, 0 if unseen.
func (a *Adapter) Get(ctx context.Context, keyword string) (int64, error) {
	var count int64
	err := a.stmtGet.QueryRowContext(ctx, keyword).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get count for keyword %q: %w", keyword, err)
	}
	return count, nil
}

// GetAll returns the full keyword -> count mapping.
func (a *Adapter) GetAll(ctx context.Context) (map[string]int64, error) {
	rows, err := a.stmtGetAll.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var keyword string
		var count int64
		if err := rows.Scan(&keyword, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[keyword] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}

	return counts, nil
}

// DB returns the underlying *sql.DB for health checks that share the
// connection rather than opening a second one.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Close closes the database connection and all prepared statements.
// Should be called during graceful shutdown.
func (a *Adapter) Close() error {
	var firstErr error

	if err := a.stmtIncrement.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close increment statement: %w", err)
	}

	if err := a.stmtReset.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close reset statement: %w", err)
	}

	if err := a.stmtGet.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close get statement: %w", err)
	}

	if err := a.stmtGetAll.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close getAll statement: %w", err)
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close database: %w", err)
	}

	if firstErr != nil {
		return firstErr
	}

	slog.Info("[Sqlite] Counter adapter closed gracefully")
	return nil
}
