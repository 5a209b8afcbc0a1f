// Package store provides SQLite persistence for evaluation runs.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/moodcheck/internal/logging"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Each in-memory store gets its own named database; shared cache
		// lets every pooled connection see it.
		connStr = fmt.Sprintf("file:mem-%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		dropped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		malformed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

	CREATE TABLE IF NOT EXISTS tallies (
		run_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		happy_correct INTEGER NOT NULL,
		happy_total INTEGER NOT NULL,
		sad_correct INTEGER NOT NULL,
		sad_total INTEGER NOT NULL,
		PRIMARY KEY (run_id, phase),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		actual TEXT NOT NULL,
		predicted TEXT NOT NULL,
		text TEXT NOT NULL,
		failed INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS corrections (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		actual TEXT NOT NULL,
		before_label TEXT NOT NULL,
		after_label TEXT NOT NULL,
		before_text TEXT NOT NULL,
		after_text TEXT NOT NULL,
		failed INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	// Databases written before the malformed count was recorded.
	if !s.columnExists("runs", "malformed") {
		if _, err := s.db.Exec("ALTER TABLE runs ADD COLUMN malformed INTEGER DEFAULT 0"); err != nil {
			return fmt.Errorf("add malformed column: %w", err)
		}
	}
	return nil
}

// columnExists checks a table's columns with pragma_table_info. table is
// always a package constant.
func (s *Store) columnExists(table, column string) bool {
	query := fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?", table)
	var count int
	if err := s.db.QueryRow(query, column).Scan(&count); err != nil {
		logging.Error("Column check failed", "table", table, "column", column, "error", err)
		return false
	}
	return count > 0
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
