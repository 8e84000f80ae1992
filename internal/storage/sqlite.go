package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/ledger"
)

// SQLiteStorage persists ledger snapshots in a key-value table, one row per
// snapshot section. It implements ledger.Persister.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

var _ ledger.Persister = (*SQLiteStorage)(nil)

// section maps a ledger_state key to the snapshot field stored under it.
type section struct {
	field func(*ledger.Snapshot) any
	key   string
}

var sections = []section{
	{key: "settings", field: func(s *ledger.Snapshot) any { return &s.Settings }},
	{key: "accounts", field: func(s *ledger.Snapshot) any { return &s.Accounts }},
	{key: "collections", field: func(s *ledger.Snapshot) any { return &s.Collections }},
	{key: "categories", field: func(s *ledger.Snapshot) any { return &s.Categories }},
	{key: "sub_categories", field: func(s *ledger.Snapshot) any { return &s.SubCategories }},
	{key: "payees", field: func(s *ledger.Snapshot) any { return &s.Payees }},
	{key: "tags", field: func(s *ledger.Snapshot) any { return &s.Tags }},
	{key: "transactions", field: func(s *ledger.Snapshot) any { return &s.Transactions }},
	{key: "rules", field: func(s *ledger.Snapshot) any { return &s.Rules }},
	{key: "allocation_rules", field: func(s *ledger.Snapshot) any { return &s.AllocationRules }},
	{key: "allocations", field: func(s *ledger.Snapshot) any { return &s.Allocations }},
	{key: "run_log", field: func(s *ledger.Snapshot) any { return &s.RunLog }},
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Load reads the stored snapshot. It returns common.ErrNotFound when the
// ledger has never been saved.
func (s *SQLiteStorage) Load(ctx context.Context) (*ledger.Snapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM ledger_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan ledger state: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger state: %w", err)
	}
	if len(values) == 0 {
		return nil, common.ErrNotFound
	}

	snap := &ledger.Snapshot{}
	for _, sec := range sections {
		raw, ok := values[sec.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, sec.field(snap)); err != nil {
			return nil, fmt.Errorf("section %s: %w: %w", sec.key, common.ErrDatabaseCorrupted, err)
		}
	}
	return snap, nil
}

// Save replaces every stored section in a single transaction.
func (s *SQLiteStorage) Save(ctx context.Context, snap *ledger.Snapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, sec := range sections {
		raw, err := json.Marshal(sec.field(snap))
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", sec.key, err)
		}
		if _, err := stmt.ExecContext(ctx, sec.key, raw); err != nil {
			return fmt.Errorf("failed to write %s: %w", sec.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger state: %w", err)
	}
	return nil
}

// SectionSizes reports the stored byte size of each section, keyed by name.
func (s *SQLiteStorage) SectionSizes(ctx context.Context) (map[string]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, length(value) FROM ledger_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sizes := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ledger state: %w", err)
		}
		sizes[key] = n
	}
	return sizes, rows.Err()
}
