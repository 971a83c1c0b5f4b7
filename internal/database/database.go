package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jchantrell/lspak/internal/cache"
)

// Database represents a connection to the package index SQLite database
type Database struct {
	db   *sql.DB
	path string
}

// DatabaseOptions configures database creation and connection behavior
type DatabaseOptions struct {
	// Path to the SQLite database file
	Path string

	// WALMode enables Write-Ahead Logging so queries can run during indexing
	WALMode bool

	// ForeignKeys enables foreign key constraint checking
	ForeignKeys bool

	// BusyTimeout sets the timeout for locked database operations
	BusyTimeout time.Duration
}

// DefaultDatabaseOptions returns sensible default options for database connections
func DefaultDatabaseOptions(path string) *DatabaseOptions {
	return &DatabaseOptions{
		Path:        path,
		WALMode:     true,
		ForeignKeys: true,
		BusyTimeout: 30 * time.Second,
	}
}

// NewDatabase opens the database and makes sure the index schema exists
func NewDatabase(options *DatabaseOptions) (*Database, error) {
	if options == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	if options.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := ensureDirectory(options.Path); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", buildConnectionString(options))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", options.Path, err)
	}

	// SQLite serializes writers; a single connection keeps pragmas and
	// transactions on the same handle
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("testing database connection: %w", err)
	}

	d := &Database{
		db:   db,
		path: options.Path,
	}

	if err := d.applyPragmas(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	if err := d.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// Path returns the database file path
func (d *Database) Path() string {
	return d.path
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}

	err := d.db.Close()
	d.db = nil

	if err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction with the given options
func (d *Database) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection is closed")
	}

	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	return tx, nil
}

// Exec executes a SQL statement that doesn't return rows
func (d *Database) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection is closed")
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	return result, nil
}

// Query executes a SQL query that returns rows
func (d *Database) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection is closed")
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}

	return rows, nil
}

// QueryRow executes a SQL query that is expected to return at most one row
func (d *Database) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// buildConnectionString constructs the go-sqlite3 DSN with connection parameters
func buildConnectionString(options *DatabaseOptions) string {
	var params []string

	if options.WALMode {
		params = append(params, "_journal_mode=WAL")
	}

	if options.ForeignKeys {
		params = append(params, "_foreign_keys=on")
	}

	if options.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", options.BusyTimeout.Milliseconds()))
	}

	params = append(params, "_synchronous=NORMAL")

	return options.Path + "?" + strings.Join(params, "&")
}

// applyPragmas sets performance pragmas the DSN cannot express
func (d *Database) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=memory",
		"PRAGMA mmap_size=268435456", // 256MB mmap
	}
	for _, p := range pragmas {
		if _, err := d.Exec(ctx, p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return nil
}

// ensureDirectory creates the directory for the database file if it doesn't exist
func ensureDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil // Current directory, no need to create
	}

	return cache.NewCache(dir).EnsureDir(dir)
}
