package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the archive index tables. Statements are
// idempotent so opening an existing database is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS archives (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		version INTEGER NOT NULL,
		flags INTEGER NOT NULL,
		priority INTEGER NOT NULL,
		num_parts INTEGER NOT NULL,
		md5 TEXT NOT NULL,
		entry_count INTEGER NOT NULL,
		indexed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		archive_id INTEGER NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		path TEXT NOT NULL,
		offset INTEGER NOT NULL,
		size_on_disk INTEGER NOT NULL,
		uncompressed_size INTEGER NOT NULL,
		archive_part INTEGER NOT NULL,
		flags INTEGER NOT NULL,
		method TEXT NOT NULL,
		crc INTEGER NOT NULL,
		xxhash TEXT,
		PRIMARY KEY (archive_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(path)`,
}

// CreateSchema creates the archives and entries tables if they are missing
func (d *Database) CreateSchema(ctx context.Context) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}

	return nil
}

// Tables returns the names of user tables in the database
func (d *Database) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.Query(ctx, `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// TableSchema returns the CREATE statement of a table
func (d *Database) TableSchema(ctx context.Context, table string) (string, error) {
	var sqlText string
	err := d.QueryRow(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&sqlText)
	if err != nil {
		return "", fmt.Errorf("reading schema for %s: %w", table, err)
	}
	return sqlText, nil
}
