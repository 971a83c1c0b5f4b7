package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jchantrell/lspak/internal/pak"
)

const entryColumns = 11

// Indexer writes archive directories into the index database
type Indexer struct {
	db        *Database
	batchSize int
	now       func() time.Time
}

// IndexOptions configures index insertion behavior
type IndexOptions struct {
	// BatchSize determines how many entry rows go into one INSERT statement
	BatchSize int
}

// DefaultIndexOptions returns sensible defaults for index insertion.
// 64 rows keep a statement under SQLite's oldest host parameter limit of 999.
func DefaultIndexOptions() *IndexOptions {
	return &IndexOptions{
		BatchSize: 64,
	}
}

// NewIndexer creates a new indexer with the given database and options
func NewIndexer(db *Database, options *IndexOptions) *Indexer {
	if options == nil {
		options = DefaultIndexOptions()
	}

	batch := options.BatchSize
	if batch <= 0 || batch*entryColumns > 999 {
		batch = DefaultIndexOptions().BatchSize
	}

	return &Indexer{
		db:        db,
		batchSize: batch,
		now:       time.Now,
	}
}

// ArchiveRecord is one archive directory ready to be indexed
type ArchiveRecord struct {
	// Path identifies the archive; re-indexing the same path replaces its rows
	Path string

	Header  pak.Header
	Entries []pak.Entry

	// Hashes holds optional xxhash64 digests of decoded entry contents,
	// parallel to Entries. Nil when hashing was not requested.
	Hashes []*uint64
}

// IndexArchive replaces all rows of rec.Path in a single transaction and
// returns the archive's row id
func (ix *Indexer) IndexArchive(ctx context.Context, rec *ArchiveRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("archive record cannot be nil")
	}

	if rec.Path == "" {
		return 0, fmt.Errorf("archive path cannot be empty")
	}

	if rec.Hashes != nil && len(rec.Hashes) != len(rec.Entries) {
		return 0, fmt.Errorf("archive %s: %d hashes for %d entries", rec.Path, len(rec.Hashes), len(rec.Entries))
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // Safe to call even after commit

	// Cascade removes the previous entry rows
	if _, err := tx.ExecContext(ctx, `DELETE FROM archives WHERE path = ?`, rec.Path); err != nil {
		return 0, fmt.Errorf("removing previous index of %s: %w", rec.Path, err)
	}

	h := rec.Header
	result, err := tx.ExecContext(ctx, `INSERT INTO archives
		(path, version, flags, priority, num_parts, md5, entry_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Path,
		int64(h.Version),
		int64(h.Flags),
		int64(h.Priority),
		int64(h.NumParts),
		hex.EncodeToString(h.MD5[:]),
		len(rec.Entries),
		ix.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting archive %s: %w", rec.Path, err)
	}

	archiveID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading archive id: %w", err)
	}

	for i := 0; i < len(rec.Entries); i += ix.batchSize {
		end := min(i+ix.batchSize, len(rec.Entries))

		if err := ix.insertBatch(ctx, tx, archiveID, rec, i, end); err != nil {
			return 0, fmt.Errorf("inserting entries %d-%d of %s: %w", i, end-1, rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	slog.Debug("Indexed archive",
		"path", rec.Path,
		"id", archiveID,
		"entries", len(rec.Entries))

	return archiveID, nil
}

// insertBatch inserts entries [start, end) with one multi-row statement
func (ix *Indexer) insertBatch(ctx context.Context, tx *sql.Tx, archiveID int64, rec *ArchiveRecord, start, end int) error {
	rows := make([]string, 0, end-start)
	values := make([]any, 0, (end-start)*entryColumns)

	for seq := start; seq < end; seq++ {
		e := rec.Entries[seq]

		var hash any
		if rec.Hashes != nil && rec.Hashes[seq] != nil {
			hash = fmt.Sprintf("%016x", *rec.Hashes[seq])
		}

		rows = append(rows, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		values = append(values,
			archiveID,
			seq,
			e.Path,
			int64(e.Offset),
			int64(e.SizeOnDisk),
			int64(e.UncompressedSize),
			int64(e.ArchivePart),
			int64(e.Flags),
			e.Method().String(),
			int64(e.CRC),
			hash,
		)
	}

	insertSQL := `INSERT INTO entries
		(archive_id, seq, path, offset, size_on_disk, uncompressed_size,
		 archive_part, flags, method, crc, xxhash)
		VALUES ` + strings.Join(rows, ", ")

	if _, err := tx.ExecContext(ctx, insertSQL, values...); err != nil {
		return err
	}

	return nil
}

// ArchiveSummary is the stored row of an indexed archive
type ArchiveSummary struct {
	ID         int64
	Path       string
	Version    int
	EntryCount int
	MD5        string
	IndexedAt  string
}

// LookupArchive returns the stored summary for path, or sql.ErrNoRows
func (d *Database) LookupArchive(ctx context.Context, path string) (*ArchiveSummary, error) {
	s := &ArchiveSummary{}
	err := d.QueryRow(ctx, `SELECT id, path, version, entry_count, md5, indexed_at
		FROM archives WHERE path = ?`, path).
		Scan(&s.ID, &s.Path, &s.Version, &s.EntryCount, &s.MD5, &s.IndexedAt)
	if err != nil {
		return nil, fmt.Errorf("looking up archive %s: %w", path, err)
	}
	return s, nil
}

// CountEntries returns the number of entry rows stored for an archive id
func (d *Database) CountEntries(ctx context.Context, archiveID int64) (int, error) {
	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE archive_id = ?`, archiveID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}
