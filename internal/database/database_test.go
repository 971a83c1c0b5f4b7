package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchantrell/lspak/internal/codec"
	"github.com/jchantrell/lspak/internal/pak"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(DefaultDatabaseOptions(filepath.Join(t.TempDir(), "nested", "index.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(path string, n int) *ArchiveRecord {
	rec := &ArchiveRecord{
		Path: path,
		Header: pak.Header{
			Version:  pak.V18,
			Flags:    pak.FlagPreload,
			Priority: 3,
			NumParts: 1,
			MD5:      [16]byte{0xde, 0xad, 0xbe, 0xef},
		},
	}
	for i := 0; i < n; i++ {
		rec.Entries = append(rec.Entries, pak.Entry{
			Path:             "Mods/Test/file" + strings.Repeat("x", i%5) + ".txt",
			Offset:           uint64(i * 100),
			SizeOnDisk:       50,
			UncompressedSize: 120,
			Flags:            uint32(codec.LZ4),
		})
	}
	return rec
}

func TestNewDatabaseValidation(t *testing.T) {
	_, err := NewDatabase(nil)
	require.Error(t, err)

	_, err = NewDatabase(&DatabaseOptions{})
	require.Error(t, err)
}

func TestBuildConnectionString(t *testing.T) {
	dsn := buildConnectionString(DefaultDatabaseOptions("index.db"))
	assert.True(t, strings.HasPrefix(dsn, "index.db?"))
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_busy_timeout=30000")
}

func TestSchemaCreated(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	tables, err := db.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archives", "entries"}, tables)

	schema, err := db.TableSchema(ctx, "entries")
	require.NoError(t, err)
	assert.Contains(t, schema, "xxhash")

	// idempotent
	require.NoError(t, db.CreateSchema(ctx))
}

func TestIndexArchiveRoundTrip(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	ix := NewIndexer(db, &IndexOptions{BatchSize: 7})

	rec := sampleRecord("/mods/a.pak", 30)
	id, err := ix.IndexArchive(ctx, rec)
	require.NoError(t, err)

	summary, err := db.LookupArchive(ctx, "/mods/a.pak")
	require.NoError(t, err)
	assert.Equal(t, id, summary.ID)
	assert.Equal(t, 18, summary.Version)
	assert.Equal(t, 30, summary.EntryCount)
	assert.Equal(t, "deadbeef000000000000000000000000", summary.MD5)

	count, err := db.CountEntries(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 30, count)

	var method string
	var offset int64
	require.NoError(t, db.QueryRow(ctx,
		`SELECT method, offset FROM entries WHERE archive_id = ? AND seq = 29`, id).Scan(&method, &offset))
	assert.Equal(t, "lz4", method)
	assert.Equal(t, int64(2900), offset)
}

func TestIndexArchiveReplacesRows(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	ix := NewIndexer(db, nil)

	first, err := ix.IndexArchive(ctx, sampleRecord("a.pak", 10))
	require.NoError(t, err)

	second, err := ix.IndexArchive(ctx, sampleRecord("a.pak", 4))
	require.NoError(t, err)

	count, err := db.CountEntries(ctx, first)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = db.CountEntries(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	var archives int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM archives`).Scan(&archives))
	assert.Equal(t, 1, archives)
}

func TestIndexArchiveHashes(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	ix := NewIndexer(db, nil)

	rec := sampleRecord("h.pak", 2)
	sum := uint64(0x0123456789abcdef)
	rec.Hashes = []*uint64{&sum, nil}

	id, err := ix.IndexArchive(ctx, rec)
	require.NoError(t, err)

	var hash sql.NullString
	require.NoError(t, db.QueryRow(ctx, `SELECT xxhash FROM entries WHERE archive_id = ? AND seq = 0`, id).Scan(&hash))
	assert.Equal(t, "0123456789abcdef", hash.String)

	require.NoError(t, db.QueryRow(ctx, `SELECT xxhash FROM entries WHERE archive_id = ? AND seq = 1`, id).Scan(&hash))
	assert.False(t, hash.Valid)

	rec.Hashes = rec.Hashes[:1]
	_, err = ix.IndexArchive(ctx, rec)
	require.Error(t, err)
}

func TestIndexArchiveEmpty(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	id, err := NewIndexer(db, nil).IndexArchive(ctx, sampleRecord("empty.pak", 0))
	require.NoError(t, err)

	count, err := db.CountEntries(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = db.LookupArchive(ctx, "missing.pak")
	require.ErrorIs(t, err, sql.ErrNoRows)
}
