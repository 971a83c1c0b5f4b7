package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jchantrell/lspak/internal/cache"
	"github.com/jchantrell/lspak/internal/database"
	"github.com/jchantrell/lspak/internal/utils"
)

var hashEntries bool

type indexStats struct {
	archives      atomic.Int64
	entries       atomic.Int64
	failed        atomic.Int64
	corruptHashes atomic.Int64
}

var indexCmd = &cobra.Command{
	Use:   "index PAK...",
	Short: "Index package directories into the SQLite database",
	Long: `Index reads the directory of each package and stores its header and
entries in the index database. Re-indexing a package replaces its rows.

With --hash every entry is decoded and an xxhash64 of its contents is stored,
which allows finding identical files across packages.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		indexer := database.NewIndexer(db, nil)
		progress := utils.NewProgress(len(args), showProgress())
		stats := &indexStats{}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(cfg.Workers)

		for _, path := range args {
			path := path
			g.Go(func() error {
				if err := indexPackage(ctx, indexer, path, stats); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					slog.Error("Failed to index package", "path", path, "error", err)
					stats.failed.Add(1)
				}
				progress.Increment(filepath.Base(path))
				return nil
			})
		}

		err = g.Wait()
		progress.Finish()
		if err != nil {
			return fmt.Errorf("indexing canceled: %w", err)
		}

		fmt.Printf("Packages indexed: %d/%d\n", stats.archives.Load(), len(args))
		fmt.Printf("Entries indexed: %s\n", utils.Number(stats.entries.Load()))
		if hashEntries {
			fmt.Printf("Entries not hashed: %d\n", stats.corruptHashes.Load())
		}
		fmt.Printf("Duration: %s\n", utils.Duration(time.Since(start)))
		fmt.Printf("Database: %s (%s)\n", db.Path(), utils.Bytes(uint64(cache.CacheManager().GetFileSize(db.Path()))))

		if failed := stats.failed.Load(); failed > 0 {
			return fmt.Errorf("%d of %d packages failed", failed, len(args))
		}

		fmt.Println("Try running: lspak query --tables")
		return nil
	},
}

// indexPackage opens its own handle so workers never share a stream
func indexPackage(ctx context.Context, indexer *database.Indexer, path string, stats *indexStats) error {
	a, err := openPackage(path)
	if err != nil {
		return err
	}
	defer a.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	rec := &database.ArchiveRecord{
		Path:    abs,
		Header:  a.Header(),
		Entries: a.Entries(),
	}

	if hashEntries {
		rec.Hashes = make([]*uint64, len(rec.Entries))
		for i, e := range rec.Entries {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := a.ReadEntry(e)
			if err != nil {
				slog.Warn("Entry not hashed", "package", path, "entry", e.Path, "error", err)
				stats.corruptHashes.Add(1)
				continue
			}

			sum := xxhash.Sum64(data)
			rec.Hashes[i] = &sum
		}
	}

	if _, err := indexer.IndexArchive(ctx, rec); err != nil {
		return err
	}

	stats.archives.Add(1)
	stats.entries.Add(int64(len(rec.Entries)))
	return nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&hashEntries, "hash", false, "decode entries and store xxhash64 of their contents")
}
