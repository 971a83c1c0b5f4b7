package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jchantrell/lspak/internal/cache"
	"github.com/jchantrell/lspak/internal/export"
	"github.com/jchantrell/lspak/internal/utils"
)

var (
	outputDir   string
	flatExtract bool
)

var extractCmd = &cobra.Command{
	Use:   "extract PAK",
	Short: "Extract package entries to disk",
	Long: `Extract decodes the entries of a package and writes them below
<output>/<package name>/, keeping the directory structure stored in the package.

Use --pattern to extract a subset, e.g. --pattern 'Public/*/Stats/Generated/Data/*.txt'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		path := args[0]

		if cmd.Flags().Changed("output") {
			cfg.Output = outputDir
		}

		a, err := openPackage(path)
		if err != nil {
			return fmt.Errorf("opening package: %w", err)
		}
		defer a.Close()

		entries, err := selectEntries(a)
		if err != nil {
			return fmt.Errorf("selecting entries: %w", err)
		}

		if len(entries) == 0 {
			slog.Info("No entries matched", "package", path, "pattern", cfg.Pattern)
			return nil
		}

		target := cache.CacheManager().GetExtractDir(cfg.Output, path)
		slog.Info("Extracting package", "package", path, "entries", len(entries), "output", target)

		exporter := export.NewExporter(a, target)
		exporter.SetFlatten(flatExtract)

		var written uint64
		progress := utils.NewProgress(len(entries), showProgress())
		err = exporter.ExportEntries(entries, func(current, total int, description string) {
			written += entries[current-1].Size()
			progress.Update(current, description)
		})
		progress.Finish()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", path, err)
		}

		elapsed := time.Since(start)
		var rate float64
		if elapsed.Seconds() > 0 {
			rate = float64(len(entries)) / elapsed.Seconds()
		}

		fmt.Printf("Entries extracted: %s\n", utils.Number(int64(len(entries))))
		fmt.Printf("Bytes written: %s\n", utils.Bytes(written))
		fmt.Printf("Duration: %s\n", utils.Duration(elapsed))
		fmt.Printf("Extraction rate: %s entries/sec\n", utils.Rate(rate))
		fmt.Printf("Output: %s\n", target)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config, 'extracted')")
	extractCmd.Flags().BoolVar(&flatExtract, "flat", false, "write entries into one directory, replacing / with @")
}
