package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/jchantrell/lspak/internal/cache"
	"github.com/jchantrell/lspak/internal/config"
	"github.com/jchantrell/lspak/internal/pak"
)

var (
	cfg     *config.Config
	cfgFile string

	dbPath       string
	pattern      string
	workers      int
	maxEntrySize uint64
	logLevel     string
	logFormat    string
	noProgress   bool
)

var rootCmd = &cobra.Command{
	Use:   "lspak",
	Short: "Larian LSPK package reader",
	Long: `lspak reads Larian .pak packages (LSPK versions 15, 16 and 18).

It lists and extracts package contents, prints mod metadata from meta.lsx,
and can index package directories into a queryable SQLite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("database") {
			cfg.Database = dbPath
		}
		if cmd.Flags().Changed("pattern") {
			cfg.Pattern = pattern
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workers
		}
		if cmd.Flags().Changed("max-entry-size") {
			cfg.MaxEntrySize = maxEntrySize
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		slog.SetDefault(slog.New(handler))

		slog.Debug("Configuration",
			"data_dir", cache.CacheManager().GetCacheDir(),
			"database", cfg.Database,
			"output", cfg.Output,
			"pattern", cfg.Pattern,
			"workers", cfg.Workers,
			"max_entry_size", cfg.MaxEntrySize,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

// openPackage opens a package with the configured allocation limit
func openPackage(path string) (*pak.Archive, error) {
	return pak.OpenFile(path, pak.WithMaxEntrySize(cfg.MaxEntrySize))
}

// selectEntries applies the configured glob pattern, or returns every entry
func selectEntries(a *pak.Archive) ([]pak.Entry, error) {
	if cfg.Pattern == "" {
		return a.Entries(), nil
	}
	return a.Glob(cfg.Pattern)
}

// showProgress reports whether a progress bar should be drawn
func showProgress() bool {
	return !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is lspak.yaml in $HOME or pwd)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "index database file path")
	rootCmd.PersistentFlags().StringVarP(&pattern, "pattern", "p", "", "glob selecting entries, e.g. 'Mods/*/meta.lsx'")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of packages processed in parallel")
	rootCmd.PersistentFlags().Uint64Var(&maxEntrySize, "max-entry-size", 0, "largest entry or directory in bytes to decode (0 disables the limit)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}
