package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jchantrell/lspak/internal/cache"
	"github.com/jchantrell/lspak/internal/database"
)

var (
	listTables  bool
	schemaTable string
)

var queryCmd = &cobra.Command{
	Use:   "query [SQL]",
	Short: "Query the package index database",
	Long: `Query executes SQL against the index written by 'lspak index', lists
the available tables, or shows a table's columns.

Example:
  lspak query "SELECT a.path, e.path FROM entries e JOIN archives a ON a.id = e.archive_id WHERE e.path LIKE 'Mods/%/meta.lsx'"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		slog.Debug("Query parameters",
			"database", cfg.Database,
			"list-tables", listTables,
			"schema", schemaTable)

		// Opening would create an empty index
		if !cache.CacheManager().FileExists(cfg.Database) {
			return fmt.Errorf("no index at %s, run 'lspak index' first", cfg.Database)
		}

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if listTables {
			names, err := db.Tables(ctx)
			if err != nil {
				return fmt.Errorf("listing tables: %w", err)
			}

			fmt.Println("Available tables:")
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
			return nil
		}

		if schemaTable != "" {
			return printSchema(cmd, db, schemaTable)
		}

		if len(args) > 0 {
			return runQuery(cmd, db, args[0])
		}

		return fmt.Errorf("no query provided, use --tables to list tables or --schema <table> to show schema")
	},
}

func printSchema(cmd *cobra.Command, db *database.Database, table string) error {
	slog.Debug("Getting table schema", "table", table)

	rows, err := db.Query(cmd.Context(), `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("getting schema for table %s: %w", table, err)
	}
	defer rows.Close()

	fmt.Printf("Schema for table '%s':\n", table)
	fmt.Printf("%-20s %-10s %-8s %-10s %-8s\n", "Column", "Type", "NotNull", "Default", "Primary")
	fmt.Println(strings.Repeat("-", 60))

	found := false
	for rows.Next() {
		var name, dataType string
		var notNull, primaryKey int
		var defaultValue any

		if err := rows.Scan(&name, &dataType, &notNull, &defaultValue, &primaryKey); err != nil {
			return fmt.Errorf("scanning schema row: %w", err)
		}
		found = true

		defaultStr := "NULL"
		if defaultValue != nil {
			defaultStr = fmt.Sprintf("%v", defaultValue)
		}

		fmt.Printf("%-20s %-10s %-8s %-10s %-8s\n",
			name, dataType, yesNo(notNull != 0), defaultStr, yesNo(primaryKey != 0))
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating schema: %w", err)
	}

	if !found {
		return fmt.Errorf("table %s does not exist", table)
	}

	return nil
}

func runQuery(cmd *cobra.Command, db *database.Database, query string) error {
	slog.Debug("Executing SQL query", "query", query)

	rows, err := db.Query(cmd.Context(), query)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting column names: %w", err)
	}

	fmt.Println(strings.Join(columns, "\t"))

	separators := make([]string, len(columns))
	for i, col := range columns {
		separators[i] = strings.Repeat("-", len(col))
	}
	fmt.Println(strings.Join(separators, "\t"))

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	cells := make([]string, len(columns))
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}

		for i, val := range values {
			switch v := val.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&listTables, "tables", false, "list available tables")
	queryCmd.Flags().StringVar(&schemaTable, "schema", "", "show schema for the given table")
}
