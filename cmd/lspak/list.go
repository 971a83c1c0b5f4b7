package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jchantrell/lspak/internal/utils"
)

var longListing bool

var listCmd = &cobra.Command{
	Use:   "list PAK...",
	Short: "List the entries of one or more packages",
	Long: `List prints the directory of each package in directory order.

A package that cannot be read is reported and skipped; the command exits
with an error once every package has been tried.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0

		for _, path := range args {
			if err := listPackage(path, len(args) > 1); err != nil {
				slog.Error("Failed to list package", "path", path, "error", err)
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d packages failed", failed, len(args))
		}
		return nil
	},
}

func listPackage(path string, withHeading bool) error {
	a, err := openPackage(path)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := selectEntries(a)
	if err != nil {
		return err
	}

	if withHeading {
		fmt.Printf("%s:\n", path)
	}

	for _, e := range entries {
		if !longListing {
			fmt.Println(e.Path)
			continue
		}
		fmt.Printf("%-5s %10s %10s %4d  %s\n",
			e.Method(),
			utils.Bytes(e.SizeOnDisk),
			utils.Bytes(e.Size()),
			e.ArchivePart,
			e.Path)
	}

	if withHeading {
		fmt.Println()
	}

	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&longListing, "long", "l", false, "show method, stored size, size and part")
}
