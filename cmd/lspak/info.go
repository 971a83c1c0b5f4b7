package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jchantrell/lspak/internal/lsx"
	"github.com/jchantrell/lspak/internal/utils"
)

var infoCmd = &cobra.Command{
	Use:   "info PAK...",
	Short: "Show package header and mod metadata",
	Long: `Info prints the header of each package and the Folder, Name and UUID of
every Mods/*/meta.lsx module description it contains.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0

		for _, path := range args {
			if err := showInfo(path); err != nil {
				slog.Error("Failed to read package info", "path", path, "error", err)
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d packages failed", failed, len(args))
		}
		return nil
	},
}

func showInfo(path string) error {
	a, err := openPackage(path)
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.Header()
	fmt.Printf("%s\n", path)
	fmt.Printf("  Version:  %s\n", h.Version)
	fmt.Printf("  Flags:    %s\n", h.Flags)
	fmt.Printf("  Priority: %d\n", h.Priority)
	fmt.Printf("  Parts:    %d\n", h.NumParts)
	fmt.Printf("  Entries:  %s\n", utils.Number(int64(a.Len())))
	fmt.Printf("  MD5:      %x\n", h.MD5)

	modules, err := lsx.ReadModules(a)
	if err != nil {
		return fmt.Errorf("reading module info: %w", err)
	}

	if len(modules) == 0 {
		fmt.Println("  No meta.lsx found")
	}

	for _, m := range modules {
		fmt.Printf("  Module %s\n", m.Path)

		required, err := m.Meta.Required()
		if err != nil {
			slog.Warn("Incomplete module info", "package", path, "meta", m.Path, "error", err)
		}
		for _, attr := range required {
			fmt.Printf("    %-8s %s\n", attr.ID+":", attr.Value)
		}
	}

	fmt.Println()
	return nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
