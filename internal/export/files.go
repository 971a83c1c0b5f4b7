package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jchantrell/lspak/internal/pak"
)

// ErrUnsafePath is returned for entry paths that would be written outside
// the output directory
var ErrUnsafePath = errors.New("unsafe entry path")

// EntryLoader defines the interface for decoding entries from an archive
type EntryLoader interface {
	ReadEntry(e pak.Entry) ([]byte, error)
}

// Exporter handles exporting archive entries to disk
type Exporter struct {
	loader    EntryLoader
	outputDir string
	flatten   bool
}

// NewExporter creates a new entry exporter
func NewExporter(loader EntryLoader, outputDir string) *Exporter {
	return &Exporter{
		loader:    loader,
		outputDir: outputDir,
	}
}

// SetFlatten writes every entry directly into the output directory, with
// path separators replaced by @
func (e *Exporter) SetFlatten(flatten bool) {
	e.flatten = flatten
}

// ProgressCallback is called to report export progress
type ProgressCallback func(current int, total int, description string)

// ExportEntries decodes each entry and writes it under the output directory.
// It stops at the first failure.
func (e *Exporter) ExportEntries(entries []pak.Entry, progressCallback ProgressCallback) error {
	if len(entries) == 0 {
		return nil
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	// Validate everything up front so a bad directory writes nothing
	targets := make([]string, len(entries))
	for i, entry := range entries {
		target, err := e.OutputPath(entry.Path)
		if err != nil {
			return err
		}
		targets[i] = target
	}

	for i, entry := range entries {
		data, err := e.loader.ReadEntry(entry)
		if err != nil {
			return fmt.Errorf("reading entry %s: %w", entry.Path, err)
		}

		if err := os.MkdirAll(filepath.Dir(targets[i]), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", entry.Path, err)
		}

		if err := os.WriteFile(targets[i], data, 0644); err != nil {
			return fmt.Errorf("writing file %s: %w", targets[i], err)
		}

		slog.Debug("Exported entry", "path", entry.Path, "output", targets[i], "size", len(data))

		if progressCallback != nil {
			progressCallback(i+1, len(entries), entry.Path)
		}
	}

	return nil
}

// OutputPath maps an entry path to its location on disk
func (e *Exporter) OutputPath(entryPath string) (string, error) {
	clean, err := cleanEntryPath(entryPath)
	if err != nil {
		return "", err
	}

	if e.flatten {
		return filepath.Join(e.outputDir, sanitizePath(clean)), nil
	}

	return filepath.Join(e.outputDir, filepath.FromSlash(clean)), nil
}

// cleanEntryPath normalizes separators and rejects absolute or escaping paths
func cleanEntryPath(entryPath string) (string, error) {
	p := strings.ReplaceAll(entryPath, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") || filepath.VolumeName(p) != "" || hasDriveLetter(p) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, entryPath)
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, entryPath)
	}

	return clean, nil
}

// hasDriveLetter reports a leading "X:" on any host OS
func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// sanitizePath replaces forward slashes with @ symbols
func sanitizePath(p string) string {
	return strings.ReplaceAll(p, "/", "@")
}
