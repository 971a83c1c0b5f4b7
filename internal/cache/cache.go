package cache

import (
	"os"
	"path/filepath"
	"strings"
)

// Cache handles the tool's data directory layout
type Cache struct {
	root string
}

// CacheManager creates a cache rooted at ~/.lspak, or ./.lspak without a home directory
func CacheManager() *Cache {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return NewCache(filepath.Join(".", ".lspak"))
	}
	return NewCache(filepath.Join(homeDir, ".lspak"))
}

// NewCache creates a cache rooted at dir
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

// GetCacheDir returns the root data directory
func (m *Cache) GetCacheDir() string {
	return m.root
}

// EnsureDir creates a directory and all parent directories
func (m *Cache) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists
func (m *Cache) FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// GetFileSize returns the size of a file, or 0 if it doesn't exist
func (m *Cache) GetFileSize(filename string) int64 {
	info, err := os.Stat(filename)
	if err != nil {
		return 0
	}
	return info.Size()
}

// GetDatabasePath returns the default index database path
func (m *Cache) GetDatabasePath() string {
	return filepath.Join(m.root, "index.db")
}

// GetExtractDir returns a per-package extraction directory below outputDir,
// named after the package file without its extension
func (m *Cache) GetExtractDir(outputDir, packagePath string) string {
	base := filepath.Base(packagePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, " ", "_")
	return filepath.Join(outputDir, name)
}
