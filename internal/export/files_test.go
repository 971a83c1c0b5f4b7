package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchantrell/lspak/internal/pak"
)

type mapLoader map[string][]byte

func (m mapLoader) ReadEntry(e pak.Entry) ([]byte, error) {
	data, ok := m[e.Path]
	if !ok {
		return nil, errors.New("no such entry")
	}
	return data, nil
}

func entries(paths ...string) []pak.Entry {
	out := make([]pak.Entry, len(paths))
	for i, p := range paths {
		out[i] = pak.Entry{Path: p}
	}
	return out
}

func TestExportEntries(t *testing.T) {
	dir := t.TempDir()
	loader := mapLoader{
		"Mods/Test/meta.lsx":           []byte("<save/>"),
		"Public/Test/Stats/Spells.txt": []byte("new entry"),
	}

	var calls []string
	exp := NewExporter(loader, dir)
	err := exp.ExportEntries(entries("Mods/Test/meta.lsx", "Public/Test/Stats/Spells.txt"),
		func(current, total int, description string) {
			assert.Equal(t, 2, total)
			calls = append(calls, description)
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mods/Test/meta.lsx", "Public/Test/Stats/Spells.txt"}, calls)

	data, err := os.ReadFile(filepath.Join(dir, "Mods", "Test", "meta.lsx"))
	require.NoError(t, err)
	assert.Equal(t, "<save/>", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "Public", "Test", "Stats", "Spells.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new entry", string(data))
}

func TestExportFlatten(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(mapLoader{"a/b/c.txt": []byte("x")}, dir)
	exp.SetFlatten(true)

	require.NoError(t, exp.ExportEntries(entries("a/b/c.txt"), nil))

	_, err := os.Stat(filepath.Join(dir, "a@b@c.txt"))
	require.NoError(t, err)
}

func TestExportRejectsUnsafePaths(t *testing.T) {
	for _, p := range []string{
		"../escape.txt",
		"Mods/../../escape.txt",
		"/etc/passwd",
		"..\\windows.txt",
		"C:/windows.txt",
		"c:windows.txt",
		"",
		".",
	} {
		t.Run(p, func(t *testing.T) {
			dir := t.TempDir()
			exp := NewExporter(mapLoader{p: []byte("x")}, dir)

			err := exp.ExportEntries(entries("Mods/ok.txt", p), nil)
			require.ErrorIs(t, err, ErrUnsafePath)

			// nothing written before validation failed
			_, statErr := os.Stat(filepath.Join(dir, "Mods"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestExportCleansInnerDots(t *testing.T) {
	exp := NewExporter(nil, "out")
	got, err := exp.OutputPath("Mods/./Test/../Test/meta.lsx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "Mods", "Test", "meta.lsx"), got)
}

func TestExportAllowsColonsInNames(t *testing.T) {
	dir := t.TempDir()
	exp := NewExporter(mapLoader{"Mods/Test/Story/RawFiles/Goals/Act1:Intro.txt": []byte("goal")}, dir)

	require.NoError(t, exp.ExportEntries(entries("Mods/Test/Story/RawFiles/Goals/Act1:Intro.txt"), nil))

	data, err := os.ReadFile(filepath.Join(dir, "Mods", "Test", "Story", "RawFiles", "Goals", "Act1:Intro.txt"))
	require.NoError(t, err)
	assert.Equal(t, "goal", string(data))
}

func TestExportLoaderError(t *testing.T) {
	exp := NewExporter(mapLoader{}, t.TempDir())
	err := exp.ExportEntries(entries("missing.txt"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.txt")
}

func TestExportEmpty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never")
	require.NoError(t, NewExporter(mapLoader{}, dir).ExportEntries(nil, nil))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
