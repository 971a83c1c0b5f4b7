package pak

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// FS returns a read-only filesystem view of the package. Directories are
// synthesized from entry paths. File contents are decompressed when a file is
// first read.
func (a *Archive) FS() fs.FS {
	a.fsOnce.Do(func() {
		files := make([]*Entry, len(a.entries))
		for i := range a.entries {
			files[i] = &a.entries[i]
		}
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Path < files[j].Path
		})
		a.fs = &pakFS{archive: a, files: files}
	})
	return a.fs
}

// pakFS implements fs.FS over a sorted view of the file list
type pakFS struct {
	archive *Archive
	files   []*Entry
}

func (p *pakFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		return &pakDir{fs: p, name: ".", prefix: "", offset: 0}, nil
	}

	files := p.files

	// binary search for the file
	idx := sort.Search(len(files), func(i int) bool {
		return files[i].Path >= name
	})
	if idx < len(files) && files[idx].Path == name {
		return &pakFile{fs: p, entry: files[idx]}, nil
	}

	// check for a directory separately
	dirName := name + "/"
	idx += sort.Search(len(files)-idx, func(i int) bool {
		return files[idx+i].Path >= dirName
	})
	if idx < len(files) && strings.HasPrefix(files[idx].Path, dirName) {
		return &pakDir{fs: p, name: name, prefix: dirName, offset: idx}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS without going through a file handle.
func (p *pakFS) ReadFile(name string) ([]byte, error) {
	f, err := p.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pf, ok := f.(*pakFile)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errIsDir}
	}
	data, err := p.archive.ReadEntry(*pf.entry)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS.
func (p *pakFS) ReadDir(name string) ([]fs.DirEntry, error) {
	f, err := p.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, ok := f.(*pakDir)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errNotDir}
	}
	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

var (
	errIsDir  = errors.New("is a directory")
	errNotDir = errors.New("not a directory")
)

// pakFile implements fs.File for entries
type pakFile struct {
	fs     *pakFS
	entry  *Entry
	reader io.Reader
}

func (pf *pakFile) Read(b []byte) (int, error) {
	if pf.reader == nil {
		r, err := pf.fs.archive.OpenEntry(*pf.entry)
		if err != nil {
			return 0, &fs.PathError{Op: "read", Path: pf.entry.Path, Err: err}
		}
		pf.reader = r
	}
	return pf.reader.Read(b)
}

func (pf *pakFile) Close() error {
	pf.reader = nil
	return nil
}

func (pf *pakFile) Stat() (fs.FileInfo, error) {
	return &pakFileInfo{pf.entry}, nil
}

// pakFileInfo implements fs.FileInfo for entries
type pakFileInfo struct {
	entry *Entry
}

func (fi *pakFileInfo) Name() string       { return path.Base(fi.entry.Path) }
func (fi *pakFileInfo) Size() int64        { return int64(fi.entry.Size()) }
func (fi *pakFileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi *pakFileInfo) ModTime() time.Time { return time.Unix(0, 0) }
func (fi *pakFileInfo) IsDir() bool        { return false }
func (fi *pakFileInfo) Sys() any           { return fi.entry }

// pakDir implements fs.ReadDirFile for synthesized directories
type pakDir struct {
	fs     *pakFS
	name   string
	prefix string
	offset int
}

func (d *pakDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: errIsDir}
}

func (d *pakDir) Close() error {
	return nil
}

func (d *pakDir) Stat() (fs.FileInfo, error) {
	return &pakDirInfo{name: d.name}, nil
}

func (d *pakDir) ReadDir(n int) ([]fs.DirEntry, error) {
	files := d.fs.files
	prefixLen := len(d.prefix)

	dirents := []fs.DirEntry{}

	for d.offset < len(files) {
		e := files[d.offset]
		if !strings.HasPrefix(e.Path, d.prefix) {
			break
		}

		rest := e.Path[prefixLen:]
		if slashIdx := strings.IndexByte(rest, '/'); slashIdx != -1 {
			dir := e.Path[:prefixLen+slashIdx]
			dirents = append(dirents, &pakDirEntry{name: path.Base(dir)})

			// everything under dir+"/" sorts before dir+"0"
			end := dir + "0"
			d.offset += sort.Search(len(files)-d.offset, func(i int) bool {
				return files[d.offset+i].Path >= end
			})
		} else {
			dirents = append(dirents, &pakDirEntry{name: path.Base(e.Path), entry: e})
			d.offset++
		}

		if n > 0 && len(dirents) >= n {
			return dirents, nil
		}
	}

	if n > 0 && len(dirents) == 0 {
		return nil, io.EOF
	}
	return dirents, nil
}

// pakDirInfo implements fs.FileInfo for directories
type pakDirInfo struct {
	name string
}

func (di *pakDirInfo) Name() string       { return path.Base(di.name) }
func (di *pakDirInfo) Size() int64        { return 0 }
func (di *pakDirInfo) Mode() fs.FileMode  { return 0o555 | fs.ModeDir }
func (di *pakDirInfo) ModTime() time.Time { return time.Unix(0, 0) }
func (di *pakDirInfo) IsDir() bool        { return true }
func (di *pakDirInfo) Sys() any           { return nil }

// pakDirEntry implements fs.DirEntry; entry is nil for directories
type pakDirEntry struct {
	name  string
	entry *Entry
}

func (de *pakDirEntry) Name() string { return de.name }
func (de *pakDirEntry) IsDir() bool  { return de.entry == nil }

func (de *pakDirEntry) Type() fs.FileMode {
	if de.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (de *pakDirEntry) Info() (fs.FileInfo, error) {
	if de.IsDir() {
		return &pakDirInfo{name: de.name}, nil
	}
	return &pakFileInfo{de.entry}, nil
}
