package pak

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path"
	"slices"
	"sync"

	"github.com/jchantrell/lspak/internal/codec"
)

// DefaultMaxEntrySize bounds single allocations for entries and the file list (1GiB).
const DefaultMaxEntrySize = 1 << 30

// Archive is an opened package. It is immutable once Open returns.
type Archive struct {
	mu      sync.Mutex
	r       io.ReadSeeker
	closer  io.Closer
	size    int64
	header  Header
	layout  layout
	entries []Entry
	byPath  map[string]int
	maxSize uint64

	fsOnce sync.Once
	fs     *pakFS
}

// Option configures an Archive.
type Option func(*Archive)

// WithMaxEntrySize limits how many bytes a single entry or the file list may
// declare. Set to 0 to disable the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(a *Archive) {
		a.maxSize = limit
	}
}

// OpenFile opens the package at name. The file is closed by Archive.Close.
func OpenFile(name string, opts ...Option) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}

	a, err := Open(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// Open reads the header and file list from r. The reader is owned by the
// Archive afterwards and must not be used by the caller while the Archive is
// in use.
func Open(r io.ReadSeeker, opts ...Option) (*Archive, error) {
	a := &Archive{
		r:       r,
		maxSize: DefaultMaxEntrySize,
	}
	for _, opt := range opts {
		opt(a)
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("sizing package: %w", err)
	}
	a.size = size

	version, err := a.readSignature()
	if err != nil {
		return nil, err
	}

	l, err := layoutFor(version)
	if err != nil {
		return nil, err
	}
	a.layout = l

	a.header, err = l.readHeader(r, l.version)
	if err != nil {
		return nil, fmt.Errorf("reading V%d header: %w", version, err)
	}

	if err := a.readFileList(); err != nil {
		return nil, fmt.Errorf("reading file list: %w", err)
	}

	a.byPath = make(map[string]int, len(a.entries))
	for i, e := range a.entries {
		if _, dup := a.byPath[e.Path]; !dup {
			a.byPath[e.Path] = i
		}
	}

	slog.Debug("Package opened",
		"version", uint32(a.header.Version),
		"flags", a.header.Flags.String(),
		"priority", a.header.Priority,
		"parts", a.header.NumParts,
		"entries", len(a.entries))

	return a, nil
}

// readSignature checks the trailing legacy signature and the leading magic,
// and returns the raw version number.
func (a *Archive) readSignature() (uint32, error) {
	if a.size < int64(len(Magic)) {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidFormat, a.size)
	}

	var sig [4]byte

	// V13 packages carry their signature at the end of the file
	if _, err := a.r.Seek(-int64(len(sig)), io.SeekEnd); err != nil {
		return 0, fmt.Errorf("seeking to trailer: %w", err)
	}
	if err := readFull(a.r, sig[:]); err != nil {
		return 0, fmt.Errorf("reading trailer: %w", err)
	}
	if sig == Magic {
		return 0, &UnsupportedVersionError{Legacy: "V13"}
	}

	if _, err := a.r.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking to signature: %w", err)
	}
	if err := readFull(a.r, sig[:]); err != nil {
		return 0, fmt.Errorf("reading signature: %w", err)
	}
	if sig != Magic {
		return 0, fmt.Errorf("%w: signature %q", ErrInvalidFormat, sig[:])
	}

	var v [4]byte
	if err := readFull(a.r, v[:]); err != nil {
		return 0, fmt.Errorf("reading version: %w", err)
	}
	return binary.LittleEndian.Uint32(v[:]), nil
}

func (a *Archive) readFileList() error {
	off := a.header.FileListOffset
	if off > uint64(a.size) {
		return fmt.Errorf("%w: file list offset %d beyond %d bytes", ErrEndOfStream, off, a.size)
	}
	if _, err := a.r.Seek(int64(off), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to file list: %w", err)
	}

	var counts [8]byte
	if err := readFull(a.r, counts[:]); err != nil {
		return fmt.Errorf("reading file list counts: %w", err)
	}
	numFiles := binary.LittleEndian.Uint32(counts[0:])
	compressedSize := binary.LittleEndian.Uint32(counts[4:])

	if remaining := uint64(a.size) - off - 8; uint64(compressedSize) > remaining {
		return fmt.Errorf("%w: file list needs %d bytes, %d remain", ErrEndOfStream, compressedSize, remaining)
	}

	listSize := uint64(numFiles) * uint64(a.layout.recordSize)
	if a.maxSize > 0 && listSize > a.maxSize {
		return fmt.Errorf("%w: file list of %d bytes", ErrSizeOverflow, listSize)
	}

	compressed := make([]byte, compressedSize)
	if err := readFull(a.r, compressed); err != nil {
		return fmt.Errorf("reading compressed file list: %w", err)
	}

	list, err := codec.Decompress(codec.LZ4, compressed, int(listSize))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptDirectory, err)
	}
	if uint64(len(list)) != listSize {
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrCorruptDirectory, len(list), listSize)
	}

	rs := a.layout.recordSize
	a.entries = make([]Entry, numFiles)
	for i := range a.entries {
		a.entries[i] = a.layout.decode(list[i*rs : (i+1)*rs])
	}

	return nil
}

// Close releases the underlying file when the Archive was opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// Header returns the parsed package header.
func (a *Archive) Header() Header {
	return a.header
}

// Version returns the package format version.
func (a *Archive) Version() Version {
	return a.header.Version
}

// Flags returns the package header flags.
func (a *Archive) Flags() Flags {
	return a.header.Flags
}

// Len returns the number of entries in the file list.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns a copy of the file list in directory order.
func (a *Archive) Entries() []Entry {
	return slices.Clone(a.entries)
}

// Find returns the first entry with the given path.
func (a *Archive) Find(name string) (Entry, bool) {
	i, ok := a.byPath[name]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// Glob returns the entries whose path matches pattern, in directory order.
// Pattern syntax is that of path.Match.
func (a *Archive) Glob(pattern string) ([]Entry, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	var matches []Entry
	for _, e := range a.entries {
		if ok, _ := path.Match(pattern, e.Path); ok {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// ReadEntry reads and decompresses the contents of e. Every call seeks to the
// entry's absolute offset, so entries may be read in any order and repeated
// reads return identical bytes.
func (a *Archive) ReadEntry(e Entry) ([]byte, error) {
	raw, err := a.readRaw(e)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", e.Path, err)
	}

	method := e.Method()
	if !method.Valid() {
		return nil, fmt.Errorf("reading %s: %w", e.Path, &codec.UnsupportedCompressionError{Method: method})
	}
	if method == codec.None {
		return raw, nil
	}

	if a.maxSize > 0 && e.UncompressedSize > a.maxSize {
		return nil, fmt.Errorf("reading %s: %w: %d bytes uncompressed", e.Path, ErrSizeOverflow, e.UncompressedSize)
	}
	if e.UncompressedSize > math.MaxInt {
		return nil, fmt.Errorf("reading %s: %w: %d bytes uncompressed", e.Path, ErrSizeOverflow, e.UncompressedSize)
	}

	data, err := codec.Decompress(method, raw, int(e.UncompressedSize))
	if err != nil {
		if errors.Is(err, codec.ErrDecode) {
			return nil, fmt.Errorf("reading %s: %w: %w", e.Path, ErrCorruptEntry, err)
		}
		return nil, fmt.Errorf("reading %s: %w", e.Path, err)
	}
	if uint64(len(data)) != e.UncompressedSize {
		return nil, fmt.Errorf("reading %s: %w: decompressed to %d bytes, expected %d",
			e.Path, ErrCorruptEntry, len(data), e.UncompressedSize)
	}

	return data, nil
}

// readRaw reads the on-disk bytes of e. The seek and read happen under the
// archive lock.
func (a *Archive) readRaw(e Entry) ([]byte, error) {
	if a.maxSize > 0 && e.SizeOnDisk > a.maxSize {
		return nil, fmt.Errorf("%w: %d bytes on disk", ErrSizeOverflow, e.SizeOnDisk)
	}
	if e.Offset > math.MaxInt64 {
		return nil, fmt.Errorf("%w: offset %d", ErrEndOfStream, e.Offset)
	}
	if e.Offset > uint64(a.size) || e.SizeOnDisk > uint64(a.size)-e.Offset {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, package is %d bytes", ErrEndOfStream, e.SizeOnDisk, e.Offset, a.size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos, err := a.r.Seek(int64(e.Offset), io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("seeking to entry: %w", err)
	}
	if pos != int64(e.Offset) {
		return nil, fmt.Errorf("%w: seek landed at %d, wanted %d", ErrEndOfStream, pos, e.Offset)
	}

	buf := make([]byte, e.SizeOnDisk)
	if err := readFull(a.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// OpenEntry returns a reader over the decompressed contents of e.
func (a *Archive) OpenEntry(e Entry) (io.ReadSeeker, error) {
	data, err := a.ReadEntry(e)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
