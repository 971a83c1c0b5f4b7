package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Magic is the signature at the start of every supported package.
var Magic = [4]byte{'L', 'S', 'P', 'K'}

// Version is the format version stored after the signature.
type Version uint32

const (
	V15 Version = 15
	V16 Version = 16
	V18 Version = 18
)

func (v Version) String() string {
	return fmt.Sprintf("V%d", uint32(v))
}

// Flags are the package-wide header flags.
type Flags uint8

const (
	FlagAllowMemoryMapping Flags = 0x2
	FlagSolid              Flags = 0x4
	FlagPreload            Flags = 0x8
)

func (f Flags) String() string {
	var names []string
	if f&FlagAllowMemoryMapping != 0 {
		names = append(names, "mmap")
	}
	if f&FlagSolid != 0 {
		names = append(names, "solid")
	}
	if f&FlagPreload != 0 {
		names = append(names, "preload")
	}
	if rest := f &^ (FlagAllowMemoryMapping | FlagSolid | FlagPreload); rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint8(rest)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Header is the fixed header following the signature and version.
type Header struct {
	Version        Version
	FileListOffset uint64
	FileListSize   uint32
	Flags          Flags
	Priority       uint8
	MD5            [16]byte
	NumParts       uint16
}

// on-disk header shapes, little endian, packed
type header15 struct {
	FileListOffset uint64
	FileListSize   uint32
	Flags          uint8
	Priority       uint8
	MD5            [16]byte
}

type header16 struct {
	FileListOffset uint64
	FileListSize   uint32
	Flags          uint8
	Priority       uint8
	MD5            [16]byte
	NumParts       uint16
}

func readHeader15(r io.Reader, v Version) (Header, error) {
	var buf [30]byte
	if err := readFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	var h header15
	if err := binary.Read(bytes.NewReader(buf[:]), binary.LittleEndian, &h); err != nil {
		return Header{}, err
	}
	return Header{
		Version:        v,
		FileListOffset: h.FileListOffset,
		FileListSize:   h.FileListSize,
		Flags:          Flags(h.Flags),
		Priority:       h.Priority,
		MD5:            h.MD5,
	}, nil
}

func readHeader16(r io.Reader, v Version) (Header, error) {
	var buf [32]byte
	if err := readFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	var h header16
	if err := binary.Read(bytes.NewReader(buf[:]), binary.LittleEndian, &h); err != nil {
		return Header{}, err
	}
	return Header{
		Version:        v,
		FileListOffset: h.FileListOffset,
		FileListSize:   h.FileListSize,
		Flags:          Flags(h.Flags),
		Priority:       h.Priority,
		MD5:            h.MD5,
		NumParts:       h.NumParts,
	}, nil
}

// layout binds a version to its header and file list record shapes. The set
// of layouts is closed and one is selected when the package is opened.
type layout struct {
	version    Version
	readHeader func(io.Reader, Version) (Header, error)
	recordSize int
	decode     func([]byte) Entry
}

var (
	layoutV15 = layout{version: V15, readHeader: readHeader15, recordSize: recordSize15, decode: decodeEntry15}
	layoutV16 = layout{version: V16, readHeader: readHeader16, recordSize: recordSize15, decode: decodeEntry15}
	layoutV18 = layout{version: V18, readHeader: readHeader16, recordSize: recordSize18, decode: decodeEntry18}
)

func layoutFor(v uint32) (layout, error) {
	switch Version(v) {
	case V15:
		return layoutV15, nil
	case V16:
		return layoutV16, nil
	case V18:
		return layoutV18, nil
	default:
		return layout{}, &UnsupportedVersionError{Version: v}
	}
}

// RecordSize returns the size of one file list record for v, or 0 if v is unsupported.
func RecordSize(v Version) int {
	l, err := layoutFor(uint32(v))
	if err != nil {
		return 0
	}
	return l.recordSize
}
