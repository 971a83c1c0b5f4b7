package pak

import (
	"bytes"
	"encoding/binary"

	"github.com/jchantrell/lspak/internal/codec"
)

const (
	// NameSize is the fixed width of the path field in every file list record.
	NameSize = 256

	recordSize15 = NameSize + 8 + 8 + 8 + 4 + 4 + 4 + 4
	recordSize18 = NameSize + 4 + 2 + 1 + 1 + 4 + 4
)

// Entry describes one packaged file.
type Entry struct {
	Path             string
	Offset           uint64
	SizeOnDisk       uint64
	UncompressedSize uint64
	ArchivePart      uint32
	Flags            uint32
	CRC              uint32
}

// Method returns the compression method encoded in the entry flags.
func (e Entry) Method() codec.Method {
	return codec.MethodFromFlags(e.Flags)
}

// Size returns the size of the entry's contents once read.
func (e Entry) Size() uint64 {
	if e.Method() == codec.None {
		return e.SizeOnDisk
	}
	return e.UncompressedSize
}

// nameFromField returns the bytes before the first NUL, or the whole field.
func nameFromField(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

// joinOffset rebuilds a 48-bit offset split into a low word and a high half-word.
func joinOffset(lo uint32, hi uint16) uint64 {
	return uint64(lo) | uint64(hi)<<32
}

// decodeEntry15 decodes a v15/v16 record:
// name[256] offset:u64 sizeOnDisk:u64 uncompressedSize:u64 part:u32 flags:u32 crc:u32 reserved:u32
func decodeEntry15(rec []byte) Entry {
	le := binary.LittleEndian
	p := rec[NameSize:]
	return Entry{
		Path:             nameFromField(rec[:NameSize]),
		Offset:           le.Uint64(p[0:]),
		SizeOnDisk:       le.Uint64(p[8:]),
		UncompressedSize: le.Uint64(p[16:]),
		ArchivePart:      le.Uint32(p[24:]),
		Flags:            le.Uint32(p[28:]),
		CRC:              le.Uint32(p[32:]),
	}
}

// decodeEntry18 decodes a v18 record:
// name[256] offsetLo:u32 offsetHi:u16 part:u8 flags:u8 sizeOnDisk:u32 uncompressedSize:u32
func decodeEntry18(rec []byte) Entry {
	le := binary.LittleEndian
	p := rec[NameSize:]
	return Entry{
		Path:             nameFromField(rec[:NameSize]),
		Offset:           joinOffset(le.Uint32(p[0:]), le.Uint16(p[4:])),
		ArchivePart:      uint32(p[6]),
		Flags:            uint32(p[7]),
		SizeOnDisk:       uint64(le.Uint32(p[8:])),
		UncompressedSize: uint64(le.Uint32(p[12:])),
	}
}
