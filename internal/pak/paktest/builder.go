// Package paktest builds small synthetic packages for tests.
package paktest

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/jchantrell/lspak/internal/codec"
)

// File is one entry to place in a package.
type File struct {
	Path   string
	Data   []byte
	Method codec.Method

	// DeclaredSize overrides the uncompressed size written to the file list.
	DeclaredSize *uint64
	// ExtraFlags are OR'ed into the entry flags above the method nibble.
	ExtraFlags uint32
	// Part is the archive part index written to the record.
	Part uint32
}

// Builder describes a package to assemble.
type Builder struct {
	Version  uint32
	Flags    uint8
	Priority uint8
	NumParts uint16
	Files    []File

	// TruncateFileList drops this many bytes from the end of the compressed
	// file list, adjusting its declared size to match.
	TruncateFileList int
}

type placed struct {
	file             File
	offset           uint64
	sizeOnDisk       uint64
	uncompressedSize uint64
	flags            uint32
	crc              uint32
}

// Bytes assembles the package: signature, version, header, payloads, then the
// LZ4-compressed file list.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("LSPK")
	writeLE(&buf, b.Version)

	headerAt := buf.Len()
	headerLen := 32
	if b.Version == 15 {
		headerLen = 30
	}
	buf.Write(make([]byte, headerLen))

	entries := make([]placed, 0, len(b.Files))
	for _, f := range b.Files {
		payload, err := Compress(f.Method, f.Data)
		if err != nil {
			return nil, fmt.Errorf("compressing %s: %w", f.Path, err)
		}
		p := placed{
			file:             f,
			offset:           uint64(buf.Len()),
			sizeOnDisk:       uint64(len(payload)),
			uncompressedSize: uint64(len(f.Data)),
			flags:            uint32(f.Method) | f.ExtraFlags,
			crc:              crc32.ChecksumIEEE(payload),
		}
		if f.Method == codec.None {
			p.uncompressedSize = 0
		}
		if f.DeclaredSize != nil {
			p.uncompressedSize = *f.DeclaredSize
		}
		buf.Write(payload)
		entries = append(entries, p)
	}

	var list bytes.Buffer
	for _, p := range entries {
		rec, err := b.record(p)
		if err != nil {
			return nil, err
		}
		list.Write(rec)
	}

	compressed, err := Compress(codec.LZ4, list.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compressing file list: %w", err)
	}
	if b.TruncateFileList > 0 {
		compressed = compressed[:len(compressed)-b.TruncateFileList]
	}

	fileListOffset := uint64(buf.Len())
	writeLE(&buf, uint32(len(entries)))
	writeLE(&buf, uint32(len(compressed)))
	buf.Write(compressed)

	var hdr bytes.Buffer
	writeLE(&hdr, fileListOffset)
	writeLE(&hdr, uint32(list.Len()))
	hdr.WriteByte(b.Flags)
	hdr.WriteByte(b.Priority)
	sum := md5.Sum(list.Bytes())
	hdr.Write(sum[:])
	if b.Version != 15 {
		writeLE(&hdr, b.NumParts)
	}

	out := buf.Bytes()
	copy(out[headerAt:headerAt+headerLen], hdr.Bytes())
	return out, nil
}

// WriteFile assembles the package and writes it to name.
func (b *Builder) WriteFile(name string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

func (b *Builder) record(p placed) ([]byte, error) {
	if len(p.file.Path) > 256 {
		return nil, fmt.Errorf("path too long: %d bytes", len(p.file.Path))
	}

	var rec bytes.Buffer
	name := make([]byte, 256)
	copy(name, p.file.Path)
	rec.Write(name)

	if b.Version == 18 {
		if p.offset>>48 != 0 || p.sizeOnDisk>>32 != 0 || p.uncompressedSize>>32 != 0 {
			return nil, fmt.Errorf("%s does not fit a V18 record", p.file.Path)
		}
		writeLE(&rec, uint32(p.offset))
		writeLE(&rec, uint16(p.offset>>32))
		rec.WriteByte(uint8(p.file.Part))
		rec.WriteByte(uint8(p.flags))
		writeLE(&rec, uint32(p.sizeOnDisk))
		writeLE(&rec, uint32(p.uncompressedSize))
		return rec.Bytes(), nil
	}

	writeLE(&rec, p.offset)
	writeLE(&rec, p.sizeOnDisk)
	writeLE(&rec, p.uncompressedSize)
	writeLE(&rec, p.file.Part)
	writeLE(&rec, p.flags)
	writeLE(&rec, p.crc)
	writeLE(&rec, uint32(0))
	return rec.Bytes(), nil
}

// Compress encodes data with method. Unknown methods store data unchanged so
// tests can build entries the reader must reject.
func Compress(method codec.Method, data []byte) ([]byte, error) {
	switch method {
	case codec.Zlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case codec.LZ4:
		if len(data) == 0 {
			return []byte{}, nil
		}
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%d bytes are not compressible as an lz4 block", len(data))
		}
		return dst[:n], nil
	default:
		return bytes.Clone(data), nil
	}
}

func writeLE(buf *bytes.Buffer, v any) {
	// bytes.Buffer writes never fail
	_ = binary.Write(buf, binary.LittleEndian, v)
}
