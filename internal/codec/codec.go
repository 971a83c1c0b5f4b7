package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Method identifies how an entry payload is compressed. In the package format
// it is the low nibble of an entry's flags.
type Method uint8

const (
	None Method = 0
	Zlib Method = 1
	LZ4  Method = 2
)

// MethodMask selects the compression method bits from entry flags.
const MethodMask = 0x0F

var (
	// ErrUnsupportedCompression is matched by every UnsupportedCompressionError.
	ErrUnsupportedCompression = errors.New("unsupported compression method")

	// ErrDecode is returned when compressed data cannot be decoded.
	ErrDecode = errors.New("decompression failed")
)

// UnsupportedCompressionError carries the raw method value that was rejected.
type UnsupportedCompressionError struct {
	Method Method
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("unsupported compression method (flags=0x%x)", uint8(e.Method))
}

func (e *UnsupportedCompressionError) Is(target error) bool {
	return target == ErrUnsupportedCompression
}

// MethodFromFlags extracts the compression method from entry flags.
func MethodFromFlags(flags uint32) Method {
	return Method(flags & MethodMask)
}

// Valid reports whether m is one of the implemented methods.
func (m Method) Valid() bool {
	switch m {
	case None, Zlib, LZ4:
		return true
	default:
		return false
	}
}

// String returns the human-readable name of the compression method.
func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Zlib:
		return "zlib"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(0x%x)", uint8(m))
	}
}

// Decompress decodes src according to method.
//
// For None the input is returned unchanged. For Zlib the stream is read to its
// end and the caller is expected to compare the result against expected. For
// LZ4 the data is a raw block with no embedded length, so expected must be the
// exact decompressed size; any other outcome is reported as ErrDecode.
func Decompress(method Method, src []byte, expected int) ([]byte, error) {
	switch method {
	case None:
		return src, nil
	case Zlib:
		return decompressZlib(src, expected)
	case LZ4:
		return decompressLZ4(src, expected)
	default:
		return nil, &UnsupportedCompressionError{Method: method}
	}
}

func decompressZlib(src []byte, expected int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header: %w", ErrDecode, err)
	}
	defer zr.Close()

	// Reading one byte past expected is enough for the caller to see a
	// mismatch without letting a corrupt stream grow without bound.
	limit := int64(expected) + 1
	if expected < 0 {
		limit = 0
	}
	out, err := io.ReadAll(io.LimitReader(zr, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib: %w", ErrDecode, err)
	}
	return out, nil
}

func decompressLZ4(src []byte, expected int) ([]byte, error) {
	if expected < 0 {
		return nil, fmt.Errorf("%w: lz4: negative output size %d", ErrDecode, expected)
	}
	dst := make([]byte, expected)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", ErrDecode, err)
	}
	if n != expected {
		return nil, fmt.Errorf("%w: lz4: got %d bytes, expected %d", ErrDecode, n, expected)
	}
	return dst, nil
}
