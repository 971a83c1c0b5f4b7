package pak

import (
	"errors"
	"fmt"
	"io"

	"github.com/jchantrell/lspak/internal/codec"
)

var (
	// ErrInvalidFormat is returned when the stream does not start with the package signature.
	ErrInvalidFormat = errors.New("not a valid package file")

	// ErrUnsupportedVersion is matched by every UnsupportedVersionError.
	ErrUnsupportedVersion = errors.New("unsupported package version")

	// ErrEndOfStream is returned when a seek or read lands short of the requested range.
	ErrEndOfStream = errors.New("unexpected end of stream")

	// ErrCorruptDirectory is returned when the file list cannot be decoded to its declared size.
	ErrCorruptDirectory = errors.New("corrupt file list")

	// ErrCorruptEntry is returned when an entry does not decompress to its declared size.
	ErrCorruptEntry = errors.New("corrupt entry")

	// ErrSizeOverflow is returned when a declared size exceeds the configured limit.
	ErrSizeOverflow = errors.New("declared size exceeds limit")

	// ErrUnsupportedCompression is re-exported from codec.
	ErrUnsupportedCompression = codec.ErrUnsupportedCompression
)

// UnsupportedVersionError reports a version number the reader cannot parse.
// Legacy is set instead of Version for trailer-signed packages.
type UnsupportedVersionError struct {
	Version uint32
	Legacy  string
}

func (e *UnsupportedVersionError) Error() string {
	if e.Legacy != "" {
		return fmt.Sprintf("unsupported package version: %s", e.Legacy)
	}
	return fmt.Sprintf("unsupported package version: %s", Version(e.Version))
}

func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

// readFull fills buf from r, mapping short reads to ErrEndOfStream.
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrEndOfStream, err)
		}
		return err
	}
	return nil
}
