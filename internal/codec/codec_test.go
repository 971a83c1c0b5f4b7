package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plaintext = []byte(strings.Repeat("<attribute id=\"Folder\" type=\"LSString\" value=\"Example\"/>\n", 32))

func compressLZ4(t *testing.T, data []byte) []byte {
	t.Helper()
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	require.NoError(t, err)
	require.NotZero(t, n, "fixture must be compressible")
	return dst[:n]
}

func compressZlib(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecompressNone(t *testing.T) {
	t.Parallel()

	src := []byte("stored as is")
	out, err := Decompress(None, src, 0)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestDecompressZlib(t *testing.T) {
	t.Parallel()

	compressed := compressZlib(t, plaintext)

	t.Run("exact", func(t *testing.T) {
		t.Parallel()
		out, err := Decompress(Zlib, compressed, len(plaintext))
		require.NoError(t, err)
		assert.Equal(t, plaintext, out)
	})

	t.Run("declared too small is visible to caller", func(t *testing.T) {
		t.Parallel()
		out, err := Decompress(Zlib, compressed, 10)
		require.NoError(t, err)
		assert.Len(t, out, 11)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := Decompress(Zlib, []byte("not a zlib stream"), len(plaintext))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestDecompressLZ4(t *testing.T) {
	t.Parallel()

	compressed := compressLZ4(t, plaintext)

	t.Run("exact", func(t *testing.T) {
		t.Parallel()
		out, err := Decompress(LZ4, compressed, len(plaintext))
		require.NoError(t, err)
		assert.Equal(t, plaintext, out)
	})

	t.Run("expected too small", func(t *testing.T) {
		t.Parallel()
		_, err := Decompress(LZ4, compressed, len(plaintext)-1)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("expected too large", func(t *testing.T) {
		t.Parallel()
		_, err := Decompress(LZ4, compressed, len(plaintext)+1)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("truncated block", func(t *testing.T) {
		t.Parallel()
		_, err := Decompress(LZ4, compressed[:len(compressed)-1], len(plaintext))
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestDecompressUnsupported(t *testing.T) {
	t.Parallel()

	for _, m := range []Method{3, 4, 0xF} {
		_, err := Decompress(m, []byte{1, 2, 3}, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedCompression)

		var uce *UnsupportedCompressionError
		require.True(t, errors.As(err, &uce))
		assert.Equal(t, m, uce.Method)
	}
}

func TestMethodFromFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flags uint32
		want  Method
	}{
		{0x00, None},
		{0x01, Zlib},
		{0x02, LZ4},
		{0x42, LZ4},
		{0x13, Method(3)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MethodFromFlags(tt.flags), "flags=0x%x", tt.flags)
	}
}

func TestMethodString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", None.String())
	assert.Equal(t, "zlib", Zlib.String())
	assert.Equal(t, "lz4", LZ4.String())
	assert.Equal(t, "unknown(0x3)", Method(3).String())
	assert.True(t, LZ4.Valid())
	assert.False(t, Method(3).Valid())
}
