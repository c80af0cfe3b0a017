package precompress

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats([]string{"gz", "ZSTD", "gzip", ""})
	require.NoError(t, err)
	assert.Equal(t, []Format{Gzip, Zstd}, got)

	_, err = ParseFormats([]string{"brotli"})
	assert.Error(t, err)
}

func TestWriteSidecarsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.js")
	data := []byte(strings.Repeat("function a(){return 1}", 50))

	written, err := WriteSidecars(path, data, []Format{Gzip, Zstd})
	require.NoError(t, err)
	assert.Equal(t, []string{path + ".gz", path + ".zst"}, written)

	gz, err := os.ReadFile(path + ".gz")
	require.NoError(t, err)
	r, err := gzip.NewReader(bytes.NewReader(gz))
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, plain)

	zst, err := os.ReadFile(path + ".zst")
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err = dec.DecodeAll(zst, nil)
	require.NoError(t, err)
	assert.Equal(t, data, plain)
	assert.Less(t, len(zst), len(data))
}
