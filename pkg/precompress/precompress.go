// Package precompress writes pre-compressed sidecars (.gz, .zst) next to
// processed assets so static file servers can serve them directly.
package precompress

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/assetneat/pkg/safeio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies a sidecar encoding.
type Format string

const (
	Gzip Format = "gzip"
	Zstd Format = "zstd"
)

// Extension returns the sidecar file suffix for f.
func (f Format) Extension() string {
	switch f {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseFormats validates a list of format names. "gz" and "zst" are accepted
// as aliases. Duplicates are dropped.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, n := range names {
		var f Format
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "":
			continue
		case "gzip", "gz":
			f = Gzip
		case "zstd", "zst":
			f = Zstd
		default:
			return nil, fmt.Errorf("unknown precompress format %q (want gzip or zstd)", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// zstd.Encoder is safe for concurrent EncodeAll calls; one is shared.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdErr     error
)

func encoder() (*zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	return zstdEncoder, zstdErr
}

// Compress encodes data with f.
func Compress(data []byte, f Format) ([]byte, error) {
	switch f {
	case Gzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := encoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	default:
		return nil, fmt.Errorf("unsupported precompress format %q", f)
	}
}

// WriteSidecars writes one sidecar per format next to path and returns the
// written paths. Existing sidecars are overwritten.
func WriteSidecars(path string, data []byte, formats []Format) ([]string, error) {
	written := make([]string, 0, len(formats))
	for _, f := range formats {
		encoded, err := Compress(data, f)
		if err != nil {
			return written, fmt.Errorf("%s %s: %w", f, path, err)
		}
		target := path + f.Extension()
		if err := safeio.WriteFileAtomic(target, encoded); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}
