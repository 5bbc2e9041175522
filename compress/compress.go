// Package compress provides the transforms applied to envelope bytes on
// their way to and from disk.
//
// Decode is self-detecting: each implementation inspects the leading
// magic bytes and passes plain or foreign payloads through unchanged.
// Compressed and uncompressed files therefore coexist in one cache
// directory, and switching transforms is a drop-in migration in either
// direction. Detect is the read-side catch-all used by the file tier:
// it undoes any known transform regardless of what is configured for
// writes.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compressor transforms envelope bytes before they reach disk and back.
type Compressor interface {
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

// None is the identity transform.
type None struct{}

func (None) Encode(b []byte) ([]byte, error) { return b, nil }
func (None) Decode(b []byte) ([]byte, error) { return b, nil }

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// IsGzip reports whether b starts with the gzip magic bytes.
func IsGzip(b []byte) bool { return len(b) >= 2 && bytes.Equal(b[:2], gzipMagic) }

// IsZstd reports whether b starts with a zstd frame header.
func IsZstd(b []byte) bool { return len(b) >= 4 && bytes.Equal(b[:4], zstdMagic) }

// Gzip compresses with the standard library gzip. The zero value is
// ready to use. Decode accepts both gzip streams and plain payloads.
type Gzip struct{}

func (Gzip) Encode(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("strata: gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("strata: gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func (Gzip) Decode(b []byte) ([]byte, error) {
	if !IsGzip(b) {
		return b, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("strata: gunzip: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("strata: gunzip: %w", err)
	}
	return out, nil
}

// Zstd compresses with klauspost zstd. Construct with NewZstd; the zero
// value is not ready to use. Decode accepts both zstd frames and plain
// payloads.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("strata: zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("strata: zstd reader: %w", err)
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

func (z *Zstd) Encode(b []byte) ([]byte, error) {
	return z.enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func (z *Zstd) Decode(b []byte) ([]byte, error) {
	if !IsZstd(b) {
		return b, nil
	}
	out, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("strata: zstd: %w", err)
	}
	return out, nil
}

var (
	sharedZstdOnce sync.Once
	sharedZstd     *zstd.Decoder
	sharedZstdErr  error
)

// Detect undoes any known transform: gzip and zstd payloads are
// decompressed no matter which Compressor is configured for writes;
// everything else passes through unchanged. This keeps old files
// readable after the write transform changes.
func Detect(b []byte) ([]byte, error) {
	switch {
	case IsGzip(b):
		return Gzip{}.Decode(b)
	case IsZstd(b):
		sharedZstdOnce.Do(func() {
			sharedZstd, sharedZstdErr = zstd.NewReader(nil)
		})
		if sharedZstdErr != nil {
			return nil, fmt.Errorf("strata: zstd: %w", sharedZstdErr)
		}
		out, err := sharedZstd.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("strata: zstd: %w", err)
		}
		return out, nil
	default:
		return b, nil
	}
}
