package utils

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Compression codec names as stored alongside compressed payloads.
const (
	CodecGzip   = "gzip"
	CodecZlib   = "zlib"
	CodecBrotli = "br"
)

// Compress encodes data with the named codec.
func Compress(data []byte, codec string) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch codec {
	case CodecGzip:
		w = gzip.NewWriter(&buf)
	case CodecZlib:
		w = zlib.NewWriter(&buf)
	case CodecBrotli:
		w = brotli.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", codec)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes data previously produced by Compress.
func Decompress(data []byte, codec string) ([]byte, error) {
	switch codec {
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CodecZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CodecBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", codec)
	}
}
