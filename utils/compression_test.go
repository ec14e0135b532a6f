package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("chunk content with repetition ", 50))

	for _, codec := range []string{CodecGzip, CodecZlib, CodecBrotli} {
		compressed, err := Compress(payload, codec)
		if err != nil {
			t.Fatalf("%s compress: %v", codec, err)
		}
		if len(compressed) >= len(payload) {
			t.Errorf("%s did not shrink repetitive payload: %d >= %d", codec, len(compressed), len(payload))
		}

		out, err := Decompress(compressed, codec)
		if err != nil {
			t.Fatalf("%s decompress: %v", codec, err)
		}
		if !bytes.Equal(out, payload) {
			t.Errorf("%s round trip mismatch", codec)
		}
	}
}

func TestCompressUnknownCodec(t *testing.T) {
	if _, err := Compress([]byte("x"), "lz4"); err == nil {
		t.Error("expected error for unknown codec")
	}
	if _, err := Decompress([]byte("x"), "lz4"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	c := ContentHash([]byte("different"))
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == c {
		t.Error("different inputs must not collide")
	}
	if len(a) != 64 {
		t.Errorf("expected sha256 hex digest, got length %d", len(a))
	}
}
