package grpc

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"google.golang.org/grpc/encoding"
)

func roundTrip(t *testing.T, c encoding.Compressor, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	r, err := c.Decompress(&buf)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestZstdRegistered(t *testing.T) {
	if c := encoding.GetCompressor(ZstdName); c == nil || c.Name() != ZstdName {
		t.Fatalf("expected the zstd compressor to be registered, got %v", c)
	}
}

func TestZstdRoundTripReusesPool(t *testing.T) {
	c := newZstdCompressor()
	payload := []byte(strings.Repeat("Viper 1, Bandit 1 splashed. ", 64))

	//1.- The second pass runs on recycled encoder and decoder state.
	for i := 0; i < 2; i++ {
		if got := roundTrip(t, c, payload); !bytes.Equal(got, payload) {
			t.Fatalf("pass %d: round trip mismatch", i)
		}
	}
}

func TestZstdRejectsGarbage(t *testing.T) {
	c := newZstdCompressor()
	r, err := c.Decompress(strings.NewReader("not a zstd frame"))
	if err == nil {
		_, err = io.ReadAll(r)
	}
	if err == nil {
		t.Fatalf("expected an error for a corrupt frame")
	}
}
