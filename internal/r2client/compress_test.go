package r2client

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCompressDecompress_RoundTrip(t *testing.T) {
	t.Parallel()

	original := []byte(strings.Repeat(`{"id":"ossu-cs-intro-cs50","name":"CS50","category":"Intro CS"}`, 1000))

	compressed, err := CompressBytes(original)
	if err != nil {
		t.Fatalf("CompressBytes failed: %v", err)
	}

	if len(compressed) >= len(original) {
		t.Logf("Warning: compressed size (%d) >= original size (%d)", len(compressed), len(original))
	}

	decompressed, err := DecompressAll(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("DecompressAll failed: %v", err)
	}

	if !bytes.Equal(decompressed, original) {
		t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(decompressed), len(original))
	}
}

func TestCompressBytes_LargeData(t *testing.T) {
	t.Parallel()

	// 1MB, roughly the size of a full catalog snapshot
	original := make([]byte, 1024*1024)
	for i := range original {
		original[i] = byte(i % 256)
	}

	compressed, err := CompressBytes(original)
	if err != nil {
		t.Fatalf("CompressBytes failed: %v", err)
	}

	decompressed, err := DecompressAll(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("DecompressAll failed: %v", err)
	}

	if !bytes.Equal(decompressed, original) {
		t.Error("decompressed data does not match original")
	}
}

func TestCompressBytes_Empty(t *testing.T) {
	t.Parallel()

	compressed, err := CompressBytes(nil)
	if err != nil {
		t.Fatalf("CompressBytes failed: %v", err)
	}

	decompressed, err := DecompressAll(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("DecompressAll failed: %v", err)
	}

	if len(decompressed) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(decompressed))
	}
}

func TestDecompressAll_InvalidData(t *testing.T) {
	t.Parallel()

	_, err := DecompressAll(strings.NewReader("this is not zstd compressed data"))
	if err == nil {
		t.Error("expected error for invalid zstd data")
	}
}

func TestDecompressAll_Streaming(t *testing.T) {
	t.Parallel()

	original := []byte(strings.Repeat("ABCDEFGHIJ", 10000)) // 100KB

	compressed, err := CompressBytes(original)
	if err != nil {
		t.Fatalf("CompressBytes failed: %v", err)
	}

	// Wrap in a reader that tracks bytes read, simulating a network download
	counting := &countingReader{r: bytes.NewReader(compressed)}

	decompressed, err := DecompressAll(counting)
	if err != nil {
		t.Fatalf("DecompressAll failed: %v", err)
	}

	if !bytes.Equal(decompressed, original) {
		t.Error("decompressed content mismatch")
	}

	t.Logf("Compressed: %d bytes, decompressed: %d bytes", counting.count, len(decompressed))
}

type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (n int, err error) {
	n, err = c.r.Read(p)
	c.count += int64(n)
	return
}
