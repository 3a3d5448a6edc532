package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("photosynthesis converts light energy into chemical energy. ", 50))

	for _, algorithm := range []CompressionAlgorithm{CompressionNone, CompressionGzip, CompressionZlib, CompressionBrotli} {
		t.Run(string(algorithm), func(t *testing.T) {
			compressed, err := CompressData(payload, algorithm)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if algorithm != CompressionNone && len(compressed) >= len(payload) {
				t.Fatalf("expected %s to shrink repetitive input, got %d >= %d", algorithm, len(compressed), len(payload))
			}
			out, err := DecompressData(compressed, algorithm)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Fatalf("round trip mismatch for %s", algorithm)
			}
		})
	}
}

func TestCodecIDs(t *testing.T) {
	id, err := CodecID(CompressionBrotli)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	algorithm, err := AlgorithmForCodec(id)
	if err != nil || algorithm != CompressionBrotli {
		t.Fatalf("expected brotli for codec %d, got %q (%v)", id, algorithm, err)
	}
	if _, err := AlgorithmForCodec(42); err == nil {
		t.Fatalf("expected unknown codec error")
	}
	if _, err := ParseCompression("zstd"); err == nil {
		t.Fatalf("expected zstd to be rejected")
	}
}

func TestDecompressCorruptData(t *testing.T) {
	if _, err := DecompressData([]byte("not gzip at all"), CompressionGzip); err == nil {
		t.Fatalf("expected error for corrupt gzip input")
	}
}
