package utils

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm string

const (
	CompressionNone   CompressionAlgorithm = "none"
	CompressionGzip   CompressionAlgorithm = "gzip"
	CompressionZlib   CompressionAlgorithm = "zlib"
	CompressionBrotli CompressionAlgorithm = "brotli"
)

// codec ids are persisted in artifact headers and must never be renumbered.
var codecIDs = map[CompressionAlgorithm]byte{
	CompressionNone:   0,
	CompressionGzip:   1,
	CompressionZlib:   2,
	CompressionBrotli: 3,
}

// ParseCompression maps a config value to an algorithm.
func ParseCompression(name string) (CompressionAlgorithm, error) {
	algorithm := CompressionAlgorithm(name)
	if _, ok := codecIDs[algorithm]; !ok {
		return "", fmt.Errorf("unsupported compression algorithm: %s", name)
	}
	return algorithm, nil
}

// CodecID returns the persisted byte for algorithm.
func CodecID(algorithm CompressionAlgorithm) (byte, error) {
	id, ok := codecIDs[algorithm]
	if !ok {
		return 0, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
	return id, nil
}

// AlgorithmForCodec is the inverse of CodecID.
func AlgorithmForCodec(id byte) (CompressionAlgorithm, error) {
	for algorithm, codec := range codecIDs {
		if codec == id {
			return algorithm, nil
		}
	}
	return "", fmt.Errorf("unknown codec id: %d", id)
}

// CompressData compresses data using the specified algorithm
func CompressData(data []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var (
		buf    bytes.Buffer
		writer io.WriteCloser
	)

	switch algorithm {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		writer = gzip.NewWriter(&buf)
	case CompressionZlib:
		writer = zlib.NewWriter(&buf)
	case CompressionBrotli:
		writer = brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to %s writer: %w", algorithm, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s writer: %w", algorithm, err)
	}
	return buf.Bytes(), nil
}

// DecompressData decompresses data using the specified algorithm
func DecompressData(compressed []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(compressed) == 0 {
		return compressed, nil
	}

	var reader io.Reader

	switch algorithm {
	case CompressionNone:
		return compressed, nil

	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz

	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create zlib reader: %w", err)
		}
		defer zr.Close()
		reader = zr

	case CompressionBrotli:
		reader = brotli.NewReader(bytes.NewReader(compressed))

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s reader: %w", algorithm, err)
	}
	return data, nil
}
