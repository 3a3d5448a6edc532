package vectorindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"study-assistant-platform/utils"

	"go.mongodb.org/mongo-driver/bson"
)

// Artifact layout:
//
//	[0:4]  magic "QIDX"
//	[4]    format version
//	[5]    codec id (utils.CodecID)
//	[6:10] CRC32 (IEEE) of the payload, big endian
//	[10:]  compressed BSON encoding of Index
const (
	formatVersion = 1
	headerSize    = 10
)

var magic = []byte("QIDX")

func encode(idx *Index, algorithm utils.CompressionAlgorithm) ([]byte, error) {
	raw, err := bson.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal index: %w", err)
	}
	codec, err := utils.CodecID(algorithm)
	if err != nil {
		return nil, err
	}
	payload, err := utils.CompressData(raw, algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to compress index: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(payload)))
	buf.Write(magic)
	buf.WriteByte(formatVersion)
	buf.WriteByte(codec)
	_ = binary.Write(buf, binary.BigEndian, crc32.ChecksumIEEE(payload))
	buf.Write(payload)
	return buf.Bytes(), nil
}

func decode(data []byte) (*Index, error) {
	if len(data) < headerSize {
		return nil, errors.New("artifact shorter than header")
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, errors.New("bad magic")
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", data[4])
	}
	algorithm, err := utils.AlgorithmForCodec(data[5])
	if err != nil {
		return nil, err
	}
	payload := data[headerSize:]
	if sum := binary.BigEndian.Uint32(data[6:10]); sum != crc32.ChecksumIEEE(payload) {
		return nil, errors.New("checksum mismatch")
	}

	raw, err := utils.DecompressData(payload, algorithm)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := bson.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return &idx, nil
}
