// Package codec reads and writes Mozilla's mozlz4 container, used for the
// compressed page fixtures and the panel-data blobs in the local store.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

const headerSize = 12 // 8 magic + 4 size

// IsMozLz4 reports whether data starts with the mozlz4 magic.
func IsMozLz4(data []byte) bool {
	return len(data) >= headerSize && bytes.Equal(data[:len(mozLz4Magic)], mozLz4Magic)
}

// Decompress decodes data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	if !IsMozLz4(data) {
		return nil, fmt.Errorf("mozlz4: invalid header magic")
	}

	size := binary.LittleEndian.Uint32(data[8:12])
	if size == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// Compress encodes src in mozlz4 format.
func Compress(src []byte) ([]byte, error) {
	block := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, block, nil)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: compress failed: %w", err)
	}
	if n == 0 {
		// lz4 reports incompressible input with n == 0; mozlz4 has no raw
		// mode, so emit a literal-only block instead.
		block = literalBlock(src)
	} else {
		block = block[:n]
	}

	out := make([]byte, headerSize, headerSize+len(block))
	copy(out, mozLz4Magic)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(src)))
	return append(out, block...), nil
}

func literalBlock(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/255+2)
	l := len(src)
	if l < 15 {
		out = append(out, byte(l<<4))
	} else {
		out = append(out, 0xF0)
		rest := l - 15
		for rest >= 255 {
			out = append(out, 255)
			rest -= 255
		}
		out = append(out, byte(rest))
	}
	return append(out, src...)
}
