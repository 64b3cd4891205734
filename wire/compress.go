package wire

import (
	"github.com/klauspost/compress/zstd"
)

// CompressThreshold is the payload size above which the server compresses
// history frames. Compressed frames travel as binary WebSocket messages;
// plain JSON travels as text.
const CompressThreshold = 1024

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// Compress compresses a frame payload with zstd if it exceeds the threshold.
// Returns (compressed data, true) if compression helped, or (original, false).
func Compress(payload []byte) ([]byte, bool) {
	if len(payload) <= CompressThreshold {
		return payload, false
	}

	compressed := encoder.EncodeAll(payload, make([]byte, 0, len(payload)))

	// Only use compressed if it's actually smaller
	if len(compressed) >= len(payload) {
		return payload, false
	}

	return compressed, true
}

// Decompress decompresses a zstd-compressed frame payload.
func Decompress(data []byte) ([]byte, error) {
	return decoder.DecodeAll(data, nil)
}
