package proto

import (
	"time"

	"github.com/klauspost/compress/zstd"
)

// CompressionLevelDynamic is the sentinel compression_level value
// (§6) meaning "let the sender auto-tune the level per file".
const CompressionLevelDynamic uint8 = 255

// CompressionTuner implements the original's adaptive level selection
// (SPEC_FULL.md "Supplemented features" #1, grounded on
// EACopyNetwork.h's CompressionData.lastLevel/lastWeight): after each
// file it nudges the zstd level up or down based on how compression
// time traded off against the time saved sending fewer bytes. It is
// not safe for concurrent use; each worker connection owns one.
// tunerLevels is the ladder the tuner steps through, from fastest to
// most compressed. zstd.EncoderLevel only recognizes a handful of
// named speed tiers (not every raw integer 1..22), so the tuner steps
// through those tiers rather than incrementing an arbitrary int.
var tunerLevels = []zstd.EncoderLevel{
	zstd.SpeedFastest,
	zstd.SpeedDefault,
	zstd.SpeedBetterCompression,
	zstd.SpeedBestCompression,
}

type CompressionTuner struct {
	levelIdx   int
	lastWeight int64
}

// NewCompressionTuner starts at zstd's default level, the same
// starting point the original uses before its first weight sample.
func NewCompressionTuner() *CompressionTuner {
	return &CompressionTuner{levelIdx: 1} // SpeedDefault
}

// Level returns the level to use for the next file.
func (t *CompressionTuner) Level() zstd.EncoderLevel {
	return tunerLevels[t.levelIdx]
}

// Observe folds in one file's outcome: compressTime is time spent
// compressing, sendTime is time spent pushing the (smaller) compressed
// bytes over the wire. A higher level that increases compressTime more
// than it decreases sendTime is a net loss and the tuner backs off;
// the reverse pushes the level up, capped to zstd's valid range.
func (t *CompressionTuner) Observe(originalSize, compressedSize int64, compressTime, sendTime time.Duration) {
	// Weight approximates "bytes saved per millisecond spent
	// compressing" — the original's lastWeight plays the same role
	// comparing consecutive files' throughput.
	saved := originalSize - compressedSize
	spent := compressTime.Milliseconds()
	if spent <= 0 {
		spent = 1
	}
	weight := saved / spent

	if t.lastWeight != 0 {
		switch {
		case weight > t.lastWeight && t.levelIdx < len(tunerLevels)-1:
			t.levelIdx++
		case weight < t.lastWeight && t.levelIdx > 0:
			t.levelIdx--
		}
	}
	t.lastWeight = weight
}
