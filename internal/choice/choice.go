// Package choice supplies bounded integer draws to the turn stepper. The
// deterministic backend consumes a fuzzer-provided byte buffer so that a saved
// input replays the exact same decision sequence; the random backend draws
// from a seeded PCG for exploratory runs.
package choice

import "encoding/binary"

const (
	// Width is the number of buffer bytes consumed per deterministic draw.
	Width = 2

	// MinBytes is the guard threshold: the driver checks Remaining() against
	// this before deriving the seed and before every turn. Buffers that run
	// below it end the run with the quiet insufficient-input outcome.
	MinBytes = 16
)

// Source yields bounded integer choices. Implementations are single-owner
// mutable state, created once per fuzz invocation and discarded at run end.
type Source interface {
	// IntRange returns an integer in [min, max] inclusive.
	IntRange(min, max int) int

	// Pick returns an index in [0, n). Callers must guard n > 0.
	Pick(n int) int

	// Remaining reports how many unconsumed bytes are left, or math.MaxInt
	// for backends that never exhaust.
	Remaining() int
}

// ByteSource is the deterministic backend: a cursor over an immutable byte
// buffer. Each draw consumes a fixed-width window and maps it into range by
// modulo. It never pads silently; callers are expected to check Remaining()
// before drawing.
type ByteSource struct {
	buf []byte
	pos int
}

// NewByteSource wraps a fuzz input buffer. The source takes ownership of the
// slice for the duration of the run and only ever reads it.
func NewByteSource(buf []byte) *ByteSource {
	return &ByteSource{buf: buf}
}

// IntRange returns min + (next window % span). If fewer than Width bytes
// remain the missing bytes read as zero; the cursor still advances so the
// consumption count stays regular.
func (s *ByteSource) IntRange(min, max int) int {
	span := max - min + 1
	var v int
	if s.pos+Width <= len(s.buf) {
		v = int(binary.BigEndian.Uint16(s.buf[s.pos:]))
	} else if s.pos < len(s.buf) {
		v = int(s.buf[s.pos])
	}
	s.pos += Width
	return min + v%span
}

// Pick returns an index in [0, n).
func (s *ByteSource) Pick(n int) int {
	return s.IntRange(1, n) - 1
}

// Remaining returns the number of unconsumed bytes.
func (s *ByteSource) Remaining() int {
	if s.pos >= len(s.buf) {
		return 0
	}
	return len(s.buf) - s.pos
}
