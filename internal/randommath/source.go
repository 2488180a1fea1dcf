package randommath

import (
	"encoding/binary"

	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/internal/crypto"
)

// ByteSource transforms the generator's pseudorandom buffer in place once
// every byte of it has been consumed. Implementations must be deterministic
// and bit-compatible with the reference to produce interoperable programs.
type ByteSource interface {
	Refill(buf *[constants.SeedSize]byte)
}

// Blake256Source is the reference byte source (hash_extra_blake)
type Blake256Source struct{}

func (Blake256Source) Refill(buf *[constants.SeedSize]byte) {
	*buf = crypto.Blake256(buf[:])
}

// byteStream hands out pseudorandom bytes, refilling the buffer from the
// source whenever it runs empty
type byteStream struct {
	data   [constants.SeedSize]byte
	index  int
	source ByteSource
}

// newByteStream seeds the buffer with the little endian height followed by
// zeros; the first read triggers a refill
func newByteStream(height uint64, source ByteSource) byteStream {
	s := byteStream{index: constants.SeedSize, source: source}
	binary.LittleEndian.PutUint64(s.data[:8], height)
	return s
}

func (s *byteStream) next() byte {
	if s.index >= len(s.data) {
		s.source.Refill(&s.data)
		s.index = 0
	}
	b := s.data[s.index]
	s.index++
	return b
}
