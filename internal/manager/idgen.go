package manager

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces room identifiers. The scheme is pluggable so the
// obfuscated sequence generator can be swapped for a random one without
// touching the manager.
type IDGenerator interface {
	// Next returns the next candidate room id. Candidates are not
	// guaranteed unique across all time; the manager rejects a candidate
	// that collides with a currently registered room.
	Next() string
}

// idBits is the width of the encoded identifier: four base-32 characters.
const idBits = 20

// idAlphabet is the custom base-32 alphabet. It omits i, l, o and u to
// keep ids unambiguous when read aloud or retyped.
const idAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// bitShuffle is a fixed permutation of the 20 id bits. Diffusing the
// counter bits keeps consecutive ids from looking sequential; because it is
// a permutation, encoding remains a bijection on 20-bit values.
var bitShuffle = [idBits]uint{
	13, 2, 19, 7, 0, 11, 16, 4, 9, 18,
	1, 14, 6, 10, 3, 17, 12, 5, 15, 8,
}

// permuteBits moves bit i of v to position bitShuffle[i].
func permuteBits(v uint32) uint32 {
	var out uint32
	for i, dst := range bitShuffle {
		if v&(1<<uint(i)) != 0 {
			out |= 1 << dst
		}
	}
	return out
}

// encodeID renders the low 20 bits of v as four alphabet characters, most
// significant group first.
func encodeID(v uint32) string {
	var buf [4]byte
	for i := range buf {
		shift := uint(idBits - 5*(i+1))
		buf[i] = idAlphabet[(v>>shift)&0x1f]
	}
	return string(buf[:])
}

// SequenceGenerator derives ids from a monotonic 32-bit creation counter.
// The counter is never reset and never reused directly: each value is
// bit-permuted, then its low 20 bits are base-32 encoded. Past 2^20
// creations the candidates repeat and creation starts failing on collision.
type SequenceGenerator struct {
	counter atomic.Uint32
}

// NewSequenceGenerator returns a generator starting at counter zero.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// Next returns the id for the next counter value.
func (g *SequenceGenerator) Next() string {
	n := g.counter.Add(1) - 1
	return encodeID(permuteBits(n & (1<<idBits - 1)))
}

// RandomGenerator derives ids from UUID randomness instead of a counter.
// Same encoding, no ordering relationship between consecutive ids.
type RandomGenerator struct{}

// Next returns an id built from 20 random bits.
func (RandomGenerator) Next() string {
	u := uuid.New()
	return encodeID(binary.BigEndian.Uint32(u[0:4]) & (1<<idBits - 1))
}
