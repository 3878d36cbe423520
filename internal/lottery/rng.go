// Package lottery provides the seeded selection used by the lottery payout policy.
//
// The generator is ChaCha20 keyed by a 64-bit seed expanded through PCG32, read as a stream
// of little-endian 32-bit words starting at block 0 with a zero nonce. Together with Shuffle
// this reproduces rand_chacha's ChaCha20Rng::seed_from_u64 driving rand 0.8's slice shuffle,
// so winners chosen here match winners chosen by the on-chain coprocessor for the same seed.
package lottery

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

const (
	pcgMultiplier uint64 = 6364136223846793005
	pcgIncrement  uint64 = 11634580027462260723

	blockSize = 64
)

// RNG is a deterministic ChaCha20 word stream. A value must not be shared across settlements.
type RNG struct {
	cipher *chacha20.Cipher
	block  [blockSize]byte
	pos    int
}

// New returns a generator for seed.
func New(seed uint64) *RNG {
	return NewFromKey(ExpandSeed(seed))
}

// NewFromKey returns a generator keyed directly with a 32 byte ChaCha20 key.
func NewFromKey(key [chacha20.KeySize]byte) *RNG {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// key and nonce sizes are fixed by the array types
		panic(err)
	}
	return &RNG{cipher: c, pos: blockSize}
}

// ExpandSeed turns a 64-bit seed into a ChaCha20 key with the PCG32 output function,
// advancing the state before each 4-byte chunk.
func ExpandSeed(seed uint64) [chacha20.KeySize]byte {
	var key [chacha20.KeySize]byte
	state := seed
	for i := 0; i < len(key); i += 4 {
		state = state*pcgMultiplier + pcgIncrement
		xorshifted := uint32(((state >> 18) ^ state) >> 27)
		rot := uint32(state >> 59)
		x := xorshifted>>rot | xorshifted<<((32-rot)&31)
		binary.LittleEndian.PutUint32(key[i:], x)
	}
	return key
}

// Uint32 returns the next word of the keystream.
func (r *RNG) Uint32() uint32 {
	if r.pos == blockSize {
		r.refill()
	}
	v := binary.LittleEndian.Uint32(r.block[r.pos:])
	r.pos += 4
	return v
}

// Uint64 returns two consecutive words, low word first.
func (r *RNG) Uint64() uint64 {
	lo := uint64(r.Uint32())
	hi := uint64(r.Uint32())
	return hi<<32 | lo
}

func (r *RNG) refill() {
	r.block = [blockSize]byte{}
	r.cipher.XORKeyStream(r.block[:], r.block[:])
	r.pos = 0
}
