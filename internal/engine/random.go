package engine

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

const (
	mtStateWords = 624
	mtOffset     = 397
	mtMatrixA    = 0x9908b0df
	mtUpperMask  = 0x80000000
	mtLowerMask  = 0x7fffffff
)

// StateWords is the number of 32-bit words in the generator state.
// Exposed for the save converters' fixed-width layouts.
const StateWords = mtStateWords

// RNG is a seedable Mersenne-twister pseudo-random number generator.
// Its entire internal state is an index plus a fixed array of 32-bit
// words, so it can be checkpointed into a save file and restored to
// continue the exact same draw sequence. It is safe for concurrent use.
type RNG struct {
	mu    sync.Mutex
	words [mtStateWords]uint32
	index int
}

// NewRNG creates a new PRNG with the given seed. If seed is 0, uses current time.
func NewRNG(seed int64) *RNG {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &RNG{}
	r.seed(uint32(seed))
	return r
}

func (r *RNG) seed(s uint32) {
	r.words[0] = s
	for i := 1; i < mtStateWords; i++ {
		r.words[i] = 1812433253*(r.words[i-1]^(r.words[i-1]>>30)) + uint32(i)
	}
	r.index = mtStateWords
}

// twist regenerates the word array. Caller must hold the mutex.
func (r *RNG) twist() {
	for i := 0; i < mtStateWords; i++ {
		y := (r.words[i] & mtUpperMask) | (r.words[(i+1)%mtStateWords] & mtLowerMask)
		r.words[i] = r.words[(i+mtOffset)%mtStateWords] ^ (y >> 1)
		if y&1 != 0 {
			r.words[i] ^= mtMatrixA
		}
	}
	r.index = 0
}

// Uint32 returns a uniformly distributed uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	if r.index >= mtStateWords {
		r.twist()
	}
	y := r.words[r.index]
	r.index++
	r.mu.Unlock()

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Uint64 returns a uniformly distributed uint64.
func (r *RNG) Uint64() uint64 {
	hi := uint64(r.Uint32())
	lo := uint64(r.Uint32())
	return hi<<32 | lo
}

// Float64 returns a uniformly distributed float64 in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.Uint32()) / (1 << 32)
}

// Intn returns a uniformly distributed int in [0, n).
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Uint32() % uint32(n))
}

// IntRange returns a uniformly distributed int in [min, max].
func (r *RNG) IntRange(min, max int) int {
	if min >= max {
		return min
	}
	return min + r.Intn(max-min+1)
}

// FloatRange returns a uniformly distributed float64 in [min, max).
func (r *RNG) FloatRange(min, max float64) float64 {
	if min >= max {
		return min
	}
	return min + r.Float64()*(max-min)
}

// Chance rolls a uniform draw in [0, 100) against the given percentage.
func (r *RNG) Chance(pct float64) bool {
	return r.Float64()*100 < pct
}

// State returns a copy of the internal PRNG state for persistence.
func (r *RNG) State() (index int, words []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, mtStateWords)
	copy(out, r.words[:])
	return r.index, out
}

// Restore sets the internal PRNG state from persisted values.
func (r *RNG) Restore(index int, words []uint32) error {
	if len(words) != mtStateWords {
		return fmt.Errorf("rng state: got %d words, want %d", len(words), mtStateWords)
	}
	if index < 0 || index > mtStateWords {
		return fmt.Errorf("rng state: index %d out of range [0, %d]", index, mtStateWords)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(r.words[:], words)
	r.index = index
	return nil
}

// StateBytes returns the PRNG state as a byte slice for storage:
// a big-endian uint16 index followed by the word array.
func (r *RNG) StateBytes() []byte {
	index, words := r.State()
	buf := make([]byte, 2+4*mtStateWords)
	binary.BigEndian.PutUint16(buf[0:2], uint16(index))
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[2+4*i:], w)
	}
	return buf
}

// RestoreStateBytes restores PRNG state from a byte slice produced by StateBytes.
func (r *RNG) RestoreStateBytes(b []byte) error {
	if len(b) != 2+4*mtStateWords {
		return fmt.Errorf("rng state: got %d bytes, want %d", len(b), 2+4*mtStateWords)
	}
	index := int(binary.BigEndian.Uint16(b[0:2]))
	words := make([]uint32, mtStateWords)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[2+4*i:])
	}
	return r.Restore(index, words)
}
