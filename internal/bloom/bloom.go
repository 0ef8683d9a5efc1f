// Package bloom implements the fixed-bit probabilistic membership filter
// used as the crawler's scheduled-set. It mirrors
// original_source/include/core/hash_table/bloom_filter.h: the same bit
// sizing formula, the same double-hash insert/lookup scheme, and the same
// MSB-first bit-packed, headerless serialization format.
package bloom

import (
	"errors"
	"io"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrSizeMismatch is returned by ReadFrom when the byte stream is shorter
// than the filter's configured bit-vector size.
var ErrSizeMismatch = errors.New("bloom: byte stream is too short for this filter's size")

// Filter is a fixed-size bit vector with a size counter kept for
// observability only; membership itself never consults it.
type Filter struct {
	mu       sync.Mutex
	bits     []byte // big-endian bit-packed, m bits => ceil(m/8) bytes
	m        uint64 // number of bits
	k        int    // number of hash functions
	size     int    // insertion count, informational only
}

// New sizes a Filter from the expected number of elements and the desired
// false-positive rate:
//
//	m = ceil(-N*ln(p) / (ln 2)^2)
//	k = round(m/N * ln 2)
func New(expectedSize int, falsePositiveRate float64) *Filter {
	n := float64(expectedSize)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	if m < 1 {
		m = 1
	}
	k := int(math.Round(m / n * math.Ln2))
	if k < 1 {
		k = 1
	}
	numBits := uint64(m)
	numBytes := (numBits + 7) / 8
	return &Filter{
		bits: make([]byte, numBytes),
		m:    numBits,
		k:    k,
	}
}

// hashPair derives two independent-enough 32-bit seeds from a single
// xxhash sum of the key, replacing the original's reinterpret_cast trick
// (splitting a 64-bit hash's raw bytes into two 32-bit halves) with the
// equivalent safe Go operation.
func hashPair(key string) (uint64, uint64) {
	h := xxhash.Sum64String(key)
	h1 := h >> 32
	h2 := h & 0xffffffff
	if h2 == 0 {
		h2 = 1 // avoid a degenerate all-i-identical probe sequence
	}
	return h1, h2
}

func (f *Filter) bitIndices(key string) []uint64 {
	h1, h2 := hashPair(key)
	indices := make([]uint64, f.k)
	for i := 0; i < f.k; i++ {
		indices[i] = (h1 + h2*uint64(i)) % f.m
	}
	return indices
}

func (f *Filter) getBit(i uint64) bool {
	return f.bits[i/8]&(1<<(7-i%8)) != 0
}

func (f *Filter) setBit(i uint64) {
	f.bits[i/8] |= 1 << (7 - i%8)
}

// Insert adds key to the filter. Idempotent w.r.t. bit state.
func (f *Filter) Insert(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.bitIndices(key) {
		f.setBit(i)
	}
	f.size++
}

// Contains reports whether key is probably a member. False positives are
// possible; false negatives are not, once Inserted.
func (f *Filter) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.bitIndices(key) {
		if !f.getBit(i) {
			return false
		}
	}
	return true
}

// Size returns the number of Insert calls made, for observability only —
// it is not part of the membership contract and is not persisted.
func (f *Filter) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Clear resets every bit and the size counter.
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bits {
		f.bits[i] = 0
	}
	f.size = 0
}

// WriteTo writes the raw bit-packed byte stream: exactly ceil(m/8) bytes,
// MSB-first per byte, with no size header — the reader must already know m.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := w.Write(f.bits)
	return int64(n), err
}

// ReadFrom reads exactly ceil(m/8) bytes into the filter, replacing its
// current bit state. The filter must already be sized via New with the
// same (expectedSize, falsePositiveRate) the stream was written with.
func (f *Filter) ReadFrom(r io.Reader) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(f.bits))
	n, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return int64(n), ErrSizeMismatch
	}
	if err != nil {
		return int64(n), err
	}
	f.bits = buf
	return int64(n), nil
}

// NumBits returns m, the size of the underlying bit vector.
func (f *Filter) NumBits() uint64 { return f.m }

// NumHashes returns k, the number of hash functions used per operation.
func (f *Filter) NumHashes() int { return f.k }
