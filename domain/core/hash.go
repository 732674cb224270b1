package core

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Checksum is a non-cryptographic structural fingerprint. Equal checksums are
// treated as "same configuration" for caching, which is a heuristic: distinct
// inputs can collide. Never use a Checksum for security-relevant deduplication.
type Checksum uint64

// Sentinels substituted for zero hashes so a single zero factor cannot collapse
// a multiplicative accumulator.
const (
	ZeroFieldSentinel   uint64 = 17
	ZeroProductSentinel uint64 = 13
	AbsentValidSentinel uint64 = 17
	AbsentListSentinel  uint64 = 23
	AbsentNamesSentinel uint64 = 13
)

// NonZero returns v, or sentinel when v is zero.
func NonZero(v, sentinel uint64) uint64 {
	if v == 0 {
		return sentinel
	}
	return v
}

// Hasher builds length-prefixed hashes so adjacent fields cannot run together.
type Hasher struct {
	d *xxhash.Digest
}

// NewHasher returns an empty hasher
func NewHasher() *Hasher {
	return &Hasher{d: xxhash.New()}
}

func (h *Hasher) writeLen(n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.d.Write(buf[:])
}

// String adds one length-prefixed string
func (h *Hasher) String(s string) *Hasher {
	h.writeLen(len(s))
	h.d.WriteString(s)
	return h
}

// Uint64 adds a fixed-width value
func (h *Hasher) Uint64(v uint64) *Hasher {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.d.Write(buf[:])
	return h
}

// Float64 adds a value by its bit pattern; all NaNs hash alike.
func (h *Hasher) Float64(v float64) *Hasher {
	if math.IsNaN(v) {
		return h.Uint64(0x7ff8000000000001)
	}
	return h.Uint64(math.Float64bits(v))
}

// Strings adds a length-prefixed list. A nil list and an empty list differ.
func (h *Hasher) Strings(ss []string) *Hasher {
	if ss == nil {
		h.Uint64(math.MaxUint64)
		return h
	}
	h.writeLen(len(ss))
	for _, s := range ss {
		h.String(s)
	}
	return h
}

// Sum returns the current digest
func (h *Hasher) Sum() uint64 {
	return h.d.Sum64()
}

// HashString hashes a single string
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// HashStrings hashes an ordered string list
func HashStrings(ss []string) uint64 {
	return NewHasher().Strings(ss).Sum()
}

// Product is a multiplicative checksum accumulator. Multiplication wraps modulo
// 2^64, so every folded factor is made odd: an even factor would clear a low
// bit of the product for good and enough of them drive it to zero.
type Product struct {
	v uint64
}

// NewProduct starts an accumulator at 1
func NewProduct() Product {
	return Product{v: 1}
}

// Mul folds a factor in, remapping a zero factor to sentinel first. The
// factor enters as 2f+1, which keeps small ordinals distinct and the product
// odd, hence never zero.
func (p *Product) Mul(factor, sentinel uint64) {
	p.v *= NonZero(factor, sentinel)<<1 | 1
}

// Value returns the accumulated product
func (p Product) Value() uint64 {
	return p.v
}
