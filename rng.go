package formulacore

import (
	"encoding/binary"
	"math/rand/v2"
)

// VolatileRNG produces deterministic pseudo-random draws keyed on
// (workbook generation, cell address, draw index within that cell's
// evaluation): two recalculations of the same workbook generation against
// the same cell reproduce bit-identical RAND()/RANDBETWEEN() results,
// which is what lets what-if scenario replay and test fixtures be
// reproducible while RAND()
// still changes across an actual recalculation (a bumped generation).
type VolatileRNG struct {
	generation uint64
}

func NewVolatileRNG() *VolatileRNG { return &VolatileRNG{generation: 1} }

// BumpGeneration is called once per full recalculation pass, so every
// volatile cell redraws a fresh value on the next Recalculate.
func (v *VolatileRNG) BumpGeneration() { v.generation++ }

func (v *VolatileRNG) Generation() uint64 { return v.generation }

// seedFor derives a 64-bit seed from the (generation, cell, draw) triple
// using a fixed-length encode plus a SplitMix64-style finalizer, so nearby
// keys do not produce correlated low-order bits.
func (v *VolatileRNG) seedFor(addr CellAddress, draw int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], v.generation)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(addr.Sheet))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(addr.Row))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(addr.Col))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(draw))
	h := fnv64a(buf[:])
	return splitMix64(h)
}

func fnv64a(data []byte) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for _, b := range data {
		h ^= uint64(b)
		h *= prime
	}
	return h
}

func splitMix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x = x ^ (x >> 31)
	return x
}

// Float64 returns a deterministic draw in [0, 1) for (addr, draw).
func (v *VolatileRNG) Float64(addr CellAddress, draw int) float64 {
	seed := v.seedFor(addr, draw)
	src := rand.New(rand.NewPCG(seed, seed^0xA5A5A5A5A5A5A5A5))
	return src.Float64()
}

// IntRange returns a deterministic draw in [lo, hi] inclusive.
func (v *VolatileRNG) IntRange(addr CellAddress, draw int, lo, hi int64) int64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := uint64(hi-lo) + 1
	seed := v.seedFor(addr, draw)
	src := rand.New(rand.NewPCG(seed, seed^0x5A5A5A5A5A5A5A5A))
	return lo + int64(src.Uint64N(span))
}
