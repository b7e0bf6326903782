// Package cache implements the set-associative cache simulator: address
// decomposition, the three way-selection policies, the victim buffer,
// and the per-access-kind hit/miss counters.
package cache

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Address is the decomposition of a fetch address into the three fields
// a cache needs to route and tag an access.
type Address struct {
	Tag        uint64
	SetIndex   uint64
	LineOffset uint64
}

// isPow2 reports whether n is an exact power of two using the same
// popcount idiom the teacher's branch predictor uses for its own
// power-of-two table sizing.
func isPow2(n uint32) bool {
	return n != 0 && bits.OnesCount32(n) == 1
}

func log2(n uint32) uint {
	return uint(bits.TrailingZeros32(n))
}

// Split decomposes addr given the cache's line size and set count. Both
// must be powers of two; this is checked once at cache construction, not
// on every access, so Split itself is error-free on the hot path and the
// power-of-two check lives in validateGeometry.
func Split(addr uint64, lineSize, numSets uint32) Address {
	lineShift := log2(lineSize)
	setMask := uint64(numSets - 1)
	tag := addr >> lineShift
	return Address{
		Tag:        tag,
		SetIndex:   tag & setMask,
		LineOffset: addr & uint64(lineSize-1),
	}
}

// SplitSkewed is the alternative decomposition mentioned in the design
// notes: never selected by the default configuration, kept only because
// the source exposes it as a selectable (if dead) code path.
func SplitSkewed(addr uint64, lineSize, numSets uint32) Address {
	lineShift := log2(lineSize)
	setMask := uint64(numSets - 1)
	tag := addr >> lineShift
	folded := (tag >> lineShift) & setMask
	return Address{
		Tag:        tag,
		SetIndex:   (tag & setMask) ^ folded,
		LineOffset: addr & uint64(lineSize-1),
	}
}

// validateGeometry is the construction-time check spec.md §4.1 requires:
// Split/SplitSkewed themselves never fail, but a Cache built over a
// non-power-of-two line size or set count would silently misroute every
// access, so NewCache checks once at construction instead.
func validateGeometry(lineSize, numSets uint32) error {
	if !isPow2(lineSize) {
		return errors.Errorf("cache: line size must be a power of two, got %d", lineSize)
	}
	if !isPow2(numSets) {
		return errors.Errorf("cache: set count must be a power of two, got %d", numSets)
	}
	return nil
}
