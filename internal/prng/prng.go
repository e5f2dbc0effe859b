// Package prng provides the reproducible pseudo-random source used by content
// generation. It is a plain linear congruential generator so the exact sequence
// can be reproduced on any platform from a seed alone.
package prng

const (
	modulus    uint64 = 1 << 31
	multiplier uint64 = 1103515245
	increment  uint64 = 12345

	// DefaultSeed is the seed used when the configuration does not set one.
	DefaultSeed uint32 = 1337
)

// Rand is a linear congruential generator: state = (a*state + c) mod 2^31.
// A Rand is not safe for concurrent use.
type Rand struct {
	state uint64
}

// New returns a generator seeded with seed.
func New(seed uint32) *Rand {
	return &Rand{state: uint64(seed)}
}

// NextInt advances the generator and returns the new state in [0, 2^31).
// The product is computed in 64 bits, so it never overflows before the modulo.
func (r *Rand) NextInt() uint32 {
	r.state = (multiplier*r.state + increment) % modulus
	return uint32(r.state)
}

// NextFloat returns a value in [0, 1).
func (r *Rand) NextFloat() float64 {
	return float64(r.NextInt()) / float64(modulus)
}

// Pick returns an element of items chosen by the generator, or the zero value
// when items is empty.
func Pick[T any](r *Rand, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	idx := int(r.NextFloat() * float64(len(items)))
	if idx >= len(items) {
		idx = len(items) - 1
	}
	return items[idx]
}
