// Package random provides seed and generator helpers.
//
// High-entropy seeds come from crypto/rand; the generators themselves are
// deterministic math/rand sources so a recorded seed replays a run exactly.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// MustSeed returns a crypto seed or panics. For wiring paths where seed
// generation failure means the platform's entropy source is broken.
func MustSeed() int64 {
	seed, err := NewSeed()
	if err != nil {
		panic(err)
	}
	return seed
}
