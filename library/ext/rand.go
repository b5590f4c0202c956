package ext

import (
	"math/rand"
	"sync"

	"golang.org/x/exp/constraints"
)

// lockedSource makes a single rand.Rand safe for the game goroutines.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewRand returns a goroutine safe generator seeded with seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}

// RandIntWith returns a value in [min, max) drawn from r.
func RandIntWith[T constraints.Integer](r *rand.Rand, min T, max T) T {
	if max <= min {
		return min
	}
	return T(r.Int63n(int64(max-min))) + min
}

// Shuffle returns a shuffled copy of s; s is left untouched.
func Shuffle[T any](r *rand.Rand, s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
