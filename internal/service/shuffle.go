package service

import (
	"math/rand"
	"sync"
)

// Shuffler produces shuffled copies of slices from an injectable random
// source, so tests can pin a seed and assert exact orderings.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler creates a Shuffler from the given source.
func NewShuffler(src rand.Source) *Shuffler {
	return &Shuffler{rng: rand.New(src)}
}

// shuffledCopy returns a Fisher-Yates-shuffled copy, leaving the input
// untouched.
func shuffledCopy[T any](s *Shuffler, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)

	s.mu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	s.mu.Unlock()

	return out
}
