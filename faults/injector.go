package faults

import (
	"math/rand"
	"sync"
	"time"
)

// Injector decides whether a single attempt should fail on purpose.
type Injector interface {
	ShouldFail() bool
}

// RandomInjector fails each attempt independently with a fixed probability.
type RandomInjector struct {
	mu   sync.Mutex
	rng  *rand.Rand
	rate float64
}

func NewRandomInjector(rate float64) *RandomInjector {
	return NewSeededInjector(rate, time.Now().UnixNano())
}

// NewSeededInjector returns a RandomInjector with a reproducible sequence.
func NewSeededInjector(rate float64, seed int64) *RandomInjector {
	return &RandomInjector{
		rng:  rand.New(rand.NewSource(seed)),
		rate: rate,
	}
}

// ShouldFail returns true with probability Rate().
func (r *RandomInjector) ShouldFail() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.rate
}

func (r *RandomInjector) Rate() float64 {
	return r.rate
}

// Always fails every attempt.
type Always struct{}

func (Always) ShouldFail() bool { return true }

// Never lets every attempt through.
type Never struct{}

func (Never) ShouldFail() bool { return false }
