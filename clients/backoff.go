package clients

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff implements exponential backoff with optional jitter.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64

	mu   sync.Mutex
	rand *rand.Rand
}

func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max < base {
		max = base
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{
		BaseDelay: base,
		MaxDelay:  max,
		Jitter:    math.Min(jitter, 1),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ForAttempt returns the delay before retry number attempt (0-indexed).
func (b *Backoff) ForAttempt(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// float64 so large bases and attempts saturate instead of wrapping
	delay := float64(b.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(b.MaxDelay) {
		return b.addJitter(b.MaxDelay)
	}
	return b.addJitter(time.Duration(delay))
}

func (b *Backoff) addJitter(delay time.Duration) time.Duration {
	if b.Jitter == 0 {
		return delay
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	factor := 1 + (b.rand.Float64()*2-1)*b.Jitter
	return time.Duration(float64(delay) * factor)
}
