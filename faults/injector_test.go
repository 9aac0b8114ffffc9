package faults

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFixedInjectors(t *testing.T) {
	for i := 0; i < 100; i++ {
		if !(Always{}).ShouldFail() {
			t.Fatal("Always should fail every attempt")
		}
		if (Never{}).ShouldFail() {
			t.Fatal("Never should not fail any attempt")
		}
	}
}

func TestRandomInjectorBounds(t *testing.T) {
	zero := NewRandomInjector(0)
	one := NewRandomInjector(1)
	for i := 0; i < 1000; i++ {
		if zero.ShouldFail() {
			t.Fatal("Rate 0 should never fail")
		}
		if !one.ShouldFail() {
			t.Fatal("Rate 1 should always fail")
		}
	}
}

func TestRandomInjectorDistribution(t *testing.T) {
	injector := NewSeededInjector(0.5, 42)
	const attempts = 20000

	failures := 0
	for i := 0; i < attempts; i++ {
		if injector.ShouldFail() {
			failures++
		}
	}

	rate := float64(failures) / attempts
	if math.Abs(rate-0.5) > 0.02 {
		t.Errorf("Expected failure rate near 0.5, got %.4f", rate)
	}
}

func TestRandomInjectorConcurrent(t *testing.T) {
	injector := NewRandomInjector(0.5)
	var wg sync.WaitGroup
	var failures int64

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if injector.ShouldFail() {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}
	wg.Wait()

	if failures == 0 || failures == 8000 {
		t.Errorf("Concurrent attempts should roll independently, got %d failures of 8000", failures)
	}
}
