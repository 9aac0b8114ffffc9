package consumer

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	"products-api/models"
)

// EventTracker tallies product events in a thread-safe manner. Redelivered
// events are recognised by id and counted once.
type EventTracker struct {
	mu          sync.Mutex
	totalEvents int64
	duplicates  int64
	byType      map[models.ProductEventType]int64
	lastByID    map[int64]models.ProductEventType
	seen        map[string]struct{}
}

func NewEventTracker() *EventTracker {
	return &EventTracker{
		byType:   make(map[models.ProductEventType]int64),
		lastByID: make(map[int64]models.ProductEventType),
		seen:     make(map[string]struct{}),
	}
}

// RecordEvent records event and reports whether it was new.
func (t *EventTracker) RecordEvent(event models.ProductEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.EventID != "" {
		if _, ok := t.seen[event.EventID]; ok {
			t.duplicates++
			return false
		}
		t.seen[event.EventID] = struct{}{}
	}

	t.totalEvents++
	t.byType[event.Type]++
	t.lastByID[event.ProductID] = event.Type

	log.Printf("Recorded %s for product %d (Total events: %d)", event.Type, event.ProductID, t.totalEvents)
	return true
}

// PrintSummary writes the final tallies to w.
func (t *EventTracker) PrintSummary(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "PRODUCT EVENT SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Total Events Processed: %d\n", t.totalEvents)
	fmt.Fprintf(w, "Duplicates Skipped:     %d\n", t.duplicates)

	types := make([]string, 0, len(t.byType))
	for eventType := range t.byType {
		types = append(types, string(eventType))
	}
	sort.Strings(types)
	for _, eventType := range types {
		fmt.Fprintf(w, "  %-20s %d\n", eventType, t.byType[models.ProductEventType(eventType)])
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

func (t *EventTracker) TotalEvents() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalEvents
}

func (t *EventTracker) CountByType(eventType models.ProductEventType) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byType[eventType]
}

// LastEvent returns the most recent event type recorded for a product.
func (t *EventTracker) LastEvent(productID int64) (models.ProductEventType, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	eventType, ok := t.lastByID[productID]
	return eventType, ok
}
