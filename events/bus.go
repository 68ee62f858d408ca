package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryFeed is a thread-safe in-process event feed.
type InMemoryFeed struct {
	mu       sync.RWMutex
	handlers []handlerEntry
	history  []*Event
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryFeed creates an InMemoryFeed with a 1000-event history cap.
func NewInMemoryFeed() *InMemoryFeed {
	return &InMemoryFeed{maxHist: 1000}
}

// Publish stamps the event and delivers it to every subscriber.
func (f *InMemoryFeed) Publish(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	f.mu.Lock()
	f.history = append(f.history, e)
	if len(f.history) > f.maxHist {
		f.history = f.history[len(f.history)-f.maxHist:]
	}
	// Collect handlers to invoke outside the lock.
	targets := make([]Handler, 0, len(f.handlers))
	for _, entry := range f.handlers {
		targets = append(targets, entry.handler)
	}
	f.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish: %d handler error(s): %v", len(errs), errs[0])
	}
	return nil
}

// Subscribe registers a handler for all events.
// The returned function unsubscribes the handler.
func (f *InMemoryFeed) Subscribe(handler Handler) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, handlerEntry{id: id, handler: handler})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		filtered := f.handlers[:0]
		for _, entry := range f.handlers {
			if entry.id != id {
				filtered = append(filtered, entry)
			}
		}
		f.handlers = filtered
	}
}

// History returns the most recent limit events in chronological order.
// A non-positive limit returns the whole retained history.
func (f *InMemoryFeed) History(limit int) []*Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Event, n)
	copy(out, f.history[len(f.history)-n:])
	return out
}
