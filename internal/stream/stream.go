package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"pitaka.app/internal/bank"
)

// Stream fans committed bank events out to live subscribers (SSE and WebSocket
// clients). A subscriber only sees events of its own owner.
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	buffer  int
	dropped atomic.Int64
}

type subscriber struct {
	ownerID string
	ch      chan bank.Event
}

var _ bank.Publisher = (*Stream)(nil)

// New initialises an empty stream. buffer is the per-subscriber queue length.
func New(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 16
	}
	return &Stream{subs: make(map[int]subscriber), buffer: buffer}
}

// Subscribe registers a subscriber for ownerID. The channel is closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, ownerID string) <-chan bank.Event {
	ch := make(chan bank.Event, s.buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ownerID: ownerID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish delivers evt to the owner's subscribers. Slow subscribers lose events
// rather than block the publisher.
func (s *Stream) Publish(_ context.Context, evt bank.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.ownerID != evt.OwnerID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }
