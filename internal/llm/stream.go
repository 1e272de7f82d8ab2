package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream delivers events produced by a goroutine over a channel.
// Recv returns io.EOF once the producer finishes cleanly; a producer
// error is surfaced by the Recv call that observes the closed channel.
type eventStream struct {
	events chan Event
	errc   chan error
	cancel context.CancelFunc

	mu      sync.Mutex
	lastErr error
	done    bool
}

// newEventStream runs produce in a goroutine and returns a Stream over the
// events it sends. Ordering within the stream is preserved; the channel is
// buffered so producers rarely block on a prompt consumer.
func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event, 16),
		errc:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		s.errc <- produce(ctx, s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if !ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.done {
			s.done = true
			s.lastErr = <-s.errc
		}
		if s.lastErr != nil {
			return Event{}, s.lastErr
		}
		return Event{}, io.EOF
	}
	return event, nil
}

// Close cancels the producer and drains any buffered events so a producer
// blocked on send can exit.
func (s *eventStream) Close() error {
	s.cancel()
	for range s.events {
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		s.lastErr = <-s.errc
	}
	return nil
}
