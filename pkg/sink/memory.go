package sink

import "sync"

// MemorySink keeps events in the order they were sent. Meant for tests.
type MemorySink struct {
	counters
	mu     sync.Mutex
	events []*Event
	closed bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]*Event, 0)}
}

func (s *MemorySink) Send(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.queued.Add(1)
	s.sent.Add(1)
}

// Events returns a copy of what was sent so far.
func (s *MemorySink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]*Event, 0)
}

func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
