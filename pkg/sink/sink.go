// Package sink delivers finished span records to a telemetry backend.
//
// The tracer hands every kept span to an EventSink and returns immediately; buffering,
// batching and network delivery are the sink's business. All sinks are safe for
// concurrent use.
package sink

import (
	"sync/atomic"
	"time"
)

// Event is one finished span record.
type Event struct {
	Dataset    string
	SampleRate uint
	Timestamp  time.Time
	Fields     map[string]interface{}
}

type EventSink interface {
	// Send enqueues ev. It must not block on network I/O.
	Send(ev *Event)
	// Close flushes what is buffered and releases the sink.
	Close() error
}

// Stats counts what a sink did with the events it was given.
type Stats struct {
	Queued  uint64
	Sent    uint64
	Dropped uint64
	Failed  uint64
}

type StatsReporter interface {
	Stats() Stats
}

type counters struct {
	queued  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func (c *counters) Stats() Stats {
	return Stats{
		Queued:  c.queued.Load(),
		Sent:    c.sent.Load(),
		Dropped: c.dropped.Load(),
		Failed:  c.failed.Load(),
	}
}

// NopSink discards every event.
type NopSink struct {
	counters
}

func (s *NopSink) Send(*Event) {
	s.dropped.Add(1)
}

func (s *NopSink) Close() error {
	return nil
}

// stringField returns fields[key] if it is a string.
func stringField(fields map[string]interface{}, key string) string {
	v, _ := fields[key].(string)
	return v
}

func floatField(fields map[string]interface{}, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
