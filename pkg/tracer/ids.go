package tracer

import (
	"crypto/rand"
	mrand "math/rand"

	tr "go.opentelemetry.io/otel/trace"
)

var randRead = rand.Read

func fillRandom(b []byte) {
	if _, err := randRead(b); err != nil {
		mrand.Read(b)
	}
}

// newTraceID returns 16 random bytes as hex, never the all-zero invalid id.
func newTraceID() string {
	for {
		var id tr.TraceID
		fillRandom(id[:])
		if id.IsValid() {
			return id.String()
		}
	}
}

func newSpanID() string {
	for {
		var id tr.SpanID
		fillRandom(id[:])
		if id.IsValid() {
			return id.String()
		}
	}
}
