package tracer

import (
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

// SampleHook decides whether an event is kept and the rate it is recorded with.
// It receives the complete field set of the event.
type SampleHook func(fields map[string]interface{}) (keep bool, rate uint)

// PresendHook may modify the fields of a kept event right before delivery.
type PresendHook func(fields map[string]interface{})

// Redact returns a PresendHook that removes keys from every event.
func Redact(keys ...string) PresendHook {
	redacted := sets.New[string](keys...)
	return func(fields map[string]interface{}) {
		for k := range fields {
			if redacted.Has(k) {
				delete(fields, k)
			}
		}
	}
}

// ChainPresend runs hooks in order.
func ChainPresend(hooks ...PresendHook) PresendHook {
	return func(fields map[string]interface{}) {
		for _, h := range hooks {
			if h != nil {
				h(fields)
			}
		}
	}
}

// runSampleHook drops the event when the hook panics.
func runSampleHook(h SampleHook, span *Span, fields map[string]interface{}) (keep bool, rate uint) {
	defer func() {
		if p := recover(); p != nil {
			logrus.WithFields(logrus.Fields{
				"trace_id": span.trace.id,
				"span_id":  span.id,
				"error":    recoveredError(p),
			}).Warn("Beeline sample hook failed, dropping span")
			keep, rate = false, 0
		}
	}()
	return h(fields)
}

// runPresendHook sends the fields as they were before the hook when it panics.
func runPresendHook(h PresendHook, span *Span, fields map[string]interface{}) (out map[string]interface{}) {
	backup := copyFields(fields)
	defer func() {
		if p := recover(); p != nil {
			logrus.WithFields(logrus.Fields{
				"trace_id": span.trace.id,
				"span_id":  span.id,
				"error":    recoveredError(p),
			}).Warn("Beeline presend hook failed, sending unmodified fields")
			out = backup
		}
	}()
	h(fields)
	return fields
}
