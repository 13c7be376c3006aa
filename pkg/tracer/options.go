package tracer

import (
	"github.com/sirupsen/logrus"

	"github.com/stleox/beeline/pkg/propagation"
)

type spanOptions struct {
	sampleHook  SampleHook
	presendHook PresendHook
	marshaler   propagation.Marshaler
	unmarshaler propagation.Unmarshaler

	header string
	pc     *propagation.PropagationContext
}

// SpanOption configures a trace or span at creation.
type SpanOption func(*spanOptions)

func WithSampleHook(h SampleHook) SpanOption {
	return func(o *spanOptions) { o.sampleHook = h }
}

func WithPresendHook(h PresendHook) SpanOption {
	return func(o *spanOptions) { o.presendHook = h }
}

// WithMarshaler sets the format used by Span.ToTraceHeader.
func WithMarshaler(m propagation.Marshaler) SpanOption {
	return func(o *spanOptions) { o.marshaler = m }
}

// WithUnmarshaler sets the format used to parse the header given with WithTraceHeader.
func WithUnmarshaler(u propagation.Unmarshaler) SpanOption {
	return func(o *spanOptions) { o.unmarshaler = u }
}

// WithTraceHeader continues the trace serialized in header. It only applies when a new
// trace is started.
func WithTraceHeader(header string) SpanOption {
	return func(o *spanOptions) { o.header = header }
}

// WithPropagationContext continues an already parsed remote trace.
func WithPropagationContext(pc propagation.PropagationContext) SpanOption {
	return func(o *spanOptions) { o.pc = &pc }
}

func newSpanOptions(opts ...SpanOption) *spanOptions {
	o := &spanOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.marshaler == nil {
		o.marshaler = propagation.HoneycombCodec{}
	}
	if o.unmarshaler == nil {
		o.unmarshaler = propagation.HoneycombCodec{}
	}
	return o
}

// propagationContext returns the remote context to continue, the zero context if none.
func (o *spanOptions) propagationContext() propagation.PropagationContext {
	if o.pc != nil {
		return *o.pc
	}
	if o.header == "" {
		return propagation.PropagationContext{}
	}
	pc, err := o.unmarshaler.Unmarshal(o.header)
	if err != nil {
		logrus.WithError(err).WithField("header", o.header).Debug("ignoring unparsable trace header")
		return propagation.PropagationContext{}
	}
	return pc
}
