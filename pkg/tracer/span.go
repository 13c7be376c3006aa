package tracer

import (
	"fmt"
	"time"

	"github.com/stleox/beeline/pkg/propagation"
	"github.com/stleox/beeline/pkg/sampler"
)

const (
	SpanTypeRoot = "root"
	SpanTypeMid  = "mid"
	SpanTypeLeaf = "leaf"
)

// Span is a timed unit of work within a trace. A span is open until Send, after which any
// mutation panics with ErrSpanSent.
type Span struct {
	id       string
	parentID string
	isRoot   bool
	sent     bool

	trace   *Trace
	builder *Builder
	stack   *Stack

	startedAt time.Time
	fields    map[string]interface{}
	rollups   map[string]float64
	children  []*Span

	sampleHook  SampleHook
	presendHook PresendHook
	marshaler   propagation.Marshaler
}

func newSpan(t *Trace, builder *Builder, stack *Stack, parentID string, isRoot bool, o *spanOptions) *Span {
	s := &Span{
		id:          newSpanID(),
		parentID:    parentID,
		isRoot:      isRoot,
		trace:       t,
		builder:     builder,
		stack:       stack,
		startedAt:   time.Now(),
		fields:      make(map[string]interface{}),
		rollups:     make(map[string]float64),
		sampleHook:  o.sampleHook,
		presendHook: o.presendHook,
		marshaler:   o.marshaler,
	}
	t.track(s)
	stack.SetCurrentSpan(s)
	return s
}

func (s *Span) ID() string { return s.id }
func (s *Span) ParentID() string { return s.parentID }
func (s *Span) Trace() *Trace { return s.trace }
func (s *Span) IsRoot() bool { return s.isRoot }
func (s *Span) Sent() bool { return s.sent }
func (s *Span) StartedAt() time.Time { return s.startedAt }
func (s *Span) Dataset() string { return s.builder.Dataset }
func (s *Span) Children() []*Span { return append([]*Span(nil), s.children...) }
func (s *Span) Rollups() map[string]float64 {
	out := make(map[string]float64, len(s.rollups))
	for k, v := range s.rollups {
		out[k] = v
	}
	return out
}

// Fields returns the span's own fields.
func (s *Span) Fields() map[string]interface{} {
	return copyFields(s.fields)
}

func (s *Span) checkOpen() {
	if s.sent {
		panic(usageError(ErrSpanSent, s))
	}
}

func (s *Span) AddField(key string, value interface{}) {
	s.checkOpen()
	s.fields[key] = value
}

// Add merges fields into the span.
func (s *Span) Add(fields map[string]interface{}) {
	s.checkOpen()
	for k, v := range fields {
		s.fields[k] = v
	}
}

// AddTraceField sets a field on the whole trace.
func (s *Span) AddTraceField(key string, value interface{}) {
	s.checkOpen()
	s.trace.AddField(key, value)
}

// AddRollupField adds value to key on this span and on every open ancestor run by the same
// execution unit.
func (s *Span) AddRollupField(key string, value float64) {
	s.checkOpen()
	s.rollups[key] += value

	// bounded by the number of open spans in case of an id collision
	for id, depth := s.parentID, 0; id != "" && depth < s.trace.open.Len(); depth++ {
		p, ok := s.trace.lookup(id)
		if !ok || p.sent || p.stack != s.stack {
			return
		}
		p.rollups[key] += value
		id = p.parentID
	}
}

// AddError records err in the error and error_detail fields.
func (s *Span) AddError(err error) {
	if err == nil {
		return
	}
	s.AddField("error", fmt.Sprintf("%T", err))
	s.AddField("error_detail", err.Error())
}

// CreateChild opens a child span and makes it the current span. It inherits the trace, the
// dataset, the hooks and the header format, unless overridden by opts. Options about
// continuing a remote trace do not apply to children.
func (s *Span) CreateChild(opts ...SpanOption) *Span {
	return s.createChild(s.stack, opts)
}

func (s *Span) createChild(stack *Stack, opts []SpanOption) *Span {
	s.checkOpen()
	o := &spanOptions{
		sampleHook:  s.sampleHook,
		presendHook: s.presendHook,
		marshaler:   s.marshaler,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.marshaler == nil {
		o.marshaler = s.marshaler
	}
	child := newSpan(s.trace, s.builder, stack, s.id, false, o)
	// children started on a forked stack are not cascaded, their owner sends them
	if stack == s.stack {
		s.children = append(s.children, child)
	}
	return child
}

// PropagationContext describes the span as the parent of a remote continuation.
func (s *Span) PropagationContext() propagation.PropagationContext {
	return s.trace.propagationContext(s)
}

// ToTraceHeader serializes the span's propagation context with the span's marshaler.
func (s *Span) ToTraceHeader() string {
	return s.marshaler.Marshal(s.PropagationContext())
}

func (s *Span) spanType() string {
	switch {
	case s.isRoot:
		return SpanTypeRoot
	case len(s.children) > 0:
		return SpanTypeMid
	default:
		return SpanTypeLeaf
	}
}

// Send finishes the span. Open children are sent first, newest first. The event is then
// sampled, passed through the presend hook and handed to the sink. A sampled out span is
// finished like a kept one.
//
// Send panics if the span was already sent or is not the current span of its stack once its
// children are sent. A span failing the stack check is neither delivered nor marked sent.
func (s *Span) Send() {
	s.checkOpen()
	for i := len(s.children) - 1; i >= 0; i-- {
		if child := s.children[i]; !child.sent {
			child.Send()
		}
	}
	if s.stack.CurrentSpan() != s {
		panic(usageError(ErrSpanNotCurrent, s))
	}

	fields := s.eventFields()
	if keep, rate := s.sample(fields); keep {
		if s.presendHook != nil {
			fields = runPresendHook(s.presendHook, s, fields)
		}
		s.builder.send(fields, rate, s.startedAt)
	}

	s.sent = true
	s.trace.forget(s)
	s.stack.SpanSent(s)
}

func (s *Span) sample(fields map[string]interface{}) (bool, uint) {
	if s.sampleHook != nil {
		return runSampleHook(s.sampleHook, s, fields)
	}
	rate := s.builder.SampleRate
	return sampler.ShouldSample(rate, s.trace.id), rate
}

// eventFields builds the event: builder fields, then span fields, rollups and trace fields,
// topped by the span metadata.
func (s *Span) eventFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(s.builder.Fields)+len(s.fields)+len(s.rollups)+6)
	for k, v := range s.builder.Fields {
		fields[k] = v
	}
	for k, v := range s.fields {
		fields[k] = v
	}
	for k, v := range s.rollups {
		fields[k] = v
	}
	s.trace.mergeFields(fields)

	fields["duration_ms"] = float64(time.Since(s.startedAt).Nanoseconds()) / float64(time.Millisecond)
	fields["trace.trace_id"] = s.trace.id
	fields["trace.span_id"] = s.id
	if s.parentID != "" {
		fields["trace.parent_id"] = s.parentID
	}
	fields["meta.span_type"] = s.spanType()
	return fields
}
