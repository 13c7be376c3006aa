package tracer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/stleox/beeline/pkg/config"
	"github.com/stleox/beeline/pkg/propagation"
)

// Trace is one tree of spans sharing a trace id and the trace fields.
type Trace struct {
	id string

	// fields are shared by the stacks forked from the trace
	muFields sync.RWMutex
	fields   map[string]interface{}

	builder  *Builder
	rootSpan *Span

	// open spans by span id, used to walk rollups up to the ancestors.
	open *lru.Cache[string, *Span]
}

// NewTrace starts a trace and pushes its root span onto stack.
//
// When a serialized propagation header is given with WithTraceHeader (or an already parsed
// context with WithPropagationContext) and it is valid, the trace continues the remote one:
// it takes over the trace id and the trace fields, the root span gets the remote parent id,
// and a dataset carried by the header overrides the builder's dataset. Otherwise a fresh
// trace id is generated.
func NewTrace(builder *Builder, stack *Stack, opts ...SpanOption) *Trace {
	o := newSpanOptions(opts...)
	return newTrace(builder, stack, o)
}

func newTrace(builder *Builder, stack *Stack, o *spanOptions) *Trace {
	pc := o.propagationContext()

	t := &Trace{builder: builder}
	t.open, _ = lru.New[string, *Span](config.MaxOpenSpans)

	parentID := ""
	if pc.IsValid() {
		t.id = pc.TraceID
		parentID = pc.ParentID
		t.fields = copyFields(pc.TraceFields)
		t.builder = builder.WithDataset(pc.Dataset)
	} else {
		t.id = newTraceID()
		t.fields = make(map[string]interface{})
	}

	t.rootSpan = newSpan(t, t.builder, stack, parentID, true, o)
	return t
}

func (t *Trace) ID() string {
	return t.id
}

func (t *Trace) RootSpan() *Span {
	return t.rootSpan
}

// AddField sets a trace field. Trace fields go on every span sent afterwards and into the
// propagation headers.
func (t *Trace) AddField(key string, value interface{}) {
	t.muFields.Lock()
	defer t.muFields.Unlock()
	t.fields[key] = value
}

func (t *Trace) Fields() map[string]interface{} {
	t.muFields.RLock()
	defer t.muFields.RUnlock()
	return copyFields(t.fields)
}

// mergeFields copies the trace fields into fields.
func (t *Trace) mergeFields(fields map[string]interface{}) {
	t.muFields.RLock()
	defer t.muFields.RUnlock()
	for k, v := range t.fields {
		fields[k] = v
	}
}

// Send sends the root span, cascading to all the open spans below it.
func (t *Trace) Send() {
	t.rootSpan.Send()
}

func (t *Trace) track(span *Span) {
	if evicted := t.open.Add(span.id, span); evicted {
		logrus.WithField("trace_id", t.id).Debug("open span cache full, rollups may not reach all ancestors")
	}
}

func (t *Trace) lookup(spanID string) (*Span, bool) {
	return t.open.Get(spanID)
}

func (t *Trace) forget(span *Span) {
	t.open.Remove(span.id)
}

func (t *Trace) propagationContext(span *Span) propagation.PropagationContext {
	return propagation.PropagationContext{
		TraceID:     t.id,
		ParentID:    span.id,
		TraceFields: t.Fields(),
		Dataset:     span.builder.Dataset,
	}
}
