package tracer

import (
	"crypto/rand"
	"errors"
	"testing"

	r "github.com/stretchr/testify/require"

	"github.com/stleox/beeline/pkg/propagation"
	"github.com/stleox/beeline/pkg/sink"
)

func TestSpan_CascadeSend(t *testing.T) {
	// root -> mid -> leaf，只发送 root，子 span 先于父 span 发送
	s := sink.NewMemorySink()
	stack := NewStack()
	root := NewTrace(mockBuilder(s), stack).RootSpan()
	mid := root.CreateChild()
	leaf := mid.CreateChild()
	r.Equal(t, 3, stack.Len())

	root.Send()
	r.Equal(t, 0, stack.Len())
	r.True(t, mid.Sent())
	r.True(t, leaf.Sent())

	events := s.Events()
	r.Len(t, events, 3)
	r.Equal(t, leaf.ID(), events[0].Fields["trace.span_id"])
	r.Equal(t, mid.ID(), events[1].Fields["trace.span_id"])
	r.Equal(t, root.ID(), events[2].Fields["trace.span_id"])

	r.Equal(t, SpanTypeLeaf, events[0].Fields["meta.span_type"])
	r.Equal(t, SpanTypeMid, events[1].Fields["meta.span_type"])
	r.Equal(t, SpanTypeRoot, events[2].Fields["meta.span_type"])

	r.Equal(t, mid.ID(), events[0].Fields["trace.parent_id"])
	r.Equal(t, root.ID(), events[1].Fields["trace.parent_id"])
	_, ok := events[2].Fields["trace.parent_id"]
	r.False(t, ok)

	for _, ev := range events {
		r.Equal(t, root.Trace().ID(), ev.Fields["trace.trace_id"])
		r.Equal(t, "test", ev.Dataset)
		r.Equal(t, uint(1), ev.SampleRate)
		r.IsType(t, float64(0), ev.Fields["duration_ms"])
	}
}

func TestSpan_CascadeNewestFirst(t *testing.T) {
	s := sink.NewMemorySink()
	stack := NewStack()
	root := NewTrace(mockBuilder(s), stack).RootSpan()
	a := root.CreateChild()
	a.Send()
	b := root.CreateChild()
	c := root.CreateChild() // c 的父亲是 root

	root.Send()
	events := s.Events()
	r.Len(t, events, 4)
	r.Equal(t, a.ID(), events[0].Fields["trace.span_id"])
	r.Equal(t, c.ID(), events[1].Fields["trace.span_id"])
	r.Equal(t, b.ID(), events[2].Fields["trace.span_id"])
	r.Equal(t, root.ID(), events[3].Fields["trace.span_id"])
}

func TestSpan_SendNotCurrent(t *testing.T) {
	s := sink.NewMemorySink()
	stack := NewStack()
	root := NewTrace(mockBuilder(s), stack).RootSpan()
	a := root.CreateChild()
	b := root.CreateChild()

	err := mockRecover(func() { a.Send() })
	r.True(t, errors.Is(err, ErrSpanNotCurrent))
	// 失败的 Send 没有副作用
	r.False(t, a.Sent())
	r.Empty(t, s.Events())
	r.Equal(t, 3, stack.Len())
	r.Equal(t, b, stack.CurrentSpan())

	// 栈没有被破坏，root 仍可级联发送
	r.NotPanics(t, func() { root.Send() })
	r.Equal(t, 0, stack.Len())
	r.True(t, a.Sent())
	r.Len(t, s.Events(), 3)
}

func TestSpan_CreateChildOverrides(t *testing.T) {
	s := sink.NewMemorySink()
	var rootCalls, childCalls int
	keep := func(calls *int) SampleHook {
		return func(map[string]interface{}) (bool, uint) {
			*calls++
			return true, 1
		}
	}
	root := NewTrace(mockBuilder(s), NewStack(), WithSampleHook(keep(&rootCalls)), WithPresendHook(Redact("secret"))).RootSpan()

	child := root.CreateChild(WithSampleHook(keep(&childCalls)), WithMarshaler(propagation.W3CCodec{}))
	grandchild := child.CreateChild()
	inherited := root.CreateChild()
	r.Equal(t, "00-"+root.Trace().ID()+"-"+child.ID()+"-01", child.ToTraceHeader())
	r.Equal(t, "00-"+root.Trace().ID()+"-"+grandchild.ID()+"-01", grandchild.ToTraceHeader())

	grandchild.AddField("secret", "x")
	root.Send()
	r.Equal(t, 2, childCalls) // child 与 grandchild
	r.Equal(t, 2, rootCalls)  // inherited 与 root
	r.True(t, inherited.Sent())
	for _, ev := range s.Events() {
		r.NotContains(t, ev.Fields, "secret")
	}
}

func TestSpan_UseAfterSend(t *testing.T) {
	s := sink.NewMemorySink()
	root := NewTrace(mockBuilder(s), NewStack()).RootSpan()
	root.Send()

	r.True(t, errors.Is(mockRecover(func() { root.Send() }), ErrSpanSent))
	r.True(t, errors.Is(mockRecover(func() { root.AddField("k", 1) }), ErrSpanSent))
	r.True(t, errors.Is(mockRecover(func() { root.AddRollupField("k", 1) }), ErrSpanSent))
	r.True(t, errors.Is(mockRecover(func() { root.CreateChild() }), ErrSpanSent))
	r.Len(t, s.Events(), 1)
}

func TestSpan_Rollup(t *testing.T) {
	s := sink.NewMemorySink()
	root := NewTrace(mockBuilder(s), NewStack()).RootSpan()
	child := root.CreateChild()
	grandchild := child.CreateChild()

	child.AddRollupField("db.count", 10)
	grandchild.AddRollupField("db.count", 5)
	r.Equal(t, 5.0, grandchild.Rollups()["db.count"])
	r.Equal(t, 15.0, child.Rollups()["db.count"])
	r.Equal(t, 15.0, root.Rollups()["db.count"])

	root.Send()
	events := s.Events()
	r.Equal(t, 5.0, events[0].Fields["db.count"])
	r.Equal(t, 15.0, events[1].Fields["db.count"])
	r.Equal(t, 15.0, events[2].Fields["db.count"])
}

func TestSpan_RollupSkipsSentAncestors(t *testing.T) {
	root := NewTrace(mockBuilder(sink.NewMemorySink()), NewStack()).RootSpan()
	child := root.CreateChild()
	child.AddRollupField("n", 1)
	child.Send()
	r.Equal(t, 1.0, root.Rollups()["n"])

	other := root.CreateChild()
	other.AddRollupField("n", 2)
	r.Equal(t, 3.0, root.Rollups()["n"])
}

func TestSpan_FieldPrecedence(t *testing.T) {
	s := sink.NewMemorySink()
	b := mockBuilder(s)
	b.Fields["shared"] = "builder"
	b.Fields["builder.only"] = true
	tr := NewTrace(b, NewStack())
	root := tr.RootSpan()

	root.AddField("shared", "span")
	root.AddRollupField("shared.count", 1)
	root.AddTraceField("shared", "trace")
	root.AddField("trace.span_id", "overridden")
	root.Send()

	fields := s.Events()[0].Fields
	r.Equal(t, "trace", fields["shared"])
	r.Equal(t, true, fields["builder.only"])
	r.Equal(t, 1.0, fields["shared.count"])
	r.Equal(t, root.ID(), fields["trace.span_id"])
}

func TestSpan_TraceIDNeverZero(t *testing.T) {
	calls := 0
	randRead = func(b []byte) (int, error) {
		calls++
		for i := range b {
			b[i] = 0
			if calls > 2 {
				b[i] = byte(calls)
			}
		}
		return len(b), nil
	}
	defer mockResetRand()

	id := newTraceID()
	r.Equal(t, 3, calls)
	r.Len(t, id, 32)
	r.NotEqual(t, propagation.InvalidTraceID, id)
	r.Equal(t, "03030303030303030303030303030303", id)
}

func TestSpan_RandFailure(t *testing.T) {
	randRead = func(b []byte) (int, error) { return 0, errors.New("no entropy") }
	defer mockResetRand()

	r.Len(t, newSpanID(), 16)
	r.NotEqual(t, newTraceID(), newTraceID())
}

func TestSpan_SampledOut(t *testing.T) {
	s := sink.NewMemorySink()
	stack := NewStack()
	drop := func(map[string]interface{}) (bool, uint) { return false, 0 }
	root := NewTrace(mockBuilder(s), stack, WithSampleHook(drop)).RootSpan()
	child := root.CreateChild()

	child.Send()
	r.True(t, child.Sent())
	r.Equal(t, 1, stack.Len())
	root.Send()
	r.Equal(t, 0, stack.Len())
	r.Empty(t, s.Events())
}

func TestSpan_BuilderSampleRate(t *testing.T) {
	s := sink.NewMemorySink()
	b := mockBuilder(s)
	b.SampleRate = 0
	NewTrace(b, NewStack()).Send()
	r.Empty(t, s.Events())
}

func TestSpan_SampleHookRate(t *testing.T) {
	s := sink.NewMemorySink()
	var seen map[string]interface{}
	hook := func(fields map[string]interface{}) (bool, uint) {
		seen = fields
		return true, 5
	}
	tr := NewTrace(mockBuilder(s), NewStack(), WithSampleHook(hook))
	tr.RootSpan().AddField("name", "root")
	tr.Send()

	r.Equal(t, tr.ID(), seen["trace.trace_id"])
	r.Equal(t, "root", seen["name"])
	r.Equal(t, uint(5), s.Events()[0].SampleRate)
}

func TestSpan_SampleHookPanic(t *testing.T) {
	s := sink.NewMemorySink()
	stack := NewStack()
	hook := func(map[string]interface{}) (bool, uint) { panic("boom") }
	root := NewTrace(mockBuilder(s), stack, WithSampleHook(hook)).RootSpan()

	r.NotPanics(t, func() { root.Send() })
	r.Empty(t, s.Events())
	r.Equal(t, 0, stack.Len())
}

func TestSpan_PresendHook(t *testing.T) {
	s := sink.NewMemorySink()
	hook := ChainPresend(Redact("secret"), func(fields map[string]interface{}) {
		fields["added"] = "yes"
	})
	root := NewTrace(mockBuilder(s), NewStack(), WithPresendHook(hook)).RootSpan()
	root.AddField("secret", "hunter2")
	root.AddField("kept", 1)
	root.CreateChild()
	root.Send()

	// presend 钩子被子 span 继承
	for _, ev := range s.Events() {
		_, ok := ev.Fields["secret"]
		r.False(t, ok)
		r.Equal(t, "yes", ev.Fields["added"])
	}
	r.Equal(t, 1, s.Events()[1].Fields["kept"])
}

func TestSpan_PresendHookPanic(t *testing.T) {
	s := sink.NewMemorySink()
	hook := func(fields map[string]interface{}) {
		delete(fields, "kept")
		fields["partial"] = true
		panic(errors.New("boom"))
	}
	root := NewTrace(mockBuilder(s), NewStack(), WithPresendHook(hook)).RootSpan()
	root.AddField("kept", "value")

	r.NotPanics(t, func() { root.Send() })
	r.Len(t, s.Events(), 1)
	fields := s.Events()[0].Fields
	r.Equal(t, "value", fields["kept"])
	_, ok := fields["partial"]
	r.False(t, ok)
}

func TestSpan_AddError(t *testing.T) {
	s := sink.NewMemorySink()
	root := NewTrace(mockBuilder(s), NewStack()).RootSpan()
	root.AddError(nil)
	root.AddError(mockError{"broken"})
	root.Send()

	r.Equal(t, "tracer.mockError", s.Events()[0].Fields["error"])
	r.Equal(t, "broken", s.Events()[0].Fields["error_detail"])
}

func TestStack_Discipline(t *testing.T) {
	stack := NewStack()
	r.Nil(t, stack.CurrentSpan())
	r.Nil(t, stack.CurrentTrace())

	tr := NewTrace(mockBuilder(sink.NewMemorySink()), stack)
	r.Equal(t, tr.RootSpan(), stack.CurrentSpan())
	r.Equal(t, tr, stack.CurrentTrace())

	child := tr.RootSpan().CreateChild()
	r.Equal(t, child, stack.CurrentSpan())

	err := mockRecover(func() { stack.SpanSent(tr.RootSpan()) })
	r.True(t, errors.Is(err, ErrSpanNotCurrent))
	r.Equal(t, 2, stack.Len())

	child.Send()
	r.Equal(t, tr.RootSpan(), stack.CurrentSpan())
}

type mockError struct{ msg string }

func (e mockError) Error() string { return e.msg }

func mockBuilder(s sink.EventSink) *Builder {
	return &Builder{
		Dataset:    "test",
		SampleRate: 1,
		Fields:     map[string]interface{}{},
		Sink:       s,
	}
}

func mockRecover(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recoveredError(p)
		}
	}()
	fn()
	return nil
}

func mockResetRand() {
	randRead = rand.Read
}
