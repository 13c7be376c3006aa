package tracer

// Stack holds the open spans of one execution unit, the last one being the current span.
//
// A Stack is owned by a single goroutine and is not safe for concurrent use; give other
// goroutines their own with Client.Fork.
type Stack struct {
	spans []*Span
}

func NewStack() *Stack {
	return &Stack{spans: make([]*Span, 0)}
}

// CurrentSpan returns the top of the stack, nil when empty.
func (s *Stack) CurrentSpan() *Span {
	if len(s.spans) == 0 {
		return nil
	}
	return s.spans[len(s.spans)-1]
}

// SetCurrentSpan pushes span.
func (s *Stack) SetCurrentSpan(span *Span) {
	s.spans = append(s.spans, span)
}

// SpanSent pops span. It panics if span is not the current span.
func (s *Stack) SpanSent(span *Span) {
	if s.CurrentSpan() != span {
		panic(usageError(ErrSpanNotCurrent, span))
	}
	s.spans[len(s.spans)-1] = nil
	s.spans = s.spans[:len(s.spans)-1]
}

func (s *Stack) CurrentTrace() *Trace {
	if span := s.CurrentSpan(); span != nil {
		return span.trace
	}
	return nil
}

func (s *Stack) Len() int {
	return len(s.spans)
}

// fork starts a stack for another execution unit, based on the current span.
// The base span stays owned by s.
func (s *Stack) fork() *Stack {
	f := NewStack()
	if span := s.CurrentSpan(); span != nil {
		f.spans = append(f.spans, span)
	}
	return f
}
