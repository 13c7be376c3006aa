package tracer

import (
	"errors"
	"fmt"
)

// Usage errors. They signal an integration bug that would corrupt the trace topology and
// are raised with panic.
var (
	ErrSpanSent       = errors.New("beeline: span already sent")
	ErrSpanNotCurrent = errors.New("beeline: span is not the current span")
)

func usageError(err error, span *Span) error {
	return fmt.Errorf("%w: span %s", err, span.id)
}

// recoveredError turns a recovered panic value into an error.
func recoveredError(p interface{}) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", p)
}
