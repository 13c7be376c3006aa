package propagation

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	tr "go.opentelemetry.io/otel/trace"
)

const (
	w3cVersion     = "00"
	traceparentKey = "traceparent"

	InvalidTraceID = "00000000000000000000000000000000"
	InvalidSpanID  = "0000000000000000"
)

// W3CCodec is the W3C trace context format, <version>-<trace-id>-<parent-id>-<flags>.
// It carries neither trace fields nor a dataset.
type W3CCodec struct{}

func (W3CCodec) Marshal(pc PropagationContext) string {
	traceID, errT := tr.TraceIDFromHex(pc.TraceID)
	spanID, errS := tr.SpanIDFromHex(pc.ParentID)
	if errT != nil || errS != nil {
		// ids minted elsewhere may not be hex, keep them verbatim
		return fmt.Sprintf("%s-%s-%s-01", w3cVersion, pc.TraceID, pc.ParentID)
	}
	sc := tr.NewSpanContext(tr.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: tr.FlagsSampled,
	})
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(tr.ContextWithSpanContext(context.Background(), sc), carrier)
	return carrier.Get(traceparentKey)
}

func (W3CCodec) Unmarshal(header string) (PropagationContext, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return PropagationContext{}, ErrEmptyHeader
	}
	version, payload, found := strings.Cut(header, "-")
	if !found {
		return PropagationContext{}, ErrMalformedHeader
	}
	if version != w3cVersion {
		return PropagationContext{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	parts := strings.SplitN(payload, "-", 3)
	if len(parts) < 3 {
		return PropagationContext{}, ErrMalformedHeader
	}
	if parts[0] == InvalidTraceID || parts[1] == InvalidSpanID {
		return PropagationContext{}, ErrMissingID
	}

	ctx := propagation.TraceContext{}.Extract(context.Background(), propagation.MapCarrier{traceparentKey: header})
	sc := tr.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return PropagationContext{}, ErrMalformedHeader
	}
	return PropagationContext{
		TraceID:  sc.TraceID().String(),
		ParentID: sc.SpanID().String(),
	}, nil
}
