package tracer

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stleox/beeline/pkg/config"
	"github.com/stleox/beeline/pkg/propagation"
	"github.com/stleox/beeline/pkg/sink"
)

// stackKey is allocated per Client so that two clients never see each other's spans.
type stackKey struct{ _ byte }

// Client is the entry point of the beeline: it starts spans and traces, tracks the current
// span of the calling execution unit through context.Context and owns the sink.
type Client struct {
	cfg     *config.Config
	builder *Builder
	key     *stackKey

	sampleHook     SampleHook
	presendHook    PresendHook
	marshaler      propagation.Marshaler
	unmarshaler    propagation.Unmarshaler
	httpParser     propagation.HTTPParserHook
	httpPropagator propagation.HTTPPropagationHook
}

type Option func(*Client)

// WithSampler replaces the deterministic sampler for every span of the client.
func WithSampler(h SampleHook) Option {
	return func(c *Client) { c.sampleHook = h }
}

func WithPresend(h PresendHook) Option {
	return func(c *Client) { c.presendHook = h }
}

// WithCodec sets the header format of TraceHeader and of WithTraceHeader.
func WithCodec(m propagation.Marshaler, u propagation.Unmarshaler) Option {
	return func(c *Client) {
		if m != nil {
			c.marshaler = m
		}
		if u != nil {
			c.unmarshaler = u
		}
	}
}

func WithHTTPParser(h propagation.HTTPParserHook) Option {
	return func(c *Client) { c.httpParser = h }
}

func WithHTTPPropagator(h propagation.HTTPPropagationHook) Option {
	return func(c *Client) { c.httpPropagator = h }
}

// WithField adds a field to every event of the client.
func WithField(key string, value interface{}) Option {
	return func(c *Client) { c.builder.Fields[key] = value }
}

// NewClient builds a client sending to s. A nil cfg uses config.Default, a nil s discards
// every event.
func NewClient(cfg *config.Config, s sink.EventSink, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if s == nil {
		s = &sink.NopSink{}
	}

	c := &Client{
		cfg: cfg,
		key: &stackKey{},
		builder: &Builder{
			Dataset:    cfg.TargetDataset(),
			SampleRate: cfg.SampleRate,
			Fields:     baseFields(cfg),
			Sink:       s,
		},
	}

	outbound, err := c.codec(cfg.PropagationFormat)
	if err != nil {
		return nil, err
	}
	c.marshaler = outbound
	c.httpPropagator = propagation.HeaderPropagator(propagation.HeaderName(cfg.PropagationFormat), outbound)

	formats := cfg.ParseFormats
	if len(formats) == 0 {
		formats = []string{propagation.FormatHoneycomb}
	}
	parsers := make([]propagation.HTTPParserHook, 0, len(formats))
	for i, f := range formats {
		codec, err := c.codec(f)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			c.unmarshaler = codec
		}
		parsers = append(parsers, propagation.HeaderParser(propagation.HeaderName(f), codec))
	}
	c.httpParser = propagation.ChainHTTPParsers(parsers...)

	for _, opt := range opts {
		opt(c)
	}

	logrus.WithFields(logrus.Fields{
		"dataset":     c.builder.Dataset,
		"service":     cfg.ServiceName,
		"sample_rate": cfg.SampleRate,
		"classic":     cfg.IsClassic(),
	}).Debug("Beeline client created")
	return c, nil
}

// codec resolves a format name, "honeycomb" meaning the flavour of the environment.
func (c *Client) codec(format string) (propagation.Codec, error) {
	if strings.EqualFold(strings.TrimSpace(format), propagation.FormatHoneycomb) && !c.cfg.IsClassic() {
		return propagation.HoneycombModernCodec{}, nil
	}
	return propagation.Lookup(format)
}

func baseFields(cfg *config.Config) map[string]interface{} {
	fields := map[string]interface{}{
		"meta.beeline_version": config.Version,
		"service_name":         cfg.ServiceName,
		"service.name":         cfg.ServiceName,
	}
	if host, err := os.Hostname(); err == nil {
		fields["meta.local_hostname"] = host
	}
	return fields
}

func (c *Client) Config() *config.Config {
	return c.cfg
}

// Builder returns the builder shared by the client's traces.
func (c *Client) Builder() *Builder {
	return c.builder
}

func (c *Client) stack(ctx context.Context) (context.Context, *Stack) {
	if s, ok := ctx.Value(c.key).(*Stack); ok {
		return ctx, s
	}
	s := NewStack()
	return context.WithValue(ctx, c.key, s), s
}

// Fork returns a context for a new goroutine. Spans it starts are children of the current
// span but live on their own stack; they are neither cascaded nor rolled up into the spans
// of the forking goroutine.
func (c *Client) Fork(ctx context.Context) context.Context {
	_, s := c.stack(ctx)
	return context.WithValue(ctx, c.key, s.fork())
}

func (c *Client) spanOptions(opts []SpanOption) *spanOptions {
	base := []SpanOption{
		WithSampleHook(c.sampleHook),
		WithPresendHook(c.presendHook),
		WithMarshaler(c.marshaler),
		WithUnmarshaler(c.unmarshaler),
	}
	return newSpanOptions(append(base, opts...)...)
}

// StartSpan opens a span named name. With a current span it is a child of it, inheriting its
// hooks unless opts override them. Otherwise it is the root of a new trace, continuing the one
// given with WithTraceHeader or WithPropagationContext when valid. The returned context
// carries the span stack.
func (c *Client) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	ctx, stack := c.stack(ctx)

	var span *Span
	if parent := stack.CurrentSpan(); parent != nil {
		span = parent.createChild(stack, opts)
	} else {
		span = newTrace(c.builder, stack, c.spanOptions(opts)).rootSpan
	}
	span.AddField("name", name)
	return ctx, span
}

// StartTrace always starts a new trace, ignoring the current span.
func (c *Client) StartTrace(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Trace) {
	ctx = context.WithValue(ctx, c.key, NewStack())
	ctx, span := c.StartSpan(ctx, name, opts...)
	return ctx, span.trace
}

// WithSpan runs fn inside a span that is sent when fn returns. An error returned by fn is
// recorded on the span; a panic is recorded too and re-raised once the span is sent.
func (c *Client) WithSpan(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error, opts ...SpanOption) (err error) {
	ctx, span := c.StartSpan(ctx, name, opts...)
	defer func() {
		if p := recover(); p != nil {
			if !span.sent {
				span.AddError(recoveredError(p))
				span.Send()
			}
			panic(p)
		}
		if !span.sent {
			span.AddError(err)
			span.Send()
		}
	}()
	return fn(ctx, span)
}

// StartHTTPSpan opens a span for an inbound request, continuing the trace found in its
// headers by the HTTP parser hook.
func (c *Client) StartHTTPSpan(r *http.Request, name string, opts ...SpanOption) (context.Context, *Span) {
	pc := c.httpParser(r)
	if pc.IsValid() {
		opts = append([]SpanOption{WithPropagationContext(pc)}, opts...)
	}
	return c.StartSpan(r.Context(), name, opts...)
}

// InjectHeaders adds the propagation headers of the current span to an outbound request.
func (c *Client) InjectHeaders(ctx context.Context, r *http.Request) {
	span := c.CurrentSpan(ctx)
	if span == nil || c.httpPropagator == nil {
		return
	}
	for k, v := range c.httpPropagator(r, span.PropagationContext()) {
		r.Header.Set(k, v)
	}
}

// TraceHeader serializes the current span, "" without one.
func (c *Client) TraceHeader(ctx context.Context) string {
	if span := c.CurrentSpan(ctx); span != nil {
		return span.ToTraceHeader()
	}
	return ""
}

func (c *Client) CurrentSpan(ctx context.Context) *Span {
	if s, ok := ctx.Value(c.key).(*Stack); ok {
		return s.CurrentSpan()
	}
	return nil
}

func (c *Client) CurrentTrace(ctx context.Context) *Trace {
	if s, ok := ctx.Value(c.key).(*Stack); ok {
		return s.CurrentTrace()
	}
	return nil
}

// AddField adds "app."+key to the current span. No-op without a current span.
func (c *Client) AddField(ctx context.Context, key string, value interface{}) {
	if span := c.CurrentSpan(ctx); span != nil {
		span.AddField(appField(key), value)
	}
}

// AddFieldToTrace adds "app."+key to the current trace.
func (c *Client) AddFieldToTrace(ctx context.Context, key string, value interface{}) {
	if span := c.CurrentSpan(ctx); span != nil {
		span.AddTraceField(appField(key), value)
	}
}

func (c *Client) AddRollupField(ctx context.Context, key string, value float64) {
	if span := c.CurrentSpan(ctx); span != nil {
		span.AddRollupField(appField(key), value)
	}
}

// Close flushes and closes the sink.
func (c *Client) Close() error {
	return c.builder.Sink.Close()
}

func appField(key string) string {
	if strings.HasPrefix(key, "app.") {
		return key
	}
	return "app." + key
}
