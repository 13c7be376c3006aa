package propagation

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	HoneycombHeader = "X-Honeycomb-Trace"
	W3CHeader       = "traceparent"
	AWSHeader       = "X-Amzn-Trace-Id"
)

// HTTPParserHook decodes the trace context of an inbound request.
// An invalid PropagationContext means the request starts a fresh trace.
type HTTPParserHook func(r *http.Request) PropagationContext

// HTTPPropagationHook returns the headers to add to an outbound request.
type HTTPPropagationHook func(r *http.Request, pc PropagationContext) map[string]string

// HeaderName returns the conventional header carrying format.
func HeaderName(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatW3C:
		return W3CHeader
	case FormatAWS:
		return AWSHeader
	}
	return HoneycombHeader
}

// HeaderParser builds a parser hook reading header with u.
func HeaderParser(header string, u Unmarshaler) HTTPParserHook {
	return func(r *http.Request) PropagationContext {
		if r == nil {
			return PropagationContext{}
		}
		value := r.Header.Get(header)
		if value == "" {
			return PropagationContext{}
		}
		pc, err := u.Unmarshal(value)
		if err != nil {
			logrus.WithError(err).WithField("header", header).Debug("Beeline ignored unparseable trace header")
			return PropagationContext{}
		}
		return pc
	}
}

var (
	HoneycombHTTPParser = HeaderParser(HoneycombHeader, HoneycombCodec{})
	W3CHTTPParser       = HeaderParser(W3CHeader, W3CCodec{})
	AWSHTTPParser       = HeaderParser(AWSHeader, AWSCodec{})
)

// ChainHTTPParsers tries each parser in order and returns the first valid context.
func ChainHTTPParsers(parsers ...HTTPParserHook) HTTPParserHook {
	return func(r *http.Request) PropagationContext {
		for _, p := range parsers {
			if pc := p(r); pc.IsValid() {
				return pc
			}
		}
		return PropagationContext{}
	}
}

// ParserForFormats chains the header parsers of the named formats.
func ParserForFormats(formats ...string) (HTTPParserHook, error) {
	parsers := make([]HTTPParserHook, 0, len(formats))
	for _, f := range formats {
		codec, err := Lookup(f)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, HeaderParser(HeaderName(f), codec))
	}
	if len(parsers) == 1 {
		return parsers[0], nil
	}
	return ChainHTTPParsers(parsers...), nil
}

// HeaderPropagator builds a propagation hook writing header with m.
func HeaderPropagator(header string, m Marshaler) HTTPPropagationHook {
	return func(_ *http.Request, pc PropagationContext) map[string]string {
		if !pc.IsValid() {
			return nil
		}
		return map[string]string{header: m.Marshal(pc)}
	}
}

// PropagatorForFormat returns the propagation hook of the named format.
func PropagatorForFormat(format string) (HTTPPropagationHook, error) {
	codec, err := Lookup(format)
	if err != nil {
		return nil, err
	}
	return HeaderPropagator(HeaderName(format), codec), nil
}
