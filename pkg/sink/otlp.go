package sink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stleox/beeline/pkg/config"
	"github.com/zeromicro/go-zero/core/executors"
	attr "go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktr "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tr "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// fields that become the span structure rather than attributes
var structuralFields = map[string]bool{
	"name":            true,
	"duration_ms":     true,
	"trace.trace_id":  true,
	"trace.span_id":   true,
	"trace.parent_id": true,
}

// OTLPSink re-emits events as OpenTelemetry spans through exporter.
type OTLPSink struct {
	counters
	exporter sdktr.SpanExporter
	executor *executors.BulkExecutor
}

func NewOTLPSink(exporter sdktr.SpanExporter, batchSize int, batchTimeout time.Duration) *OTLPSink {
	s := &OTLPSink{exporter: exporter}
	s.executor = executors.NewBulkExecutor(s.execute,
		executors.WithBulkTasks(batchSize),
		executors.WithBulkInterval(batchTimeout))
	return s
}

func NewGRPCExporter(ctx context.Context, endpoint string, headers map[string]string) (sdktr.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(config.UserAgent)),
	}
	if endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}
	if len(headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gRPC exporter: %w", err)
	}
	return exporter, nil
}

func NewStdoutExporter(w io.Writer) (sdktr.SpanExporter, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}
	return exporter, nil
}

func (s *OTLPSink) Send(ev *Event) {
	if err := s.executor.Add(ev); err != nil {
		logrus.WithError(err).Warn("Beeline couldn't enqueue event")
		s.dropped.Add(1)
		return
	}
	s.queued.Add(1)
}

func (s *OTLPSink) Flush() {
	s.executor.Flush()
	s.executor.Wait()
}

func (s *OTLPSink) Close() error {
	s.Flush()
	return s.exporter.Shutdown(context.Background())
}

func (s *OTLPSink) execute(tasks []any) {
	spans := make([]sdktr.ReadOnlySpan, 0, len(tasks))
	for _, task := range tasks {
		if ev, ok := task.(*Event); ok {
			spans = append(spans, toSpanStub(ev).Snapshot())
		}
	}
	if len(spans) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.SendTimeout)
	defer cancel()
	if err := s.exporter.ExportSpans(ctx, spans); err != nil {
		logrus.WithError(err).Warn("Beeline couldn't export spans")
		s.failed.Add(uint64(len(spans)))
		return
	}
	s.sent.Add(uint64(len(spans)))
}

func toSpanStub(ev *Event) tracetest.SpanStub {
	traceID := convertTraceID(stringField(ev.Fields, "trace.trace_id"))
	spanID, _ := tr.SpanIDFromHex(stringField(ev.Fields, "trace.span_id"))
	parentID, _ := tr.SpanIDFromHex(stringField(ev.Fields, "trace.parent_id"))

	stub := tracetest.SpanStub{
		Name: stringField(ev.Fields, "name"),
		SpanContext: tr.NewSpanContext(tr.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: tr.FlagsSampled,
		}),
		StartTime: ev.Timestamp,
		EndTime:   ev.Timestamp.Add(time.Duration(floatField(ev.Fields, "duration_ms") * float64(time.Millisecond))),
		SpanKind:  tr.SpanKindInternal,
		Resource: resource.NewSchemaless(
			attr.String("service.name", stringField(ev.Fields, "service_name"))),
		Attributes: toAttributes(ev),
	}
	if parentID.IsValid() {
		stub.Parent = tr.NewSpanContext(tr.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     parentID,
			TraceFlags: tr.FlagsSampled,
			Remote:     true,
		})
	}
	if _, failed := ev.Fields["error"]; failed {
		stub.Status = sdktr.Status{Code: codes.Error, Description: stringField(ev.Fields, "error_detail")}
	}
	return stub
}

func toAttributes(ev *Event) []attr.KeyValue {
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		if !structuralFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	attrs := make([]attr.KeyValue, 0, len(keys)+2)
	attrs = append(attrs,
		attr.String("dataset", ev.Dataset),
		attr.Int64("samplerate", int64(ev.SampleRate)))
	for _, k := range keys {
		attrs = append(attrs, toAttribute(k, ev.Fields[k]))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attr.KeyValue {
	switch v := value.(type) {
	case string:
		return attr.String(key, v)
	case bool:
		return attr.Bool(key, v)
	case int:
		return attr.Int(key, v)
	case int64:
		return attr.Int64(key, v)
	case float64:
		return attr.Float64(key, v)
	case float32:
		return attr.Float64(key, float64(v))
	case []string:
		return attr.StringSlice(key, v)
	}
	return attr.String(key, fmt.Sprint(value))
}

// convert to a 128 bits trace id
// demo input: "000000000000000a", 64 bits ids from older tracers.
// demo output: "0000000000000000000000000000000a", `zero` if fail to convert.
func convertTraceID(id string) tr.TraceID {
	if len(id) == 16 {
		id = "0000000000000000" + id
	}
	traceID, err := tr.TraceIDFromHex(id)
	if err != nil {
		return tr.TraceID{}
	}
	return traceID
}
