package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/stleox/beeline/pkg/config"
)

// FromConfig builds the sink named by cfg.Sink.
func FromConfig(ctx context.Context, cfg *config.Config) (EventSink, error) {
	switch cfg.Sink {
	case "log":
		return NewLogSink(os.Stdout), nil
	case "stdout":
		exporter, err := NewStdoutExporter(os.Stdout)
		if err != nil {
			return nil, err
		}
		return NewOTLPSink(exporter, cfg.BatchSize, cfg.BatchTimeout), nil
	case "otlp":
		exporter, err := NewGRPCExporter(ctx, cfg.OTLPEndpoint, map[string]string{
			"x-honeycomb-team":    cfg.WriteKey,
			"x-honeycomb-dataset": cfg.TargetDataset(),
		})
		if err != nil {
			return nil, err
		}
		return NewOTLPSink(exporter, cfg.BatchSize, cfg.BatchTimeout), nil
	case "http":
		return NewHTTPSink(cfg.APIHost, cfg.WriteKey, cfg.BatchSize, cfg.BatchTimeout), nil
	case "olap":
		return NewOlapSink(cfg.OLAPDSN)
	case "none":
		return &NopSink{}, nil
	}
	return nil, fmt.Errorf("unsupported sink %q", cfg.Sink)
}
