package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stleox/beeline/pkg/bgtask"
	"github.com/stleox/beeline/pkg/config"
	"github.com/stleox/beeline/pkg/sink"
	"github.com/stleox/beeline/pkg/tracer"
)

func newEmitCommand(vp *viper.Viper) *cobra.Command {
	var (
		name   string
		header string
	)
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Send a root and a child span through the configured sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(vp)
			if err != nil {
				return err
			}
			out, err := emit(cmd.Context(), cfg, name, header)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "beeline.emit", "Name of the root span")
	flags.StringVar(&header, "trace-header", "", "Continue the trace of this honeycomb header")
	flags.String("sink", "log", "Sink: log, stdout, http, otlp, olap or none")
	flags.String("dataset", config.DefaultDataset, "Dataset of classic environments")
	flags.String("service-name", config.NameUnknownService, "Service name")
	flags.String("write-key", "", "Write key")
	flags.Uint("sample-rate", 1, "Keep 1 in sample-rate traces")
	bindFlags(vp, flags, map[string]string{
		"sink":         "sink",
		"dataset":      "dataset",
		"service_name": "service-name",
		"write_key":    "write-key",
		"sample_rate":  "sample-rate",
	})
	return cmd
}

// emit returns the header a downstream call of the child span would carry.
func emit(ctx context.Context, cfg *config.Config, name, header string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := sink.FromConfig(ctx, cfg)
	if err != nil {
		return "", err
	}
	client, err := tracer.NewClient(cfg, s)
	if err != nil {
		_ = s.Close()
		return "", err
	}

	tasks := bgtask.NewBgTaskManager(s)
	tasks.StartAll()
	defer tasks.StopAll()

	var out string
	err = client.WithSpan(ctx, name, func(ctx context.Context, root *tracer.Span) error {
		client.AddFieldToTrace(ctx, "emitter", "beeline-cli")
		return client.WithSpan(ctx, name+".child", func(ctx context.Context, child *tracer.Span) error {
			client.AddField(ctx, "emitted", true)
			out = client.TraceHeader(ctx)
			logrus.WithFields(logrus.Fields{
				"trace_id": child.Trace().ID(),
				"span_id":  child.ID(),
			}).Debug("emitting spans")
			return nil
		})
	}, tracer.WithTraceHeader(header))

	if cerr := client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return out, err
}
