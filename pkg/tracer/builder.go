package tracer

import (
	"time"

	"github.com/stleox/beeline/pkg/sink"
)

// Builder knows where events go: the target dataset, the default sample rate, the fields
// every event starts with and the sink that transmits them.
type Builder struct {
	Dataset    string
	SampleRate uint
	Fields     map[string]interface{}
	Sink       sink.EventSink
}

func (b *Builder) Clone() *Builder {
	return &Builder{
		Dataset:    b.Dataset,
		SampleRate: b.SampleRate,
		Fields:     copyFields(b.Fields),
		Sink:       b.Sink,
	}
}

// WithDataset returns b routed to dataset. b itself is unchanged.
func (b *Builder) WithDataset(dataset string) *Builder {
	if dataset == "" || dataset == b.Dataset {
		return b
	}
	c := b.Clone()
	c.Dataset = dataset
	return c
}

func (b *Builder) send(fields map[string]interface{}, rate uint, ts time.Time) {
	if b.Sink == nil {
		return
	}
	if rate < 1 {
		rate = 1
	}
	b.Sink.Send(&sink.Event{
		Dataset:    b.Dataset,
		SampleRate: rate,
		Timestamp:  ts,
		Fields:     fields,
	})
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
