package bgtask

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stleox/beeline/pkg/sink"
)

// StatsTask logs the sink counters and the change since the previous run.
type StatsTask struct {
	reporter sink.StatsReporter
	schedule string

	muLast sync.Mutex
	last   sink.Stats
}

func (t *StatsTask) Name() string { return "stats" }
func (t *StatsTask) Schedule() string { return t.schedule }

func (t *StatsTask) Run() {
	t.muLast.Lock()
	defer t.muLast.Unlock()

	cur := t.reporter.Stats()
	logrus.WithFields(logrus.Fields{
		"queued":       cur.Queued,
		"sent":         cur.Sent,
		"dropped":      cur.Dropped,
		"failed":       cur.Failed,
		"sent_delta":   cur.Sent - t.last.Sent,
		"failed_delta": cur.Failed - t.last.Failed,
	}).Info("Beeline sink stats")
	t.last = cur
}

// Last returns the counters seen by the previous run.
func (t *StatsTask) Last() sink.Stats {
	t.muLast.Lock()
	defer t.muLast.Unlock()
	return t.last
}
