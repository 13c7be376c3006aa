package sink

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/stleox/beeline/pkg/config"
	"github.com/zeromicro/go-zero/core/executors"
)

const (
	batchPath    = "/1/batch/"
	headerTeam   = "X-Honeycomb-Team"
	headerAgent  = "User-Agent"
	headerAccept = "Accept"
)

// batchEvent is the element of a Honeycomb batch request body.
type batchEvent struct {
	Data       map[string]interface{} `json:"data"`
	SampleRate uint                   `json:"samplerate"`
	Time       string                 `json:"time"`
}

// HTTPSink posts events to the Honeycomb batch API, grouped by dataset.
type HTTPSink struct {
	counters
	client   *resty.Client
	executor *executors.BulkExecutor
}

func NewHTTPSink(apiHost, writeKey string, batchSize int, batchTimeout time.Duration) *HTTPSink {
	s := &HTTPSink{
		client: resty.New().
			SetBaseURL(strings.TrimRight(apiHost, "/")).
			SetTimeout(config.SendTimeout).
			SetHeader(headerTeam, writeKey).
			SetHeader(headerAgent, config.UserAgent).
			SetHeader(headerAccept, "application/json"),
	}
	s.executor = executors.NewBulkExecutor(s.execute,
		executors.WithBulkTasks(batchSize),
		executors.WithBulkInterval(batchTimeout))
	return s
}

func (s *HTTPSink) Send(ev *Event) {
	if err := s.executor.Add(ev); err != nil {
		logrus.WithError(err).Warn("Beeline couldn't enqueue event")
		s.dropped.Add(1)
		return
	}
	s.queued.Add(1)
}

// Flush sends what is buffered and waits for it.
func (s *HTTPSink) Flush() {
	s.executor.Flush()
	s.executor.Wait()
}

func (s *HTTPSink) Close() error {
	s.Flush()
	return nil
}

func (s *HTTPSink) execute(tasks []any) {
	batches := make(map[string][]batchEvent)
	order := make([]string, 0)
	for _, task := range tasks {
		ev, ok := task.(*Event)
		if !ok {
			continue
		}
		if _, seen := batches[ev.Dataset]; !seen {
			order = append(order, ev.Dataset)
		}
		batches[ev.Dataset] = append(batches[ev.Dataset], batchEvent{
			Data:       ev.Fields,
			SampleRate: ev.SampleRate,
			Time:       ev.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	for _, dataset := range order {
		s.post(dataset, batches[dataset])
	}
}

func (s *HTTPSink) post(dataset string, events []batchEvent) {
	resp, err := s.client.R().
		SetBody(events).
		Post(batchPath + url.PathEscape(dataset))
	if err != nil {
		logrus.WithError(err).WithField("dataset", dataset).Warn("Beeline couldn't send batch")
		s.failed.Add(uint64(len(events)))
		return
	}
	if resp.IsError() {
		logrus.WithField("dataset", dataset).
			WithField("status", resp.StatusCode()).
			Warn("Beeline batch rejected")
		s.failed.Add(uint64(len(events)))
		return
	}
	s.sent.Add(uint64(len(events)))
}
