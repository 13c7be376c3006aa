package bgtask

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stleox/beeline/pkg/config"
	"github.com/stleox/beeline/pkg/sink"
)

// BgTaskManager manages background periodical tasks.
// Includes:
// - Report sink statistics
// - Purge expired spans of the olap sink
type BgTaskManager struct {
	bgTasks []BgTask
	cron    *cron.Cron
	sink    sink.EventSink
}

type BgTask interface {
	cron.Job
	Schedule() string
	Name() string
}

func NewBgTaskManager(s sink.EventSink) *BgTaskManager {
	m := &BgTaskManager{
		bgTasks: make([]BgTask, 0),
		cron:    cron.New(),
		sink:    s,
	}
	m.addStatsTask()
	m.addRetentionTask()
	return m
}

func (m *BgTaskManager) Tasks() []BgTask {
	return m.bgTasks
}

func (m *BgTaskManager) StartAll() {
	for _, task := range m.bgTasks {
		if _, err := m.cron.AddJob(task.Schedule(), task); err != nil {
			logrus.WithError(err).WithField("task", task.Name()).Warn("Beeline couldn't add background task")
		}
	}
	m.cron.Start()
}

// StopAll stops the scheduler and waits for running jobs.
func (m *BgTaskManager) StopAll() {
	<-m.cron.Stop().Done()
}

func (m *BgTaskManager) addStatsTask() {
	reporter, ok := m.sink.(sink.StatsReporter)
	if !ok {
		return
	}
	m.bgTasks = append(m.bgTasks, &StatsTask{
		reporter: reporter,
		schedule: config.StatsSchedule,
	})
}

func (m *BgTaskManager) addRetentionTask() {
	olap, ok := m.sink.(*sink.OlapSink)
	if !ok || config.SpanRetention <= 0 {
		return
	}
	m.bgTasks = append(m.bgTasks, &RetentionTask{
		conn:      olap.Conn(),
		retention: config.SpanRetention,
		schedule:  config.RetentionSchedule,
	})
}
