package bgtask

import (
	"database/sql"
	"testing"
	"time"

	r "github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"github.com/stleox/beeline/pkg/sink"
)

func TestBgTaskManager_Tasks(t *testing.T) {
	// MemorySink 只能上报统计
	m := NewBgTaskManager(sink.NewMemorySink())
	r.Len(t, m.Tasks(), 1)
	r.Equal(t, "stats", m.Tasks()[0].Name())

	m.StartAll()
	m.StopAll()
}

func TestBgTaskManager_NoReporter(t *testing.T) {
	m := NewBgTaskManager(mockSink{})
	r.Empty(t, m.Tasks())
}

func TestStatsTask_Run(t *testing.T) {
	s := sink.NewMemorySink()
	task := &StatsTask{reporter: s, schedule: "@every 1s"}

	s.Send(&sink.Event{Dataset: "test"})
	s.Send(&sink.Event{Dataset: "test"})
	task.Run()
	r.Equal(t, uint64(2), task.Last().Sent)

	s.Send(&sink.Event{Dataset: "test"})
	task.Run()
	r.Equal(t, uint64(3), task.Last().Sent)
	r.Equal(t, uint64(3), task.Last().Queued)
}

func TestRetentionTask_Run(t *testing.T) {
	conn := &mockConn{}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	task := &RetentionTask{
		conn:      conn,
		retention: 24 * time.Hour,
		schedule:  "@every 1h",
		now:       func() time.Time { return now },
	}
	task.Run()

	r.Equal(t, "DELETE FROM `t_span` WHERE start_time < ?", conn.query)
	r.Equal(t, []any{"2024-03-09 12:00:00.000000"}, conn.args)
}

type mockSink struct{}

func (mockSink) Send(*sink.Event) {}
func (mockSink) Close() error { return nil }

type mockConn struct {
	sqlx.SqlConn
	query string
	args  []any
}

func (c *mockConn) Exec(query string, args ...any) (sql.Result, error) {
	c.query = query
	c.args = args
	return mockResult(1), nil
}

type mockResult int64

func (res mockResult) LastInsertId() (int64, error) { return 0, nil }
func (res mockResult) RowsAffected() (int64, error) { return int64(res), nil }
