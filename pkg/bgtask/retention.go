package bgtask

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"github.com/stleox/beeline/pkg/sink"
)

// RetentionTask deletes the spans of t_span older than retention.
type RetentionTask struct {
	conn      sqlx.SqlConn
	retention time.Duration
	schedule  string

	// for tests
	now func() time.Time
}

func (t *RetentionTask) Name() string { return "retention" }
func (t *RetentionTask) Schedule() string { return t.schedule }

func (t *RetentionTask) Run() {
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	cutoff := now().Add(-t.retention).UTC().Format(sink.DATE6)

	result, err := t.conn.Exec("DELETE FROM `t_span` WHERE start_time < ?", cutoff)
	if err != nil {
		logrus.WithError(err).Error("Beeline couldn't purge t_span")
		return
	}
	n, _ := result.RowsAffected()
	logrus.WithFields(logrus.Fields{"cutoff": cutoff, "rows": n}).Debug("Beeline purged expired spans")
}
