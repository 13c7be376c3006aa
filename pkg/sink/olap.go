package sink

import (
	"database/sql"
	"encoding/json"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/stleox/beeline/pkg/config"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// DATE6 is the DATETIME(6) layout of the OLAP tables.
const DATE6 = "2006-01-02 15:04:05.000000"

// OlapSink stores span records in a MySQL protocol OLAP database (Doris, StarRocks).
type OlapSink struct {
	counters
	conn     sqlx.SqlConn
	inserter *sqlx.BulkInserter
}

func NewOlapSink(dsn string) (*OlapSink, error) {
	// conn to the OLAP server
	if dsn == "" {
		dsn = config.BEELINE_DEFAULT_DSN
	}
	return NewOlapSinkFromConn(sqlx.NewMysql(dsn))
}

func NewOlapSinkFromConn(db sqlx.SqlConn) (*OlapSink, error) {
	if err := CreateSpanTable(db); err != nil {
		logrus.WithError(err).Error("Beeline couldn't create table t_span")
		return nil, err
	}
	inserter, err := NewSpanInserter(db)
	if err != nil {
		logrus.WithError(err).Error("Beeline couldn't open table t_span")
		return nil, err
	}
	s := &OlapSink{conn: db, inserter: inserter}
	inserter.SetResultHandler(s.handleResult)
	return s, nil
}

func CreateSpanTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_span` " +
		"(trace_id VARCHAR(64), " +
		"span_id VARCHAR(32), " +
		"parent_id VARCHAR(32), " +
		"name VARCHAR(255), " +
		"service_name VARCHAR(127), " +
		"dataset VARCHAR(127), " +
		"sample_rate BIGINT, " +
		"start_time DATETIME(6), " +
		"duration_ms DOUBLE, " +
		"fields STRING) " +
		"DISTRIBUTED BY HASH(trace_id) BUCKETS 32 " +
		"PROPERTIES (\"replication_num\" = \"1\");")
	return err
}

func NewSpanInserter(db sqlx.SqlConn) (*sqlx.BulkInserter, error) {
	return sqlx.NewBulkInserter(db, "INSERT INTO `t_span` "+
		"(trace_id, "+
		"span_id, "+
		"parent_id, "+
		"name, "+
		"service_name, "+
		"dataset, "+
		"sample_rate, "+
		"start_time, "+
		"duration_ms, "+
		"fields) "+
		"VALUES (?,?,?,?,?,?,?,?,?,?)")
}

// Conn exposes the connection, for maintenance jobs on t_span.
func (s *OlapSink) Conn() sqlx.SqlConn {
	return s.conn
}

func (s *OlapSink) Send(ev *Event) {
	if s == nil {
		return
	}
	row, err := spanRow(ev)
	if err != nil {
		logrus.WithError(err).Warn("Beeline couldn't encode span fields")
		s.dropped.Add(1)
		return
	}
	// inserter 自身有锁
	if err := s.inserter.Insert(row...); err != nil {
		logrus.WithError(err).Warn("Beeline couldn't insert span")
		s.dropped.Add(1)
		return
	}
	s.queued.Add(1)
}

func (s *OlapSink) Close() error {
	if s == nil {
		return nil
	}
	s.inserter.Flush()
	return nil
}

func (s *OlapSink) handleResult(result sql.Result, err error) {
	if err != nil {
		logrus.WithError(err).Error("Beeline couldn't flush spans")
		return
	}
	if n, err := result.RowsAffected(); err == nil {
		s.sent.Add(uint64(n))
	}
}

func spanRow(ev *Event) ([]any, error) {
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return nil, err
	}
	return []any{
		stringField(ev.Fields, "trace.trace_id"),
		stringField(ev.Fields, "trace.span_id"),
		stringField(ev.Fields, "trace.parent_id"),
		stringField(ev.Fields, "name"),
		stringField(ev.Fields, "service_name"),
		ev.Dataset,
		ev.SampleRate,
		ev.Timestamp.UTC().Format(DATE6),
		floatField(ev.Fields, "duration_ms"),
		string(fields),
	}, nil
}
