package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is reported in meta.beeline_version and in the sink user agent.
const Version = "0.4.0"

// UserAgent suffix attached to everything a sink transmits.
var UserAgent = "beeline-go/" + Version

const (
	NameUnknownService = "unknown_service"
	DefaultDataset     = "beeline-go"
	DefaultAPIHost     = "https://api.honeycomb.io"
)

// for pkg tracer
var (
	// 每条 trace 中可以回溯查找的未发送 span 数量
	MaxOpenSpans = 1024
)

// for pkg sink
var (
	BatchSize    = 50
	BatchTimeout = 100 * time.Millisecond
	SendTimeout  = 10 * time.Second
)

// for pkg bgtask
var (
	StatsSchedule     = "@every 1m"
	RetentionSchedule = "@every 1h"
	// t_span 中 span 的保留时长
	SpanRetention = 7 * 24 * time.Hour
)

// for DB
var (
	// 测试账号
	BEELINE_DEFAULT_DSN = "root:@tcp(127.0.0.1:9030)/beeline"

	// DATE6 = "2006-01-02 15:04:05.000000" 的长度
	L_DATE6 = 26
)

// Config is the configuration surface consumed by the tracer and the sinks.
type Config struct {
	WriteKey    string
	Dataset     string
	ServiceName string
	APIHost     string
	SampleRate  uint

	// PropagationFormat selects the outbound header codec.
	PropagationFormat string
	// ParseFormats lists the inbound header codecs, tried in order.
	ParseFormats []string

	Sink         string
	OTLPEndpoint string
	OLAPDSN      string
	BatchSize    int
	BatchTimeout time.Duration

	Debug bool
}

// Default returns a configuration that writes events to the log sink.
func Default() *Config {
	return &Config{
		Dataset:           DefaultDataset,
		ServiceName:       NameUnknownService,
		APIHost:           DefaultAPIHost,
		SampleRate:        1,
		PropagationFormat: "honeycomb",
		ParseFormats:      []string{"honeycomb"},
		Sink:              "log",
		BatchSize:         BatchSize,
		BatchTimeout:      BatchTimeout,
	}
}

// SetDefaults registers the defaults on vp so that env and file values override them.
func SetDefaults(vp *viper.Viper) {
	d := Default()
	vp.SetDefault("dataset", d.Dataset)
	vp.SetDefault("service_name", d.ServiceName)
	vp.SetDefault("api_host", d.APIHost)
	vp.SetDefault("sample_rate", d.SampleRate)
	vp.SetDefault("propagation_format", d.PropagationFormat)
	vp.SetDefault("parse_formats", d.ParseFormats)
	vp.SetDefault("sink", d.Sink)
	vp.SetDefault("olap_dsn", BEELINE_DEFAULT_DSN)
	vp.SetDefault("batch_size", d.BatchSize)
	vp.SetDefault("batch_timeout", d.BatchTimeout)
}

// FromViper reads a Config out of vp.
func FromViper(vp *viper.Viper) (*Config, error) {
	SetDefaults(vp)
	cfg := &Config{
		WriteKey:          vp.GetString("write_key"),
		Dataset:           vp.GetString("dataset"),
		ServiceName:       vp.GetString("service_name"),
		APIHost:           vp.GetString("api_host"),
		SampleRate:        vp.GetUint("sample_rate"),
		PropagationFormat: vp.GetString("propagation_format"),
		ParseFormats:      vp.GetStringSlice("parse_formats"),
		Sink:              vp.GetString("sink"),
		OTLPEndpoint:      vp.GetString("otlp_endpoint"),
		OLAPDSN:           vp.GetString("olap_dsn"),
		BatchSize:         vp.GetInt("batch_size"),
		BatchTimeout:      vp.GetDuration("batch_timeout"),
		Debug:             vp.GetBool("debug"),
	}
	// env 中的列表是逗号分隔的字符串
	cfg.ParseFormats = splitList(cfg.ParseFormats)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// Validate checks the settings the tracer cannot recover from.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be greater or equal to 1")
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be positive")
	}
	switch c.Sink {
	case "log", "stdout", "http", "otlp", "olap", "none":
	default:
		return fmt.Errorf("unsupported sink %q", c.Sink)
	}
	if c.Sink == "http" && c.WriteKey == "" {
		return fmt.Errorf("write_key is required by the http sink")
	}
	return nil
}

// IsClassic reports whether the write key belongs to a classic (dataset routed) environment.
func (c *Config) IsClassic() bool {
	return c.WriteKey == "" || len(c.WriteKey) == 32
}

// TargetDataset is the dataset events are sent to. Modern environments route by service name.
func (c *Config) TargetDataset() string {
	if c.IsClassic() {
		if c.Dataset == "" {
			return DefaultDataset
		}
		return c.Dataset
	}
	name := strings.TrimSpace(c.ServiceName)
	if name == "" || strings.HasPrefix(name, NameUnknownService) {
		return NameUnknownService
	}
	return name
}
