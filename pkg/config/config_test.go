package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	r "github.com/stretchr/testify/require"
)

func TestConfig_FromViperDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	r.NoError(t, err)
	r.Equal(t, Default().Dataset, cfg.Dataset)
	r.Equal(t, uint(1), cfg.SampleRate)
	r.Equal(t, []string{"honeycomb"}, cfg.ParseFormats)
	r.Equal(t, "log", cfg.Sink)
	r.Equal(t, BatchTimeout, cfg.BatchTimeout)
	r.Equal(t, BEELINE_DEFAULT_DSN, cfg.OLAPDSN)
}

func TestConfig_FromViper(t *testing.T) {
	vp := viper.New()
	vp.Set("write_key", "abcdefabcdefabcdefabcdefabcdefab")
	vp.Set("sample_rate", 10)
	vp.Set("parse_formats", "w3c, honeycomb")
	vp.Set("batch_timeout", "250ms")
	vp.Set("sink", "http")

	cfg, err := FromViper(vp)
	r.NoError(t, err)
	r.Equal(t, uint(10), cfg.SampleRate)
	r.Equal(t, []string{"w3c", "honeycomb"}, cfg.ParseFormats)
	r.Equal(t, 250*time.Millisecond, cfg.BatchTimeout)
	r.True(t, cfg.IsClassic())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	r.NoError(t, cfg.Validate())

	cfg.Sink = "kafka"
	r.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sink = "http"
	r.Error(t, cfg.Validate())

	cfg = Default()
	cfg.BatchSize = 0
	r.Error(t, cfg.Validate())
}

func TestConfig_TargetDataset(t *testing.T) {
	// classic 环境按 dataset 路由
	cfg := Default()
	cfg.Dataset = "orders"
	r.Equal(t, "orders", cfg.TargetDataset())
	cfg.Dataset = ""
	r.Equal(t, DefaultDataset, cfg.TargetDataset())

	// modern 环境按 service name 路由
	cfg.WriteKey = "modern"
	r.False(t, cfg.IsClassic())
	cfg.ServiceName = " checkout "
	r.Equal(t, "checkout", cfg.TargetDataset())
	cfg.ServiceName = "unknown_service:ruby"
	r.Equal(t, NameUnknownService, cfg.TargetDataset())
	cfg.ServiceName = ""
	r.Equal(t, NameUnknownService, cfg.TargetDataset())
}
