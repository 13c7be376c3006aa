package config

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// InitLogrus configures the package level logger.
func InitLogrus(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: time.DateTime,
	})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewEventLogger returns a JSON logger writing to w, used to dump events.
func NewEventLogger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	if w == nil {
		w = os.Stdout
	}
	logger.SetOutput(w)
	return logger
}

func init() {
	InitLogrus(false)
}
