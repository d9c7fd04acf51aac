package utils

import (
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// CollectLogger adapts Log to the small logging interfaces used by pkg/collect.
type CollectLogger struct{}

func (CollectLogger) Infof(format string, args ...interface{})  { Log.Infof(format, args...) }
func (CollectLogger) Warnf(format string, args ...interface{})  { Log.Warnf(format, args...) }
func (CollectLogger) Errorf(format string, args ...interface{}) { Log.Errorf(format, args...) }
func (CollectLogger) Debugf(format string, args ...interface{}) { Log.Debugf(format, args...) }
