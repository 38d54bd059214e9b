package common

import (
	"github.com/sirupsen/logrus"
)

type LogLevel int32

const (
	DEBUG_INFO_DETAIL LogLevel = 1
	DEBUG_INFO        LogLevel = 2
	DEBUGGING         LogLevel = 4
	INFO              LogLevel = 8
	WARN              LogLevel = 16
	ERROR             LogLevel = 32
	FATAL             LogLevel = 64
)

// HbPrintf emits a formatted message when the level is enabled in
// LogLevelSetting. Output goes through logrus so that main can pick
// formatter and destination once for the whole process.
func HbPrintf(logLevel LogLevel, format string, a ...interface{}) {
	if logLevel&LogLevelSetting == 0 {
		return
	}
	switch {
	case logLevel >= FATAL:
		logrus.Fatalf(format, a...)
	case logLevel >= ERROR:
		logrus.Errorf(format, a...)
	case logLevel >= WARN:
		logrus.Warnf(format, a...)
	case logLevel >= INFO:
		logrus.Infof(format, a...)
	default:
		logrus.Debugf(format, a...)
	}
}

// InitLogger applies the configured level to logrus.
func InitLogger(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if level >= logrus.DebugLevel {
		LogLevelSetting |= DEBUGGING | DEBUG_INFO
		EnableDebug = true
	}
}
