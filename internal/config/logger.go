package config

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLogger builds the application logger, writing to a rotated file when one is configured
func (c LogConfig) NewLogger(stderr io.Writer) *log.Logger {
	if stderr == nil {
		stderr = os.Stderr
	}

	if c.File != "" {
		return log.NewWithOptions(&lumberjack.Logger{
			Filename: c.File,
			MaxAge:   3,
		}, log.Options{
			Level:      parseLevel(c.Level),
			TimeFormat: "2006/01/02 15:04:05",
		})
	}

	return log.NewWithOptions(stderr, log.Options{
		Level:           parseLevel(c.Level),
		ReportTimestamp: true,
		ReportCaller:    c.Level == "debug",
	})
}
