// Package logging builds the ldlog.Loggers instance ldac uses throughout:
// debug/info to stdout, warn/error to stderr, filtered by a configured
// minimum level, the same writer split the reference relay's logging
// package uses.
package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// New builds an ldlog.Loggers for the given minimum level name (one of
// debug, info, warn, error; case-insensitive). An unrecognized level falls
// back to info.
func New(level string) ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLoggerForLevel(ldlog.Debug, makeLog(os.Stdout))
	loggers.SetBaseLoggerForLevel(ldlog.Info, makeLog(os.Stdout))
	loggers.SetBaseLoggerForLevel(ldlog.Warn, makeLog(os.Stderr))
	loggers.SetBaseLoggerForLevel(ldlog.Error, makeLog(os.Stderr))
	loggers.SetMinLevel(parseLevel(level))
	return loggers
}

func makeLog(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func parseLevel(level string) ldlog.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return ldlog.Debug
	case "warn":
		return ldlog.Warn
	case "error":
		return ldlog.Error
	default:
		return ldlog.Info
	}
}
