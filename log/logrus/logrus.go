// Package logrus adapts a logrus.Entry to the cache Logger interface.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/strata"
)

// LogrusLogger forwards cache logs to E. Pass an Entry rather than a
// Logger so callers can pin context fields once:
//
//	LogrusLogger{E: logrus.WithField("component", "cache")}
type LogrusLogger struct{ E *logrus.Entry }

var _ strata.Logger = LogrusLogger{}

func (l LogrusLogger) Debug(msg string, f strata.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}

func (l LogrusLogger) Info(msg string, f strata.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}

func (l LogrusLogger) Warn(msg string, f strata.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}

func (l LogrusLogger) Error(msg string, f strata.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
