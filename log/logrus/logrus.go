package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/nscache"
)

var _ nscache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New adapts a logger, tagging every line with component=nscache.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "nscache")}
}

func (l LogrusLogger) Debug(msg string, f nscache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f nscache.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f nscache.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f nscache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
