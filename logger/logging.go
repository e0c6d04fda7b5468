package logger

import "github.com/sirupsen/logrus"

// logrusLogger adapts a logrus.Entry to Logger. Fields attached via
// WithField travel with every subsequent call, so a caller can tag log
// lines with, for example, the peer address they concern.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus builds the default Logger: text-formatted, leveled, timestamped.
func NewLogrus(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// WithField returns a Logger that prefixes every line with key=value,
// typically used to bind a peer's address to its handler's log lines.
func WithField(l Logger, key string, value interface{}) Logger {
	ll, ok := l.(*logrusLogger)
	if !ok {
		return l
	}
	return &logrusLogger{entry: ll.entry.WithField(key, value)}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
