package observability

import (
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

func NewLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// NewWatermillLogger adapts logrus to the message router. The application
// itself logs through zerolog; watermill internals go through logrus so their
// verbosity can be tuned independently.
func NewWatermillLogger() watermill.LoggerAdapter {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	return logrusAdapter{entry: logrus.NewEntry(logger)}
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func (l logrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.entry.WithError(err).WithFields(logrus.Fields(fields)).Error(msg)
}

func (l logrusAdapter) Info(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l logrusAdapter) Debug(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l logrusAdapter) Trace(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l logrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return logrusAdapter{entry: l.entry.WithFields(logrus.Fields(fields))}
}
