package telemetry

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// zerologLogger adapts github.com/rs/zerolog to the Logger interface.
type zerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger returns a production Logger writing structured JSON lines
// to w.
func NewZerologLogger(w io.Writer) Logger {
	return &zerologLogger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *zerologLogger) Debug(_ context.Context, msg string, fields ...Field) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) Info(_ context.Context, msg string, fields ...Field) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(_ context.Context, msg string, fields ...Field) {
	withFields(l.logger.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(_ context.Context, msg string, err error, fields ...Field) {
	ev := l.logger.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	withFields(ev, fields).Msg(msg)
}

func withFields(ev *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}
