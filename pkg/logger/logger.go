package logger

import (
	"context"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

var base = log.NewEntry(log.StandardLogger())

// New configures the process-wide logger. format is "json" or "text".
func New(level, format string) *log.Logger {
	l := log.StandardLogger()
	if format == "text" {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&log.JSONFormatter{})
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetOutput(os.Stdout)
	base = log.NewEntry(l)
	return l
}

// Discard silences the logger, used by tests.
func Discard() {
	log.StandardLogger().SetOutput(io.Discard)
}

// WithRequestID stores the request id so every entry built from ctx carries it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// FromContext returns an entry annotated with the request id and the active trace, if any.
func FromContext(ctx context.Context) *log.Entry {
	entry := base
	if ctx == nil {
		return entry
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		entry = entry.WithField("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry = entry.WithFields(log.Fields{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
	}
	return entry
}
