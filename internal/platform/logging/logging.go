// Package logging builds the structured service logger and its gRPC
// interceptors.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/divination/internal/platform/requestctx"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Logger wraps a logrus logger bound to one service.
type Logger struct {
	*logrus.Entry
}

// Options configures New.
type Options struct {
	Level  string
	Output io.Writer
}

// New creates a JSON logger tagged with service.
func New(service string, opts Options) *Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stdout)
	}
	log.SetLevel(ParseLevel(opts.Level))
	return &Logger{Entry: log.WithField("service", service)}
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(value string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(value))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// FromContext returns an entry carrying the request and account ids in ctx.
func (l *Logger) FromContext(ctx context.Context) *logrus.Entry {
	entry := l.Entry
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	if accountID := requestctx.AccountIDFromContext(ctx); accountID != "" {
		entry = entry.WithField("account_id", accountID)
	}
	return entry
}

// Printf adapts the logger to printf-style callbacks.
func (l *Logger) Printf(format string, args ...any) {
	l.Entry.Infof(format, args...)
}

// UnaryServerInterceptor logs each unary call with its outcome and latency.
func UnaryServerInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger.FromContext(ctx), info.FullMethod, "unary", start, err)
		return resp, err
	}
}

// StreamServerInterceptor logs each stream with its outcome and latency.
func StreamServerInterceptor(logger *Logger) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, stream)
		logCall(logger.FromContext(stream.Context()), info.FullMethod, "stream", start, err)
		return err
	}
}

func logCall(entry *logrus.Entry, method, kind string, start time.Time, err error) {
	fields := logrus.Fields{
		"method":      method,
		"type":        kind,
		"duration_ms": time.Since(start).Milliseconds(),
		"code":        status.Code(err).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		entry.WithFields(fields).Warn("gRPC call failed")
		return
	}
	entry.WithFields(fields).Debug("gRPC call completed")
}
