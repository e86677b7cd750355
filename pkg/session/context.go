package session

import (
	"context"
	"log/slog"
)

type sessionKey struct{}

type queryKey struct{}

// With returns a context carrying the session.
func (s *Session) With(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// WithQueryID tags the context with the id of the query being answered.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryKey{}, id)
}

func QueryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(queryKey{}).(string)
	return id
}

// LoggerFromContext returns the named session logger. Without a session on
// the context the returned logger discards everything.
func LoggerFromContext(ctx context.Context, name string) (*slog.Logger, error) {
	logger := slog.New(slog.DiscardHandler)
	if s, ok := FromContext(ctx); ok {
		var err error
		logger, err = s.GetLogger(name)
		if err != nil {
			return nil, err
		}
	}
	if id := QueryIDFromContext(ctx); id != "" {
		logger = logger.With("query_id", id)
	}
	return logger, nil
}

// Logger is LoggerFromContext for callers that cannot report the error; the
// logger falls back to discarding.
func Logger(ctx context.Context, name string) *slog.Logger {
	logger, err := LoggerFromContext(ctx, name)
	if err != nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
