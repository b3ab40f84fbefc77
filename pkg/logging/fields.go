// Package logging holds the slog attribute helpers shared across services
// and the request-scoped logger carried through context.
package logging

import (
	"context"
	"log/slog"
)

// Domain identifiers

func Room(id string) slog.Attr {
	return slog.String("room_id", id)
}

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Session(id string) slog.Attr {
	return slog.String("session_id", id)
}

func ClientTemp(id string) slog.Attr {
	return slog.String("client_temp_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Request-scoped logger

type ctxKey struct{}

// WithContext attaches log to ctx; FromContext retrieves it, falling back to
// the process default so callers never get a nil logger.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
