package utils

import (
	"context"
	"net/http"

	"ahadumarket/telegram"
)

type contextKey string

const (
	// TelegramUserKey carries the verified initData identity.
	TelegramUserKey = contextKey("telegramUser")
	// RequestIDKey carries the per-request correlation ID.
	RequestIDKey = contextKey("requestID")
)

// WithTelegramUser returns a request context carrying the verified identity.
func WithTelegramUser(ctx context.Context, user *telegram.WebAppUser) context.Context {
	return context.WithValue(ctx, TelegramUserKey, user)
}

// TelegramUserFrom extracts the verified identity set by the auth middleware.
func TelegramUserFrom(r *http.Request) (*telegram.WebAppUser, bool) {
	user, ok := r.Context().Value(TelegramUserKey).(*telegram.WebAppUser)
	return user, ok && user != nil
}

// RequestIDFrom returns the request's correlation ID, if any.
func RequestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDKey).(string)
	return id
}
