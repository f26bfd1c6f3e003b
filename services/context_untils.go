package services

import (
	"context"
	"strings"
)

type ctxKey string

const (
	idempotencyKeyCtx ctxKey = "idempotency_key"
	clientInfoCtx     ctxKey = "client_info"
)

// ClientInfo identifies where a request came from for the audit trail.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// WithIdempotencyKey attaches a caller supplied idempotency key. Events
// recorded under the key are written at most once per event type.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx, key)
}

func idempotencyKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(idempotencyKeyCtx).(string); ok {
		return v
	}
	return ""
}

// WithClientInfo attaches the caller's address and user agent.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoCtx, info)
}

func clientInfoFromContext(ctx context.Context) (ClientInfo, bool) {
	if ctx == nil {
		return ClientInfo{}, false
	}
	info, ok := ctx.Value(clientInfoCtx).(ClientInfo)
	return info, ok
}
