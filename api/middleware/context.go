package middleware

import "context"

type contextKey string

const (
	ctxIdentity  contextKey = "buyer_identity"
	ctxRequestID contextKey = "request_id"
)

// IdentityFromContext returns the buyer identity set by the Identity middleware.
func IdentityFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxIdentity)
}

// WithIdentity injects the buyer identity into the context.
func WithIdentity(ctx context.Context, identity string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRequestID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRequestID, requestID)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
