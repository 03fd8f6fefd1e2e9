package common

import "context"

type ctxKey string

const (
	userIDKey       ctxKey = "auth/user-id"
	emailKey        ctxKey = "auth/email"
	impersonatorKey ctxKey = "auth/impersonator-id"
)

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	return stringValue(ctx, userIDKey)
}

// WithEmail stores the authenticated user's email.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

// Email returns the authenticated user's email if present.
func Email(ctx context.Context) (string, bool) {
	return stringValue(ctx, emailKey)
}

// WithImpersonator records that the session is driven by another identity acting as the user.
func WithImpersonator(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, impersonatorKey, actorID)
}

// ImpersonatorID returns the acting identity when the session is impersonated.
func ImpersonatorID(ctx context.Context) (string, bool) {
	return stringValue(ctx, impersonatorKey)
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
