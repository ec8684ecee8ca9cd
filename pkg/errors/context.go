package errors

import "context"

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID attaches the calling user's id to the context so error
// reports and logs can be attributed to a caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user id attached by WithUserID
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
