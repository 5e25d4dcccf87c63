package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ActorID returns the authenticated admin id carried by the request session,
// or zero for anonymous and system callers.
func ActorID(ctx context.Context) int64 {
	id, _ := SessionFromContext(ctx).UserID()
	return id
}
