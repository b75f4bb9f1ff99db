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

// UserFromContext returns the email of the authenticated user attached to the
// request session, or ErrNotAuthenticated.
func UserFromContext(ctx context.Context) (string, error) {
	sess := SessionFromContext(ctx)
	if !sess.Authenticated() {
		return "", ErrNotAuthenticated
	}
	return sess.User(), nil
}
