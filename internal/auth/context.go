package auth

import "context"

type contextKey struct{}

type adminKey struct{}

type AuthContext struct {
	UserID    int64
	SessionID int64
	Token     string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// UserID returns the signed-in user, or 0.
func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// WithAdmin marks the request as carrying a valid administrator token.
func WithAdmin(ctx context.Context, tokenID string) context.Context {
	return context.WithValue(ctx, adminKey{}, tokenID)
}

func IsAdmin(ctx context.Context) bool {
	_, ok := ctx.Value(adminKey{}).(string)
	return ok
}

// AdminTokenID returns the id of the administrator token, for audit logs.
func AdminTokenID(ctx context.Context) string {
	id, _ := ctx.Value(adminKey{}).(string)
	return id
}
