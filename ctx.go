package auth

import "context"

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// AuthContext is attached to every request by the middleware. Anonymous
// requests carry a zero value.
type AuthContext struct {
	Principal *Principal
	// Role comes from the verified token, not the stored principal.
	Role   Role
	Claims *Claims
}

// Anonymous returns the context for requests without a token
func Anonymous() AuthContext {
	return AuthContext{}
}

// IsAuthenticated reports whether a principal was resolved
func (a AuthContext) IsAuthenticated() bool {
	return a.Principal != nil
}

// HasRole compares against the token role. ADMIN implies USER.
func (a AuthContext) HasRole(role Role) bool {
	if !a.IsAuthenticated() {
		return false
	}
	if a.Role == role {
		return true
	}
	return a.Role == RoleAdmin && role == RoleUser
}

// WithAuthContext stores ac in ctx
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, ac)
}

// FromContext returns the AuthContext stored in ctx.
func FromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	ac, ok := ctx.Value(authCtxKey).(AuthContext)
	return ac, ok
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	ac, ok := FromContext(ctx)
	if !ok || ac.Principal == nil {
		return nil, false
	}
	return ac.Principal, true
}
