package actorctx

import "context"

type ctxKey struct{}

// Principal is the resolved identity of the caller. It is attached to the
// request context by the auth middleware and passed explicitly from there.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)

	return p, ok && p.Authenticated()
}

func UserIDFrom(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)

	return p.UserID, ok
}
