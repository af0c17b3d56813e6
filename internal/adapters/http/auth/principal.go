// Package auth resolve o usuário autenticado a partir do token Bearer da requisição.
package auth

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	ID      string
	Name    string
}

// UserID returns the stable identifier of the principal: the sub claim, then
// the id claim, then the display name.
func (p Principal) UserID() string {
	switch {
	case p.Subject != "":
		return p.Subject
	case p.ID != "":
		return p.ID
	default:
		return p.Name
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware. The
// second value is false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID() == "" {
		return Principal{}, false
	}
	return p, true
}
