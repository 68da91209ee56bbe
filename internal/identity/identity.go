// Package identity carries the authenticated caller through request context.
// Every operation outside the auth negotiation consumes the token as implicit
// authorization context; the backend also uses it to resolve SelfUUID
// filter placeholders.
package identity

import (
	"context"

	"castellan/internal/proto"
)

type tokenKey struct{}

// WithToken returns a context carrying the caller's auth token.
func WithToken(ctx context.Context, token *proto.UserAuthToken) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// FromContext returns the caller's auth token, if any.
func FromContext(ctx context.Context) (*proto.UserAuthToken, bool) {
	token, ok := ctx.Value(tokenKey{}).(*proto.UserAuthToken)
	if !ok || token == nil {
		return nil, false
	}
	return token, true
}
