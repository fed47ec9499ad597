package auth

import "context"

type contextKey string

const contextKeyClaims contextKey = "auth.claims"

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKeyClaims, claims)
}

// ClaimsFromContext extracts claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(contextKeyClaims).(*Claims)
	return claims, ok && claims != nil
}
