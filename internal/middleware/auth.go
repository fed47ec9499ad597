package middleware

import (
	"net/http"
	"strings"

	"attendance-sync-api/internal/auth"

	"github.com/rs/zerolog"
)

// AuthMiddleware requires a valid bearer token on every request except the
// public paths. A nil token issuer disables the check.
type AuthMiddleware struct {
	tokens *auth.Tokens
	public map[string]bool
	logger zerolog.Logger
}

// NewAuthMiddleware creates an AuthMiddleware. publicPaths are matched exactly.
func NewAuthMiddleware(tokens *auth.Tokens, logger zerolog.Logger, publicPaths ...string) *AuthMiddleware {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &AuthMiddleware{tokens: tokens, public: public, logger: logger}
}

// RequireToken rejects requests without a valid bearer token with 401.
func (am *AuthMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if am.tokens == nil || r.Method == http.MethodOptions || am.public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := bearer(r.Header.Get("Authorization"))
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token", "UNAUTHORIZED")
			return
		}
		claims, err := am.tokens.Parse(token)
		if err != nil {
			am.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
			writeJSONError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHORIZED")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
