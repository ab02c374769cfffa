// Package admin guards the registration and history endpoints. Two
// credentials are accepted: the static X-Admin-Token header (constant-time
// compared) or an HS256 bearer token signed with the configured key. An empty
// expected token disables the guard entirely for local development.
package admin

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	vErrors "vsauth/pkg/errors"
	"vsauth/pkg/platform/httputil"
	"vsauth/pkg/requestcontext"
)

// RequireAdmin builds the guard middleware.
func RequireAdmin(expectedToken, jwtSigningKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedToken == "" {
				// Dev mode: no admin token configured, guard disabled.
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Admin-Token")
			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if bearerValid(r, jwtSigningKey) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "admin credential rejected",
				"request_id", requestcontext.RequestID(ctx),
				"path", r.URL.Path,
			)
			httputil.WriteError(w, vErrors.New(vErrors.CodeUnauthorized, "admin credential required"))
		})
	}
}

func bearerValid(r *http.Request, signingKey string) bool {
	if signingKey == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return false
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && token.Valid
}
