package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guarded(t *testing.T, expectedToken, signingKey string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return RequireAdmin(expectedToken, signingKey, logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func do(handler http.Handler, configure func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/codes/register", nil)
	if configure != nil {
		configure(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireAdmin(t *testing.T) {
	t.Run("guard disabled when no token configured", func(t *testing.T) {
		rec := do(guarded(t, "", "key"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts matching token header", func(t *testing.T) {
		rec := do(guarded(t, "s3cret", ""), func(r *http.Request) {
			r.Header.Set("X-Admin-Token", "s3cret")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		rec := do(guarded(t, "s3cret", ""), func(r *http.Request) {
			r.Header.Set("X-Admin-Token", "nope")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects missing credentials", func(t *testing.T) {
		rec := do(guarded(t, "s3cret", "key"), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts valid bearer token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "admin",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("signing-key"))
		require.NoError(t, err)

		rec := do(guarded(t, "s3cret", "signing-key"), func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects expired bearer token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "admin",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("signing-key"))
		require.NoError(t, err)

		rec := do(guarded(t, "s3cret", "signing-key"), func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects bearer signed with another key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"})
		signed, err := token.SignedString([]byte("other-key"))
		require.NoError(t, err)

		rec := do(guarded(t, "s3cret", "signing-key"), func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
