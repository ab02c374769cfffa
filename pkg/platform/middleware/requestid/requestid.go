// Package requestid tags every request with a unique ID for log correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"vsauth/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware assigns a request ID when the caller did not send one, stores it
// in the context, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
