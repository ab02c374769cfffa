// Package httpapi is the thin HTTP layer. It delegates to the registry and
// verification services without embedding business logic so transport
// concerns remain isolated.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vsauth/internal/ratelimit"
	"vsauth/pkg/platform/httputil"
	adminguard "vsauth/pkg/platform/middleware/admin"
	"vsauth/pkg/platform/middleware/cors"
	"vsauth/pkg/platform/middleware/requestid"
)

// RouterConfig carries the transport-level knobs the router needs.
type RouterConfig struct {
	AdminToken    string
	JWTSigningKey string
	CORSOrigins   []string
}

// NewRouter wires all endpoints. Admin routes sit behind the admin guard;
// the public verification endpoint behind the rate limiter.
func NewRouter(h *Handler, limiter *ratelimit.Limiter, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(cors.Middleware(cfg.CORSOrigins))

	r.Get("/", h.HandleIndex)
	r.Get("/health", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/qr/{productID}.png", h.HandleQR)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Post("/customer-verify", h.HandleCustomerVerify)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminguard.RequireAdmin(cfg.AdminToken, cfg.JWTSigningKey, logger))
		r.Post("/codes/register", h.HandleRegister)
		r.Get("/codes/{productID}", h.HandleGetCode)
		r.Get("/codes/{productID}/history", h.HandleHistory)
		r.Get("/verify/{productID}", h.HandleAdminVerify)
	})

	return r
}

// HandleIndex lists the available endpoints.
func (h *Handler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service": "vsauth",
		"endpoints": []string{
			"GET  /health",
			"POST /codes/register",
			"GET  /codes/{productID}",
			"GET  /codes/{productID}/history",
			"GET  /verify/{productID}",
			"POST /customer-verify",
			"GET  /qr/{productID}.png",
			"GET  /metrics",
		},
	})
}

// HandleHealth reports liveness plus dependency health when checkers are
// configured.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}
	for name, check := range h.health {
		if err := check(r.Context()); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	payload := map[string]any{"status": status}
	if len(checks) > 0 {
		payload["checks"] = checks
	}
	httputil.WriteJSON(w, code, payload)
}
