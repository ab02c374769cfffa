package httpapi

import (
	"context"
	"log/slog"

	"vsauth/internal/verify"
	"vsauth/pkg/domain"
)

// RegistryService is the slice of the registry the transport needs.
type RegistryService interface {
	RegisterOrUpdate(ctx context.Context, key domain.ProductKey, patch domain.Metadata) (domain.SecurityCode, error)
	LookupCode(ctx context.Context, rawKey string) (domain.SecurityCode, bool)
	History(ctx context.Context, rawKey string) ([]domain.VerificationEvent, error)
}

// VerifyEngine composes authenticity verdicts.
type VerifyEngine interface {
	Verify(ctx context.Context, req verify.Request) (*verify.Result, error)
	AdminVerify(ctx context.Context, rawKey string) (*verify.Result, error)
}

// QRGenerator renders verification deep links.
type QRGenerator interface {
	PNG(key domain.ProductKey) ([]byte, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler wires the endpoints to the services.
type Handler struct {
	registry RegistryService
	verifier VerifyEngine
	qr       QRGenerator
	logger   *slog.Logger
	health   map[string]HealthCheck
}

type HandlerOption func(h *Handler)

// WithHealthCheck registers a named dependency probe for /health.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *Handler) { h.health[name] = check }
}

func NewHandler(registry RegistryService, verifier VerifyEngine, qr QRGenerator, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: registry,
		verifier: verifier,
		qr:       qr,
		logger:   logger,
		health:   make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
