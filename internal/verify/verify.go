// Package verify composes authenticity verdicts. The local registry is the
// source of truth for customer checks; the external catalog drives the admin
// flow and otherwise only enriches responses, never the verdict.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"vsauth/internal/registry/metrics"
	"vsauth/internal/source"
	"vsauth/pkg/domain"
	vErrors "vsauth/pkg/errors"
)

// DefaultMinCodeLength is the shortest candidate code the engine will look
// at. Historical deployments disagreed on this value, so it is configuration,
// not a literal in the matching logic.
const DefaultMinCodeLength = 4

const defaultSourceTimeout = 3 * time.Second

// Verdict reasons, machine-readable.
const (
	ReasonNotFound     = "not_found"
	ReasonCodeMismatch = "code_mismatch"
	ReasonCodeMatches  = "code_matches"
	ReasonSourceRecord = "source_record_ok"
)

// Registry is the slice of the code registry the engine needs.
type Registry interface {
	RegisterOrUpdate(ctx context.Context, key domain.ProductKey, patch domain.Metadata) (domain.SecurityCode, error)
	Record(ctx context.Context, rawKey string) (*domain.CodeRecord, bool)
	FindByCode(ctx context.Context, code string) (*domain.CodeRecord, bool)
	AppendEvent(ctx context.Context, rawKey string, source domain.EventSource, verdict domain.Verdict, details map[string]string)
	History(ctx context.Context, rawKey string) ([]domain.VerificationEvent, error)
}

// Request is one verification attempt. At least one of RawKey and Code must
// be present; Origin tags the recorded event.
type Request struct {
	RawKey string
	Code   string
	Origin domain.EventSource
	// WithHistory includes the key's verification history in the response.
	WithHistory bool
}

// Engine runs the verification state machine.
type Engine struct {
	registry      Registry
	source        source.Client
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	minCodeLength int
	sourceTimeout time.Duration
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithMinCodeLength(length int) Option {
	return func(e *Engine) { e.minCodeLength = length }
}

// WithSourceTimeout bounds every external catalog call; the engine never
// blocks on a dead catalog.
func WithSourceTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.sourceTimeout = timeout }
}

func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = provider.Tracer("vsauth/verify") }
}

func New(reg Registry, src source.Client, opts ...Option) *Engine {
	e := &Engine{
		registry:      reg,
		source:        src,
		logger:        slog.Default(),
		tracer:        otel.Tracer("vsauth/verify"),
		minCodeLength: DefaultMinCodeLength,
		sourceTimeout: defaultSourceTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify runs the resolve/match/enrich/conclude sequence for a customer- or
// admin-submitted (key, code) pair.
//
// Malformed identifiers degrade to a not_found verdict on customer requests
// and fail with a validation error on admin requests. External catalog
// failures never change the verdict.
func (e *Engine) Verify(ctx context.Context, req Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "verify.request",
		trace.WithAttributes(attribute.String("verify.origin", string(req.Origin))),
	)
	defer span.End()
	if e.metrics != nil {
		defer e.metrics.ObserveVerify(time.Now())
	}

	rawKey := strings.TrimSpace(req.RawKey)
	candidate := strings.TrimSpace(req.Code)
	strict := req.Origin == domain.SourceAdmin

	if candidate != "" && len(domain.NormalizeCandidateCode(candidate)) < e.minCodeLength {
		return nil, vErrors.Newf(vErrors.CodeValidation, "short_code must be at least %d characters", e.minCodeLength)
	}

	// Resolve.
	var record *domain.CodeRecord
	codeOnly := false
	switch {
	case rawKey != "":
		key, err := domain.ParseProductKey(rawKey)
		if err != nil {
			if strict {
				return nil, vErrors.Wrap(err, vErrors.CodeInvalidIdentifier, "parse product id")
			}
			return e.concludeFake(ctx, req, rawKey, candidate, ReasonNotFound), nil
		}
		rawKey = key.String()
		var ok bool
		record, ok = e.registry.Record(ctx, rawKey)
		if !ok {
			return e.concludeFake(ctx, req, rawKey, candidate, ReasonNotFound), nil
		}
	case candidate != "":
		codeOnly = true
		var ok bool
		record, ok = e.registry.FindByCode(ctx, candidate)
		if !ok {
			return e.concludeFake(ctx, req, candidate, candidate, ReasonNotFound), nil
		}
		rawKey = record.Key.String()
	default:
		if strict {
			return nil, vErrors.New(vErrors.CodeValidation, "either product_id or short_code is required")
		}
		return e.concludeFake(ctx, req, rawKey, candidate, ReasonNotFound), nil
	}

	// Match. Code-only resolution is definitionally a match.
	if !codeOnly && !record.Code.Matches(candidate) {
		return e.concludeFake(ctx, req, rawKey, candidate, ReasonCodeMismatch), nil
	}

	// Enrich. Catalog record and history fetch in parallel; both
	// best-effort.
	external, history := e.enrich(ctx, record.Key, rawKey, req.WithHistory)

	e.registry.AppendEvent(ctx, rawKey, req.Origin, domain.VerdictAuthentic, map[string]string{
		"reason": ReasonCodeMatches,
	})
	span.SetAttributes(attribute.String("verify.verdict", string(domain.VerdictAuthentic)))

	return &Result{
		Success: true,
		Product: buildProduct(record.Key, record.Code, record.Meta, external),
		Verdict: Verdict{Status: domain.VerdictAuthentic, Reason: ReasonCodeMatches},
		History: history,
	}, nil
}

// AdminVerify is the admin registration flow: the catalog decides the
// verdict, and an authentic product gets a security code registered (or its
// existing one returned) with the catalog fields merged into its metadata.
func (e *Engine) AdminVerify(ctx context.Context, rawKey string) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "verify.admin")
	defer span.End()
	if e.metrics != nil {
		defer e.metrics.ObserveVerify(time.Now())
	}

	key, err := domain.ParseProductKey(rawKey)
	if err != nil {
		return nil, vErrors.Wrap(err, vErrors.CodeInvalidIdentifier, "parse product id")
	}

	record, err := e.fetchSource(ctx, key)
	switch {
	case errors.Is(err, source.ErrNoRecord):
		e.registry.AppendEvent(ctx, key.String(), domain.SourceAdmin, domain.VerdictFake, map[string]string{
			"reason": ReasonNotFound,
		})
		span.SetAttributes(attribute.String("verify.verdict", string(domain.VerdictFake)))
		return &Result{
			Product: Product{Key: key.String()},
			Verdict: Verdict{Status: domain.VerdictFake, Reason: ReasonNotFound},
		}, nil
	case err != nil:
		if e.metrics != nil {
			e.metrics.IncrementSourceFailures()
		}
		return nil, vErrors.Wrap(err, vErrors.CodeSourceUnavailable, "query product source")
	}

	patch := domain.Metadata{
		Model:    record.Name,
		Color:    record.Color,
		Material: record.Material,
		Price:    record.Price,
		Year:     record.Year,
	}
	result := &Result{
		Success: true,
		Product: buildProduct(key, "", patch, record),
		Verdict: Verdict{Status: domain.VerdictAuthentic, Reason: ReasonSourceRecord},
	}

	code, err := e.registry.RegisterOrUpdate(ctx, key, patch)
	if err != nil {
		// The product is authentic regardless; surface the storage
		// problem without flipping the verdict.
		e.logger.ErrorContext(ctx, "code registration failed during admin verification",
			"product_id", key.String(),
			"error", err,
		)
		result.Verdict.Warning = "security code storage failed"
	} else {
		result.Code = code
		result.Product.Code = code.String()
	}

	e.registry.AppendEvent(ctx, key.String(), domain.SourceAdmin, domain.VerdictAuthentic, map[string]string{
		"reason": ReasonSourceRecord,
	})
	span.SetAttributes(attribute.String("verify.verdict", string(domain.VerdictAuthentic)))
	return result, nil
}

func (e *Engine) concludeFake(ctx context.Context, req Request, eventKey, candidate, reason string) *Result {
	details := map[string]string{"reason": reason}
	if candidate != "" {
		details["submitted_code"] = domain.NormalizeCandidateCode(candidate)
	}
	if eventKey == "" {
		eventKey = strings.TrimSpace(req.RawKey)
	}
	e.registry.AppendEvent(ctx, eventKey, req.Origin, domain.VerdictFake, details)
	return &Result{
		Product: Product{Key: strings.TrimSpace(req.RawKey), Code: domain.NormalizeCandidateCode(candidate)},
		Verdict: Verdict{Status: domain.VerdictFake, Reason: reason},
	}
}

// enrich fetches the catalog record and, when requested, the verification
// history. Failures are logged and ignored.
func (e *Engine) enrich(ctx context.Context, key domain.ProductKey, rawKey string, withHistory bool) (*source.Record, []domain.VerificationEvent) {
	var (
		external *source.Record
		history  []domain.VerificationEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record, err := e.fetchSource(gctx, key)
		if err != nil {
			if !errors.Is(err, source.ErrNoRecord) {
				if e.metrics != nil {
					e.metrics.IncrementSourceFailures()
				}
				e.logger.WarnContext(gctx, "external source enrichment failed",
					"product_id", key.String(),
					"error", err,
				)
			}
			return nil
		}
		external = record
		return nil
	})
	if withHistory {
		g.Go(func() error {
			events, err := e.registry.History(gctx, rawKey)
			if err != nil {
				e.logger.WarnContext(gctx, "history enrichment failed",
					"product_id", rawKey,
					"error", err,
				)
				return nil
			}
			history = events
			return nil
		})
	}
	_ = g.Wait()
	return external, history
}

func (e *Engine) fetchSource(ctx context.Context, key domain.ProductKey) (*source.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, e.sourceTimeout)
	defer cancel()
	return e.source.FetchProduct(ctx, key)
}
