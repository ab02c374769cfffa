// Package registry owns every mutation of code records: collision-free code
// issuance, idempotent registration with metadata merge, code matching, and
// the append-only verification history. No other component writes to the
// underlying store.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vsauth/internal/registry/metrics"
	"vsauth/internal/registry/store"
	"vsauth/pkg/domain"
	vErrors "vsauth/pkg/errors"
	"vsauth/pkg/platform/sentinel"
)

// maxGenerateAttempts bounds the retry-with-rejection loop for fresh codes.
// Exhausting it means the alphabet/length is under-provisioned for the number
// of registered products, which is a configuration fault, not a runtime one.
const maxGenerateAttempts = 1000

// EventSink receives verification events after they are persisted. Sinks are
// best-effort fan-out (metrics pipelines, Kafka); they never influence
// registration or verdicts.
type EventSink interface {
	Publish(ctx context.Context, rawKey string, event domain.VerificationEvent)
}

// Service orchestrates the code registry on top of a Store.
type Service struct {
	store      store.Store
	codeLength int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	events     EventSink
	now        func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithCodeLength overrides the total generated code length (prefix included).
func WithCodeLength(length int) Option {
	return func(s *Service) { s.codeLength = length }
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		codeLength: domain.DefaultCodeLength,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterOrUpdate is the atomic upsert. For a registered key it merges patch
// into the stored metadata (per-field last-write-wins) and returns the
// existing, unchanged code. For a fresh key it generates a candidate code,
// rejecting and retrying while the candidate collides with any stored code,
// then persists the record.
//
// Concurrency: the store's Create enforces both uniqueness constraints
// atomically, so a caller that loses a same-key race loops back onto the
// merge path and returns the winner's code; a code collision (same or
// different key) triggers regeneration. All callers for one key therefore
// observe a single code, and no two keys ever share one.
func (s *Service) RegisterOrUpdate(ctx context.Context, key domain.ProductKey, patch domain.Metadata) (domain.SecurityCode, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveRegister(time.Now())
	}
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		record, err := s.store.Get(ctx, key)
		switch {
		case err == nil:
			if !patch.IsZero() {
				if _, err := s.store.MergeMeta(ctx, key, patch); err != nil {
					return "", vErrors.Wrap(err, vErrors.CodeStoreUnavailable, "persist metadata update")
				}
			}
			return record.Code, nil
		case !errors.Is(err, store.ErrNotFound):
			return "", vErrors.Wrap(err, vErrors.CodeStoreUnavailable, "load code record")
		}

		code, err := domain.GenerateSecurityCode(s.codeLength)
		if err != nil {
			return "", vErrors.Wrap(err, vErrors.CodeInternal, "generate security code")
		}
		err = s.store.Create(ctx, &domain.CodeRecord{
			Key:       key,
			Code:      code,
			Meta:      patch,
			CreatedAt: s.now().UTC(),
		})
		switch {
		case err == nil:
			s.logger.InfoContext(ctx, "security code registered",
				"product_id", key.String(),
				"short_code", code.String(),
			)
			if s.metrics != nil {
				s.metrics.IncrementCodesIssued()
			}
			return code, nil
		case errors.Is(err, store.ErrCodeExists):
			if s.metrics != nil {
				s.metrics.IncrementCodeCollisions()
			}
			continue
		case errors.Is(err, store.ErrKeyExists):
			// Lost the same-key race; next iteration merges against the
			// winner's record.
			continue
		default:
			return "", vErrors.Wrap(err, vErrors.CodeStoreUnavailable, "persist code record")
		}
	}
	s.logger.ErrorContext(ctx, "code space exhausted",
		"product_id", key.String(),
		"attempts", maxGenerateAttempts,
	)
	return "", vErrors.Wrap(sentinel.ErrExhausted, vErrors.CodeExhausted, "code generation retry budget exceeded")
}

// Record returns the stored record for a raw identifier. Malformed or unknown
// identifiers yield absent, not an error; read paths degrade gracefully.
func (s *Service) Record(ctx context.Context, rawKey string) (*domain.CodeRecord, bool) {
	key, err := domain.ParseProductKey(rawKey)
	if err != nil {
		return nil, false
	}
	record, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "record lookup failed", "product_id", key.String(), "error", err)
		}
		return nil, false
	}
	return record, true
}

// LookupCode returns the stored code for a raw identifier, or absent.
func (s *Service) LookupCode(ctx context.Context, rawKey string) (domain.SecurityCode, bool) {
	record, ok := s.Record(ctx, rawKey)
	if !ok {
		return "", false
	}
	return record.Code, true
}

// LookupMetadata returns the stored metadata, zero-valued when unknown.
func (s *Service) LookupMetadata(ctx context.Context, rawKey string) domain.Metadata {
	record, ok := s.Record(ctx, rawKey)
	if !ok {
		return domain.Metadata{}
	}
	return record.Meta
}

// Matches reports whether candidate equals the stored code for rawKey,
// ignoring case and surrounding whitespace. Unknown or malformed keys and
// absent stored codes always yield false.
func (s *Service) Matches(ctx context.Context, rawKey, candidate string) bool {
	record, ok := s.Record(ctx, rawKey)
	if !ok {
		return false
	}
	return record.Code.Matches(candidate)
}

// FindByCode recovers the record bound to a submitted code, case-insensitive.
// Used by code-only verification to resolve the product key.
func (s *Service) FindByCode(ctx context.Context, code string) (*domain.CodeRecord, bool) {
	if domain.NormalizeCandidateCode(code) == "" {
		return nil, false
	}
	record, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "code lookup failed", "error", err)
		}
		return nil, false
	}
	return record, true
}

// AppendEvent records a verification event against rawKey. Best-effort:
// malformed keys are normalized when possible and otherwise recorded as-is,
// and persistence failures are logged, never propagated — history is
// diagnostic, not authoritative.
func (s *Service) AppendEvent(ctx context.Context, rawKey string, source domain.EventSource, verdict domain.Verdict, details map[string]string) {
	if key, err := domain.ParseProductKey(rawKey); err == nil {
		rawKey = key.String()
	}
	event := domain.VerificationEvent{
		ID:      uuid.NewString(),
		At:      s.now().UTC(),
		Source:  source,
		Verdict: verdict,
		Details: details,
	}
	if err := s.store.AppendEvent(ctx, rawKey, event); err != nil {
		s.logger.WarnContext(ctx, "append verification event failed",
			"product_id", rawKey,
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementVerifications(string(verdict))
	}
	if s.events != nil {
		s.events.Publish(ctx, rawKey, event)
	}
}

// History returns the verification events recorded for rawKey in append
// order.
func (s *Service) History(ctx context.Context, rawKey string) ([]domain.VerificationEvent, error) {
	if key, err := domain.ParseProductKey(rawKey); err == nil {
		rawKey = key.String()
	}
	events, err := s.store.History(ctx, rawKey)
	if err != nil {
		return nil, vErrors.Wrap(err, vErrors.CodeStoreUnavailable, "load verification history")
	}
	return events, nil
}
