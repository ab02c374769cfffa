package verify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vsauth/internal/registry"
	"vsauth/internal/registry/store"
	"vsauth/internal/source"
	"vsauth/pkg/domain"
	vErrors "vsauth/pkg/errors"
)

const (
	verifyKeyA = "0x" + "0000000000000000000000000000000000000000000000000000000000000000"
	verifyKeyB = "0x" + "00000000000000000000000000000000000000000000000000000000000abc12"
)

type VerifyEngineSuite struct {
	suite.Suite
	store    *store.InMemory
	registry *registry.Service
	source   *source.MockClient
	engine   *Engine
}

func TestVerifyEngineSuite(t *testing.T) {
	suite.Run(t, new(VerifyEngineSuite))
}

func (s *VerifyEngineSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = store.NewInMemory()
	s.registry = registry.New(s.store, registry.WithLogger(logger))
	s.source = source.NewMockClient()
	s.engine = New(s.registry, s.source, WithLogger(logger))
}

func (s *VerifyEngineSuite) mustParse(raw string) domain.ProductKey {
	key, err := domain.ParseProductKey(raw)
	s.Require().NoError(err)
	return key
}

func (s *VerifyEngineSuite) register(raw string, meta domain.Metadata) domain.SecurityCode {
	code, err := s.registry.RegisterOrUpdate(context.Background(), s.mustParse(raw), meta)
	s.Require().NoError(err)
	return code
}

func (s *VerifyEngineSuite) TestVerifyAuthentic() {
	ctx := context.Background()
	code := s.register(verifyKeyA, domain.Metadata{Model: "Sauvage Petit", Color: "Black"})

	s.Run("source unreachable still yields authentic with local fields only", func() {
		s.source.Unavailable = true
		defer func() { s.source.Unavailable = false }()

		result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: code.String(), Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.True(result.Success)
		s.Equal(domain.VerdictAuthentic, result.Verdict.Status)
		s.Equal(ReasonCodeMatches, result.Verdict.Reason)
		s.Equal("Sauvage Petit", result.Product.Model)
		s.Equal("Black", result.Product.Color)
		s.Zero(result.Product.Price, "no external fields leak in")
	})

	s.Run("case and whitespace insensitive candidate", func() {
		result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: "  " + strings.ToLower(code.String()) + " ", Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal(domain.VerdictAuthentic, result.Verdict.Status)
	})

	s.Run("external fields fill gaps without overwriting local metadata", func() {
		s.source.Seed(s.mustParse(verifyKeyA), source.Record{Name: "Catalog Name", Color: "Red", Material: "Crocodile", Price: 1809000, Year: 2025})

		result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: code.String(), Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal("Sauvage Petit", result.Product.Model, "local model wins over catalog name")
		s.Equal("Black", result.Product.Color, "local color wins")
		s.Equal("Crocodile", result.Product.Material, "catalog fills missing material")
		s.Equal(1809000, result.Product.Price)
		s.Equal(2025, result.Product.Year)
	})

	s.Run("derived display fields", func() {
		result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: code.String(), Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal("Petit", result.Product.Size, "size derived from model name")
		s.Equal("VS-000000", result.Product.Serial, "serial derived from key tail")
	})

	s.Run("every authentic verdict appends an event", func() {
		before, err := s.registry.History(ctx, verifyKeyA)
		s.Require().NoError(err)
		_, err = s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: code.String(), Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		after, err := s.registry.History(ctx, verifyKeyA)
		s.Require().NoError(err)
		s.Len(after, len(before)+1)
		s.Equal(domain.VerdictAuthentic, after[len(after)-1].Verdict)
	})
}

func (s *VerifyEngineSuite) TestVerifyFake() {
	ctx := context.Background()
	s.register(verifyKeyA, domain.Metadata{})

	s.Run("code mismatch", func() {
		result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: "VSZZZZ", Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.False(result.Success)
		s.Equal(domain.VerdictFake, result.Verdict.Status)
		s.Equal(ReasonCodeMismatch, result.Verdict.Reason)

		history, err := s.registry.History(ctx, verifyKeyA)
		s.Require().NoError(err)
		s.Require().NotEmpty(history)
		last := history[len(history)-1]
		s.Equal(domain.VerdictFake, last.Verdict)
		s.Equal("VSZZZZ", last.Details["submitted_code"])
	})

	s.Run("unknown key is fake without creating a record", func() {
		result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyB, Code: "VSAB23", Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal(domain.VerdictFake, result.Verdict.Status)
		s.Equal(ReasonNotFound, result.Verdict.Reason)

		_, ok := s.registry.LookupCode(ctx, verifyKeyB)
		s.False(ok, "verification must not register anything")
	})

	s.Run("malformed key degrades to not_found for customers", func() {
		result, err := s.engine.Verify(ctx, Request{RawKey: "0xnothex", Code: "VSAB23", Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal(domain.VerdictFake, result.Verdict.Status)
		s.Equal(ReasonNotFound, result.Verdict.Reason)

		history, err := s.registry.History(ctx, "0xnothex")
		s.Require().NoError(err)
		s.NotEmpty(history, "degraded misses still leave a trace")
	})

	s.Run("malformed key is a validation error for admins", func() {
		_, err := s.engine.Verify(ctx, Request{RawKey: "0xnothex", Code: "VSAB23", Origin: domain.SourceAdmin})
		s.Require().Error(err)
		s.True(vErrors.HasCode(err, vErrors.CodeInvalidIdentifier))
	})

	s.Run("empty request is fake for customers", func() {
		result, err := s.engine.Verify(ctx, Request{Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal(ReasonNotFound, result.Verdict.Reason)
	})
}

func (s *VerifyEngineSuite) TestVerifyCodeOnly() {
	ctx := context.Background()
	code := s.register(verifyKeyA, domain.Metadata{Model: "Sauvage Mini"})

	s.Run("resolves the key from the code", func() {
		result, err := s.engine.Verify(ctx, Request{Code: strings.ToLower(code.String()), Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.True(result.Success)
		s.Equal(verifyKeyA, result.Product.Key)
		s.Equal(ReasonCodeMatches, result.Verdict.Reason)
	})

	s.Run("unknown code is fake", func() {
		result, err := s.engine.Verify(ctx, Request{Code: "VSQQQQ", Origin: domain.SourceCustomer})
		s.Require().NoError(err)
		s.Equal(ReasonNotFound, result.Verdict.Reason)
	})

	s.Run("too-short candidate is a validation error", func() {
		_, err := s.engine.Verify(ctx, Request{Code: "VS1", Origin: domain.SourceCustomer})
		s.Require().Error(err)
		s.True(vErrors.HasCode(err, vErrors.CodeValidation))
	})
}

func (s *VerifyEngineSuite) TestVerifyWithHistory() {
	ctx := context.Background()
	code := s.register(verifyKeyA, domain.Metadata{})

	_, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: "VSWRONG1", Origin: domain.SourceCustomer})
	s.Require().NoError(err)

	result, err := s.engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: code.String(), Origin: domain.SourceCustomer, WithHistory: true})
	s.Require().NoError(err)
	s.NotEmpty(result.History)
	s.Equal(domain.VerdictFake, result.History[0].Verdict)
}

func (s *VerifyEngineSuite) TestAdminVerify() {
	ctx := context.Background()
	key := s.mustParse(verifyKeyB)

	s.Run("catalog record makes the product authentic and registers a code", func() {
		s.source.Seed(key, source.Record{Name: "Sauvage Grand", Color: "Navy", Price: 900, Year: 2024})

		result, err := s.engine.AdminVerify(ctx, verifyKeyB)
		s.Require().NoError(err)
		s.True(result.Success)
		s.Equal(ReasonSourceRecord, result.Verdict.Reason)
		s.NotEmpty(result.Code)
		s.Equal("Grand", result.Product.Size)
		s.Equal("VS-0ABC12", result.Product.Serial)

		stored, ok := s.registry.LookupCode(ctx, verifyKeyB)
		s.True(ok)
		s.Equal(result.Code, stored)
		s.Equal("Sauvage Grand", s.registry.LookupMetadata(ctx, verifyKeyB).Model)
	})

	s.Run("repeat admin verification returns the same code", func() {
		s.source.Seed(key, source.Record{Name: "Sauvage Grand", Price: 900})
		first, err := s.engine.AdminVerify(ctx, verifyKeyB)
		s.Require().NoError(err)
		second, err := s.engine.AdminVerify(ctx, verifyKeyB)
		s.Require().NoError(err)
		s.Equal(first.Code, second.Code)
	})

	s.Run("no catalog record is fake", func() {
		result, err := s.engine.AdminVerify(ctx, verifyKeyA)
		s.Require().NoError(err)
		s.False(result.Success)
		s.Equal(domain.VerdictFake, result.Verdict.Status)
		s.Equal(ReasonNotFound, result.Verdict.Reason)
		s.Empty(result.Code)
	})

	s.Run("catalog outage is a source error, not a verdict", func() {
		s.source.Unavailable = true
		defer func() { s.source.Unavailable = false }()

		_, err := s.engine.AdminVerify(ctx, verifyKeyB)
		s.Require().Error(err)
		s.True(vErrors.HasCode(err, vErrors.CodeSourceUnavailable))
	})

	s.Run("malformed key is rejected", func() {
		_, err := s.engine.AdminVerify(ctx, "junk")
		s.Require().Error(err)
		s.True(vErrors.HasCode(err, vErrors.CodeInvalidIdentifier))
	})
}

func (s *VerifyEngineSuite) TestSourceTimeout() {
	ctx := context.Background()
	code := s.register(verifyKeyA, domain.Metadata{})

	s.source.Latency = 300 * time.Millisecond
	engine := New(s.registry, s.source,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSourceTimeout(20*time.Millisecond),
	)

	started := time.Now()
	result, err := engine.Verify(ctx, Request{RawKey: verifyKeyA, Code: code.String(), Origin: domain.SourceCustomer})
	s.Require().NoError(err)
	s.Equal(domain.VerdictAuthentic, result.Verdict.Status, "slow catalog never blocks the verdict")
	s.Less(time.Since(started), 5*time.Second)
}
