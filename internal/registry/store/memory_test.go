package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vsauth/pkg/domain"
	"vsauth/pkg/platform/sentinel"
)

const (
	memKeyA = "0x" + "1111111111111111111111111111111111111111111111111111111111111111"
	memKeyB = "0x" + "2222222222222222222222222222222222222222222222222222222222222222"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newRecord(key, code string) *domain.CodeRecord {
	return &domain.CodeRecord{
		Key:       domain.ProductKey(key),
		Code:      domain.SecurityCode(code),
		CreatedAt: time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndGet() {
	s.Run("creates and finds record by key", func() {
		record := s.newRecord(memKeyA, "VSAB23")
		record.Meta = domain.Metadata{Color: "Black"}
		s.Require().NoError(s.store.Create(s.ctx, record))

		found, err := s.store.Get(s.ctx, domain.ProductKey(memKeyA))
		s.Require().NoError(err)
		s.Equal(domain.SecurityCode("VSAB23"), found.Code)
		s.Equal("Black", found.Meta.Color)
	})

	s.Run("returns ErrNotFound for unknown key", func() {
		_, err := s.store.Get(s.ctx, domain.ProductKey(memKeyB))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned record is a copy", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(memKeyB, "VSCD45")))
		found, err := s.store.Get(s.ctx, domain.ProductKey(memKeyB))
		s.Require().NoError(err)
		found.Meta.Color = "mutated"

		again, err := s.store.Get(s.ctx, domain.ProductKey(memKeyB))
		s.Require().NoError(err)
		s.Empty(again.Meta.Color)
	})
}

func (s *InMemoryStoreSuite) TestUniqueness() {
	s.Run("rejects duplicate key", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(memKeyA, "VSAB23")))
		err := s.store.Create(s.ctx, s.newRecord(memKeyA, "VSCD45"))
		s.Require().ErrorIs(err, ErrKeyExists)
		s.True(IsConflict(err))
	})

	s.Run("rejects duplicate code across keys, case-insensitive", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(memKeyB, "VSEF67")))
		err := s.store.Create(s.ctx, s.newRecord(
			"0x3333333333333333333333333333333333333333333333333333333333333333",
			"vsef67",
		))
		s.Require().ErrorIs(err, ErrCodeExists)
		s.True(IsConflict(err))
	})
}

func (s *InMemoryStoreSuite) TestMergeMeta() {
	s.Run("merges field by field", func() {
		record := s.newRecord(memKeyA, "VSAB23")
		record.Meta = domain.Metadata{Color: "Black", Price: 1200}
		s.Require().NoError(s.store.Create(s.ctx, record))

		merged, err := s.store.MergeMeta(s.ctx, domain.ProductKey(memKeyA), domain.Metadata{Material: "Silk"})
		s.Require().NoError(err)
		s.Equal("Black", merged.Color)
		s.Equal("Silk", merged.Material)
		s.Equal(1200, merged.Price)
	})

	s.Run("unknown key returns ErrNotFound", func() {
		_, err := s.store.MergeMeta(s.ctx, domain.ProductKey(memKeyB), domain.Metadata{Color: "Red"})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestFindByCode() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(memKeyA, "VSGH89")))

	s.Run("finds regardless of case and whitespace", func() {
		found, err := s.store.FindByCode(s.ctx, "  vsgh89 ")
		s.Require().NoError(err)
		s.Equal(domain.ProductKey(memKeyA), found.Key)
	})

	s.Run("unknown code returns ErrNotFound", func() {
		_, err := s.store.FindByCode(s.ctx, "VSZZZZ")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestEvents() {
	s.Run("appends and lists in order, even for unregistered keys", func() {
		first := domain.VerificationEvent{ID: uuid.NewString(), At: time.Now().UTC(), Source: domain.SourceCustomer, Verdict: domain.VerdictFake}
		second := domain.VerificationEvent{ID: uuid.NewString(), At: time.Now().UTC(), Source: domain.SourceAdmin, Verdict: domain.VerdictAuthentic}
		s.Require().NoError(s.store.AppendEvent(s.ctx, "garbage-key", first))
		s.Require().NoError(s.store.AppendEvent(s.ctx, "garbage-key", second))

		history, err := s.store.History(s.ctx, "garbage-key")
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(first.ID, history[0].ID)
		s.Equal(second.ID, history[1].ID)
	})

	s.Run("history for unknown key is empty, not an error", func() {
		history, err := s.store.History(s.ctx, "never-seen")
		s.NoError(err)
		s.Empty(history)
	})
}
