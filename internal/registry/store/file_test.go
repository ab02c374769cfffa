package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vsauth/pkg/domain"
	"vsauth/pkg/platform/sentinel"
)

const (
	fileKeyA = "0x" + "4444444444444444444444444444444444444444444444444444444444444444"
	fileKeyB = "0x" + "5555555555555555555555555555555555555555555555555555555555555555"
)

type FileStoreSuite struct {
	suite.Suite
	path  string
	store *File
	ctx   context.Context
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "codes.json")
	s.store = NewFile(s.path)
	s.ctx = context.Background()
}

func (s *FileStoreSuite) newRecord(key, code string) *domain.CodeRecord {
	return &domain.CodeRecord{
		Key:       domain.ProductKey(key),
		Code:      domain.SecurityCode(code),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func (s *FileStoreSuite) TestRoundTrip() {
	s.Run("missing file behaves as empty registry", func() {
		_, err := s.store.Get(s.ctx, domain.ProductKey(fileKeyA))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("create persists across store instances", func() {
		record := s.newRecord(fileKeyA, "VSAB23")
		record.Meta = domain.Metadata{Model: "Tote", Price: 900}
		s.Require().NoError(s.store.Create(s.ctx, record))

		reopened := NewFile(s.path)
		found, err := reopened.Get(s.ctx, domain.ProductKey(fileKeyA))
		s.Require().NoError(err)
		s.Equal(domain.SecurityCode("VSAB23"), found.Code)
		s.Equal("Tote", found.Meta.Model)
		s.Equal(900, found.Meta.Price)
	})

	s.Run("no temp file is left behind", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(fileKeyB, "VSCD45")))
		_, err := os.Stat(s.path + ".tmp")
		s.True(os.IsNotExist(err))
	})
}

func (s *FileStoreSuite) TestUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(fileKeyA, "VSAB23")))

	s.Run("rejects duplicate key", func() {
		err := s.store.Create(s.ctx, s.newRecord(fileKeyA, "VSCD45"))
		s.Require().ErrorIs(err, ErrKeyExists)
	})

	s.Run("rejects duplicate code, case-insensitive", func() {
		err := s.store.Create(s.ctx, s.newRecord(fileKeyB, "vsab23"))
		s.Require().ErrorIs(err, ErrCodeExists)
	})
}

func (s *FileStoreSuite) TestLegacyShape() {
	// Older documents map the key straight to the code string.
	legacy := map[string]any{
		fileKeyA: "VSJK23",
		fileKeyB: map[string]any{
			"shortCode": "VSMN45",
			"meta":      map[string]any{"color": "Red"},
		},
	}
	data, err := json.Marshal(legacy)
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(s.path, data, 0o644))

	s.Run("legacy string entries resolve to records", func() {
		found, err := s.store.Get(s.ctx, domain.ProductKey(fileKeyA))
		s.Require().NoError(err)
		s.Equal(domain.SecurityCode("VSJK23"), found.Code)
		s.True(found.Meta.IsZero())
	})

	s.Run("object entries decode alongside legacy ones", func() {
		found, err := s.store.Get(s.ctx, domain.ProductKey(fileKeyB))
		s.Require().NoError(err)
		s.Equal(domain.SecurityCode("VSMN45"), found.Code)
		s.Equal("Red", found.Meta.Color)
	})

	s.Run("legacy codes still count for uniqueness", func() {
		err := s.store.Create(s.ctx, &domain.CodeRecord{
			Key:  "0x6666666666666666666666666666666666666666666666666666666666666666",
			Code: "vsjk23",
		})
		s.Require().ErrorIs(err, ErrCodeExists)
	})

	s.Run("writes upgrade the document without losing legacy entries", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord(
			"0x7777777777777777777777777777777777777777777777777777777777777777",
			"VSPQ67",
		)))
		found, err := s.store.Get(s.ctx, domain.ProductKey(fileKeyA))
		s.Require().NoError(err)
		s.Equal(domain.SecurityCode("VSJK23"), found.Code)
	})
}

func (s *FileStoreSuite) TestCorruptFile() {
	s.Require().NoError(os.WriteFile(s.path, []byte("{not json"), 0o644))

	s.Run("reads surface unavailability instead of empty data", func() {
		_, err := s.store.Get(s.ctx, domain.ProductKey(fileKeyA))
		s.Require().ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("writes refuse to clobber an unreadable document", func() {
		err := s.store.Create(s.ctx, s.newRecord(fileKeyA, "VSAB23"))
		s.Require().ErrorIs(err, sentinel.ErrUnavailable)
	})
}

func (s *FileStoreSuite) TestMergeMeta() {
	record := s.newRecord(fileKeyA, "VSAB23")
	record.Meta = domain.Metadata{Color: "Black"}
	s.Require().NoError(s.store.Create(s.ctx, record))

	merged, err := s.store.MergeMeta(s.ctx, domain.ProductKey(fileKeyA), domain.Metadata{Material: "Silk", Year: 2024})
	s.Require().NoError(err)
	s.Equal("Black", merged.Color)
	s.Equal("Silk", merged.Material)
	s.Equal(2024, merged.Year)

	reopened := NewFile(s.path)
	found, err := reopened.Get(s.ctx, domain.ProductKey(fileKeyA))
	s.Require().NoError(err)
	s.Equal(merged, found.Meta)
}

func (s *FileStoreSuite) TestEvents() {
	s.Run("history survives reopen and keeps order", func() {
		first := domain.VerificationEvent{ID: uuid.NewString(), At: time.Now().UTC().Truncate(time.Second), Source: domain.SourceCustomer, Verdict: domain.VerdictFake, Details: map[string]string{"reason": "not_found"}}
		second := domain.VerificationEvent{ID: uuid.NewString(), At: time.Now().UTC().Truncate(time.Second), Source: domain.SourceAdmin, Verdict: domain.VerdictAuthentic}
		s.Require().NoError(s.store.AppendEvent(s.ctx, "never-validated", first))
		s.Require().NoError(s.store.AppendEvent(s.ctx, "never-validated", second))

		reopened := NewFile(s.path)
		history, err := reopened.History(s.ctx, "never-validated")
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(first.ID, history[0].ID)
		s.Equal("not_found", history[0].Details["reason"])
		s.Equal(second.ID, history[1].ID)
	})

	s.Run("events for a key do not register a code", func() {
		s.Require().NoError(s.store.AppendEvent(s.ctx, fileKeyB, domain.VerificationEvent{ID: uuid.NewString(), At: time.Now().UTC()}))
		_, err := s.store.Get(s.ctx, domain.ProductKey(fileKeyB))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
