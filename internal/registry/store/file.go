package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vsauth/pkg/domain"
	"vsauth/pkg/platform/sentinel"
)

// File persists the registry as a single JSON document keyed by product id.
// Writers serialize on one process-wide mutex and commit via
// write-to-temp-then-rename, so readers always observe a fully written
// document. The decoder tolerates the legacy shape where a key maps to a
// plain code string instead of a record object; the ambiguity never leaks
// past this store.
type File struct {
	mu   sync.RWMutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// fileRecord is the on-disk record shape
// (shortCode/meta/createdAt/history).
type fileRecord struct {
	ShortCode string                     `json:"shortCode,omitempty"`
	Meta      domain.Metadata            `json:"meta,omitempty"`
	CreatedAt time.Time                  `json:"createdAt,omitzero"`
	History   []domain.VerificationEvent `json:"history,omitempty"`
}

func (s *File) Get(_ context.Context, key domain.ProductKey) (*domain.CodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	entry, ok := doc[key.String()]
	if !ok || entry.ShortCode == "" {
		return nil, ErrNotFound
	}
	return toRecord(key, entry), nil
}

func (s *File) Create(_ context.Context, record *domain.CodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if existing, ok := doc[record.Key.String()]; ok && existing.ShortCode != "" {
		return ErrKeyExists
	}
	candidate := strings.ToUpper(record.Code.String())
	for _, entry := range doc {
		if strings.ToUpper(entry.ShortCode) == candidate {
			return ErrCodeExists
		}
	}
	entry := doc[record.Key.String()] // keep any pre-existing history
	entry.ShortCode = record.Code.String()
	entry.Meta = record.Meta
	entry.CreatedAt = record.CreatedAt
	doc[record.Key.String()] = entry
	return s.save(doc)
}

func (s *File) MergeMeta(_ context.Context, key domain.ProductKey, patch domain.Metadata) (domain.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return domain.Metadata{}, err
	}
	entry, ok := doc[key.String()]
	if !ok || entry.ShortCode == "" {
		return domain.Metadata{}, ErrNotFound
	}
	entry.Meta = entry.Meta.Merge(patch)
	doc[key.String()] = entry
	if err := s.save(doc); err != nil {
		return domain.Metadata{}, err
	}
	return entry.Meta, nil
}

func (s *File) FindByCode(_ context.Context, code string) (*domain.CodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	want := domain.NormalizeCandidateCode(code)
	for rawKey, entry := range doc {
		if entry.ShortCode != "" && strings.ToUpper(entry.ShortCode) == want {
			return toRecord(domain.ProductKey(rawKey), entry), nil
		}
	}
	return nil, ErrNotFound
}

func (s *File) AppendEvent(_ context.Context, rawKey string, event domain.VerificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	entry := doc[rawKey]
	entry.History = append(entry.History, event)
	doc[rawKey] = entry
	return s.save(doc)
}

func (s *File) History(_ context.Context, rawKey string) ([]domain.VerificationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc[rawKey].History, nil
}

// load reads and decodes the document. A missing file yields an empty
// document; a read or decode failure is a store availability problem and is
// never silently treated as empty (that would let a transient I/O error
// orphan every stored code on the next write).
func (s *File) load() (map[string]fileRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]fileRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read codes file: %w: %w", sentinel.ErrUnavailable, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode codes file: %w: %w", sentinel.ErrUnavailable, err)
	}
	doc := make(map[string]fileRecord, len(raw))
	for key, value := range raw {
		entry, err := decodeEntry(value)
		if err != nil {
			return nil, fmt.Errorf("decode codes file entry %q: %w: %w", key, sentinel.ErrUnavailable, err)
		}
		doc[key] = entry
	}
	return doc, nil
}

// decodeEntry normalizes both historical value shapes into fileRecord:
// the current object form and the legacy bare-string code.
func decodeEntry(value json.RawMessage) (fileRecord, error) {
	var legacy string
	if err := json.Unmarshal(value, &legacy); err == nil {
		return fileRecord{ShortCode: legacy}, nil
	}
	var entry fileRecord
	if err := json.Unmarshal(value, &entry); err != nil {
		return fileRecord{}, err
	}
	return entry, nil
}

// save commits the document atomically: full marshal to a temp file in the
// same directory, then rename over the live path.
func (s *File) save(doc map[string]fileRecord) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create codes dir: %w: %w", sentinel.ErrUnavailable, err)
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode codes file: %w: %w", sentinel.ErrUnavailable, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write codes file: %w: %w", sentinel.ErrUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit codes file: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func toRecord(key domain.ProductKey, entry fileRecord) *domain.CodeRecord {
	return &domain.CodeRecord{
		Key:       key,
		Code:      domain.SecurityCode(entry.ShortCode),
		Meta:      entry.Meta,
		CreatedAt: entry.CreatedAt,
	}
}
