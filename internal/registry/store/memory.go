package store

import (
	"context"
	"strings"
	"sync"

	"vsauth/pkg/domain"
)

// InMemory keeps the registry in process memory. It intentionally favors
// clarity over performance and is the default for tests and local dev.
type InMemory struct {
	mu      sync.RWMutex
	records map[domain.ProductKey]*domain.CodeRecord
	// codes indexes upper-cased code -> key for collision checks and
	// reverse lookup.
	codes  map[string]domain.ProductKey
	events map[string][]domain.VerificationEvent
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[domain.ProductKey]*domain.CodeRecord),
		codes:   make(map[string]domain.ProductKey),
		events:  make(map[string][]domain.VerificationEvent),
	}
}

func (s *InMemory) Get(_ context.Context, key domain.ProductKey) (*domain.CodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *InMemory) Create(_ context.Context, record *domain.CodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Key]; ok {
		return ErrKeyExists
	}
	codeKey := strings.ToUpper(record.Code.String())
	if _, ok := s.codes[codeKey]; ok {
		return ErrCodeExists
	}
	stored := *record
	s.records[record.Key] = &stored
	s.codes[codeKey] = record.Key
	return nil
}

func (s *InMemory) MergeMeta(_ context.Context, key domain.ProductKey, patch domain.Metadata) (domain.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return domain.Metadata{}, ErrNotFound
	}
	record.Meta = record.Meta.Merge(patch)
	return record.Meta, nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*domain.CodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.codes[domain.NormalizeCandidateCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.records[key]
	return &clone, nil
}

func (s *InMemory) AppendEvent(_ context.Context, rawKey string, event domain.VerificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[rawKey] = append(s.events[rawKey], event)
	return nil
}

func (s *InMemory) History(_ context.Context, rawKey string) ([]domain.VerificationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.events[rawKey]
	out := make([]domain.VerificationEvent, len(history))
	copy(out, history)
	return out, nil
}
