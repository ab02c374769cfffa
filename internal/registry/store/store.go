package store

import (
	"context"
	"errors"
	"fmt"

	"vsauth/pkg/domain"
	"vsauth/pkg/platform/sentinel"
)

// Store is the persistence boundary for code records. Implementations must
// guarantee atomic visibility of whole records (a reader never observes a
// partially written record) and enforce both uniqueness constraints inside
// Create: one record per key, one key per code.
//
// Stores are interface-driven to keep the registry testable and to allow
// swapping in-memory, file-based, or SQL persistence without rewiring
// business code.
type Store interface {
	// Get returns the record for key without its history.
	// Returns ErrNotFound when no record exists.
	Get(ctx context.Context, key domain.ProductKey) (*domain.CodeRecord, error)

	// Create persists a new record. Fails with ErrKeyExists when the key is
	// already registered and ErrCodeExists when another key holds the same
	// code. The existence checks and the write are a single atomic step.
	Create(ctx context.Context, record *domain.CodeRecord) error

	// MergeMeta merges patch into the stored metadata for key with per-field
	// last-write-wins semantics, atomically, and returns the merged result.
	MergeMeta(ctx context.Context, key domain.ProductKey, patch domain.Metadata) (domain.Metadata, error)

	// FindByCode returns the record whose code matches (case-insensitive).
	FindByCode(ctx context.Context, code string) (*domain.CodeRecord, error)

	// AppendEvent records a verification event. rawKey may be malformed;
	// events are diagnostic and are kept even for keys that never validated.
	AppendEvent(ctx context.Context, rawKey string, event domain.VerificationEvent) error

	// History returns the events recorded for rawKey in append order.
	History(ctx context.Context, rawKey string) ([]domain.VerificationEvent, error)
}

// Store-level errors. Backends wrap these so the registry can distinguish a
// lost same-key race (re-read and merge) from a code collision (regenerate).
var (
	ErrNotFound   = sentinel.ErrNotFound
	ErrKeyExists  = fmt.Errorf("product key already registered: %w", sentinel.ErrConflict)
	ErrCodeExists = fmt.Errorf("security code already in use: %w", sentinel.ErrConflict)
)

// IsConflict reports whether err is either uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, sentinel.ErrConflict)
}
