package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness constraint (key or code) was violated
// - ErrExhausted: a bounded retry budget ran out
// - ErrUnavailable: backend or external source temporarily unreachable
// - ErrNoRecord: external source answered but has no record for the key
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExhausted   = errors.New("exhausted")
	ErrUnavailable = errors.New("unavailable")
	ErrNoRecord    = errors.New("no record")
)
