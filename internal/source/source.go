// Package source queries the authoritative product catalog that the registry
// enriches verification responses from. The catalog is external and may be
// slow or down; callers treat every lookup as best-effort.
package source

import (
	"context"
	"errors"

	"vsauth/pkg/domain"
)

// Record is the catalog's view of a product. A record with neither a name nor
// a price is the catalog's way of saying "never heard of it".
type Record struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Material string `json:"material"`
	Price    int    `json:"price"`
	Year     int    `json:"year"`
}

// IsEmpty reports whether the catalog returned a placeholder for an unknown
// product.
func (r Record) IsEmpty() bool {
	return r.Name == "" && r.Price == 0
}

var (
	// ErrNoRecord means the catalog answered and knows nothing about the key.
	ErrNoRecord = errors.New("source: no record for product")
	// ErrUnavailable means the catalog could not be reached or answered
	// abnormally; absence of evidence, not evidence of absence.
	ErrUnavailable = errors.New("source: unavailable")
)

// Client queries the catalog. Implementations must distinguish "unknown
// product" (ErrNoRecord) from "could not ask" (ErrUnavailable); verification
// verdicts depend on the difference.
type Client interface {
	FetchProduct(ctx context.Context, key domain.ProductKey) (*Record, error)
}
