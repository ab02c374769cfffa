// Package events ships verification events to an external stream. Delivery is
// best-effort fan-out for downstream analytics; the registry's own history is
// the durable record and never depends on this package.
package events

import (
	"context"

	"vsauth/pkg/domain"
)

// Envelope is the unit of delivery: the (possibly unvalidated) product key a
// verification ran against, plus the recorded event.
type Envelope struct {
	Key   string                   `json:"productId"`
	Event domain.VerificationEvent `json:"event"`
}

// Publisher delivers envelopes to a stream.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
	Close()
}
