package domain

import "time"

// EventSource identifies which flow produced a verification event.
type EventSource string

const (
	SourceAdmin    EventSource = "admin"
	SourceCustomer EventSource = "customer"
)

// Verdict is the engine's binary authenticity determination.
type Verdict string

const (
	VerdictAuthentic Verdict = "authentic"
	VerdictFake      Verdict = "fake"
)

// VerificationEvent is one immutable entry in a product's verification
// history. Events are appended, never mutated or removed.
type VerificationEvent struct {
	ID      string            `json:"id,omitempty"`
	At      time.Time         `json:"at"`
	Source  EventSource       `json:"source"`
	Verdict Verdict           `json:"verdict"`
	Details map[string]string `json:"details,omitempty"`
}
