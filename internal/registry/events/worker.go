package events

import (
	"context"
	"log/slog"

	"vsauth/pkg/domain"
)

// AsyncSink buffers envelopes on a channel for a Worker to deliver, so
// verification requests never block on the stream. A full inbox drops the
// envelope with a warning rather than applying backpressure.
type AsyncSink struct {
	inbox  chan Envelope
	logger *slog.Logger
}

func NewAsyncSink(buffer int, logger *slog.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncSink{
		inbox:  make(chan Envelope, buffer),
		logger: logger,
	}
}

// Publish enqueues the event for asynchronous delivery. Implements the
// registry's event sink.
func (s *AsyncSink) Publish(ctx context.Context, rawKey string, event domain.VerificationEvent) {
	select {
	case s.inbox <- Envelope{Key: rawKey, Event: event}:
	default:
		s.logger.WarnContext(ctx, "event inbox full, dropping verification event",
			"product_id", rawKey,
			"event_id", event.ID,
		)
	}
}

// Inbox exposes the channel for the consuming Worker.
func (s *AsyncSink) Inbox() <-chan Envelope {
	return s.inbox
}

// Worker consumes envelopes from a sink's inbox and hands them to a
// Publisher. Delivery failures are logged and skipped; the stream is not the
// system of record.
type Worker struct {
	publisher Publisher
	inbox     <-chan Envelope
	logger    *slog.Logger
}

func NewWorker(publisher Publisher, inbox <-chan Envelope, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{publisher: publisher, inbox: inbox, logger: logger}
}

// Run blocks until ctx is cancelled, draining the inbox as envelopes arrive.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope := <-w.inbox:
			if err := w.publisher.Publish(ctx, envelope); err != nil {
				w.logger.WarnContext(ctx, "event delivery failed",
					"product_id", envelope.Key,
					"event_id", envelope.Event.ID,
					"error", err,
				)
			}
		}
	}
}
