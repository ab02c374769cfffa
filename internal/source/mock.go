package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vsauth/pkg/domain"
)

// MockClient serves deterministic catalog data with a configurable latency to
// mimic real-world calls. Keys absent from Records behave as unknown
// products; setting Unavailable simulates an outage.
type MockClient struct {
	Latency     time.Duration
	Unavailable bool

	mu      sync.RWMutex
	records map[domain.ProductKey]Record
}

func NewMockClient() *MockClient {
	return &MockClient{records: make(map[domain.ProductKey]Record)}
}

// Seed registers a catalog record for key.
func (c *MockClient) Seed(key domain.ProductKey, record Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records == nil {
		c.records = make(map[domain.ProductKey]Record)
	}
	c.records[key] = record
}

func (c *MockClient) FetchProduct(ctx context.Context, key domain.ProductKey) (*Record, error) {
	if c.Latency > 0 {
		timer := time.NewTimer(c.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
	}
	if c.Unavailable {
		return nil, ErrUnavailable
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.records[key]
	if !ok || record.IsEmpty() {
		return nil, ErrNoRecord
	}
	return &record, nil
}
