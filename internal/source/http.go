package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"vsauth/pkg/domain"
)

const defaultTimeout = 3 * time.Second

// HTTPClient fetches product records from a catalog HTTP API exposing
// GET {base}/products/{key} with a JSON Record body. A 404 is an
// authoritative "unknown product"; everything else abnormal is
// ErrUnavailable.
type HTTPClient struct {
	base   string
	client *http.Client
}

type HTTPOption func(c *HTTPClient)

func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.client.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = client }
}

func NewHTTPClient(base string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		base:   base,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) FetchProduct(ctx context.Context, key domain.ProductKey) (*Record, error) {
	endpoint := fmt.Sprintf("%s/products/%s", c.base, url.PathEscape(key.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoRecord
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("query catalog: %w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w: %w", ErrUnavailable, err)
	}
	if record.IsEmpty() {
		return nil, ErrNoRecord
	}
	return &record, nil
}
