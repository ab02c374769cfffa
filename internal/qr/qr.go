// Package qr renders verification deep links as QR PNGs for product tags.
package qr

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"

	"vsauth/pkg/domain"
)

const defaultSize = 512

// Generator builds QR codes pointing customers at the public verification
// page for a product.
type Generator struct {
	baseURL string
	size    int
}

type Option func(g *Generator)

// WithSize sets the rendered PNG edge length in pixels.
func WithSize(size int) Option {
	return func(g *Generator) { g.size = size }
}

// New creates a Generator deep-linking into baseURL, the public frontend.
func New(baseURL string, opts ...Option) *Generator {
	g := &Generator{baseURL: baseURL, size: defaultSize}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// VerifyURL is the deep link encoded for key: the frontend root with the
// product id as a query parameter.
func (g *Generator) VerifyURL(key domain.ProductKey) string {
	return fmt.Sprintf("%s/?id=%s", g.baseURL, url.QueryEscape(key.String()))
}

// PNG renders the deep link for key as a PNG image.
func (g *Generator) PNG(key domain.ProductKey) ([]byte, error) {
	png, err := qrcode.Encode(g.VerifyURL(key), qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return png, nil
}
