package domain

import (
	"regexp"
	"strings"

	vErrors "vsauth/pkg/errors"
)

// ProductKey is the canonical product identifier: "0x" followed by exactly 64
// hex characters, always lower-case.
// Invariant: any key accepted by the system matches this exact shape.
//
// Usage: construct via ParseProductKey at trust boundaries; direct casting
// bypasses validation.
type ProductKey string

var productKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ParseProductKey validates and canonicalizes a raw product identifier.
//
// Errors: returns CodeInvalidIdentifier when the input does not start with
// "0x", is not 66 characters long, or the body is not valid hex. Pure
// function, no I/O.
func ParseProductKey(raw string) (ProductKey, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", vErrors.New(vErrors.CodeInvalidIdentifier, "product id cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") {
		return "", vErrors.New(vErrors.CodeInvalidIdentifier, "product id must start with 0x")
	}
	if len(s) != 66 || !productKeyPattern.MatchString(s) {
		return "", vErrors.New(vErrors.CodeInvalidIdentifier, "product id must be 0x + 64 hex characters")
	}
	return ProductKey(strings.ToLower(s)), nil
}

func (k ProductKey) String() string { return string(k) }

// Serial derives the deterministic fallback serial from the trailing bytes of
// the key, e.g. 0x....abc123 -> "VS-ABC123". Used when no explicit serial is
// stored.
func (k ProductKey) Serial() string {
	hexPart := strings.TrimPrefix(string(k), "0x")
	if len(hexPart) < 6 {
		return ""
	}
	return "VS-" + strings.ToUpper(hexPart[len(hexPart)-6:])
}
