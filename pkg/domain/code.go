package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeAlphabet is the unambiguous character set for security codes. Visually
// confusable characters (0/O, 1/I/L) are excluded so codes survive being read
// off a physical tag.
const CodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// CodePrefix is the fixed marker every security code starts with.
const CodePrefix = "VS"

// DefaultCodeLength is the total length of generated codes (prefix included).
const DefaultCodeLength = 6

// SecurityCode is the short human-readable code bound to a ProductKey, e.g.
// "VSAB12". Stored upper-case; comparisons are case-insensitive.
type SecurityCode string

// GenerateSecurityCode produces CodePrefix plus length-2 characters drawn
// uniformly from CodeAlphabet using crypto/rand. Codes are security tokens,
// not display labels, so math/rand is not acceptable here.
//
// Uniqueness is NOT guaranteed; the registry enforces it via
// retry-with-rejection against the stored code set.
func GenerateSecurityCode(length int) (SecurityCode, error) {
	if length < len(CodePrefix)+1 {
		length = len(CodePrefix) + 1
	}
	body := make([]byte, length-len(CodePrefix))
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := range body {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate security code: %w", err)
		}
		body[i] = CodeAlphabet[n.Int64()]
	}
	return SecurityCode(CodePrefix + string(body)), nil
}

// NormalizeCandidateCode trims surrounding whitespace and upper-cases a
// user-submitted code so " vsab12 " compares equal to "VSAB12".
func NormalizeCandidateCode(candidate string) string {
	return strings.ToUpper(strings.TrimSpace(candidate))
}

// Matches reports whether a user-submitted candidate equals this code,
// ignoring case and surrounding whitespace. An empty stored code never
// matches.
func (c SecurityCode) Matches(candidate string) bool {
	if c == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(c)), strings.TrimSpace(candidate))
}

func (c SecurityCode) String() string { return string(c) }
