package verify

import (
	"strings"

	"vsauth/internal/source"
	"vsauth/pkg/domain"
)

// Product is the enriched view returned alongside a verdict. Only fields the
// system actually knows are present; absent fields marshal away.
type Product struct {
	Key      string `json:"productId"`
	Code     string `json:"vsCode,omitempty"`
	Model    string `json:"model,omitempty"`
	Color    string `json:"color,omitempty"`
	Material string `json:"material,omitempty"`
	Price    int    `json:"price,omitempty"`
	Year     int    `json:"year,omitempty"`
	Size     string `json:"size,omitempty"`
	Serial   string `json:"serial,omitempty"`
}

// Verdict pairs the binary authenticity status with a machine-readable
// reason. Warning flags a non-fatal problem encountered on the way (for the
// admin flow, a failed code registration).
type Verdict struct {
	Status  domain.Verdict `json:"status"`
	Reason  string         `json:"reason"`
	Warning string         `json:"warning,omitempty"`
}

// Result is the engine's terminal output for one verification request.
type Result struct {
	Success bool                       `json:"success"`
	Product Product                    `json:"product"`
	Verdict Verdict                    `json:"verdict"`
	Code    domain.SecurityCode        `json:"vsSecurityCode,omitempty"`
	History []domain.VerificationEvent `json:"history,omitempty"`
}

// buildProduct merges local metadata with an optional catalog record. Local
// fields win; catalog fields only fill gaps. Size and serial fall back to
// derived values when not stored.
func buildProduct(key domain.ProductKey, code domain.SecurityCode, meta domain.Metadata, external *source.Record) Product {
	product := Product{
		Key:      key.String(),
		Code:     code.String(),
		Model:    meta.Model,
		Color:    meta.Color,
		Material: meta.Material,
		Price:    meta.Price,
		Year:     meta.Year,
		Size:     meta.Size,
		Serial:   meta.Serial,
	}
	if external != nil {
		if product.Model == "" {
			product.Model = external.Name
		}
		if product.Color == "" {
			product.Color = external.Color
		}
		if product.Material == "" {
			product.Material = external.Material
		}
		if product.Price == 0 {
			product.Price = external.Price
		}
		if product.Year == 0 {
			product.Year = external.Year
		}
	}
	if product.Size == "" {
		product.Size = deriveSize(product.Model)
	}
	if product.Serial == "" {
		product.Serial = key.Serial()
	}
	return product
}

// deriveSize guesses a size label from the model name. The catalog encodes
// size in the name ("Vérité Sauvage Petit (Black) ..."), not as a field.
func deriveSize(model string) string {
	name := strings.ToLower(model)
	switch {
	case strings.Contains(name, "petit"):
		return "Petit"
	case strings.Contains(name, "mini"):
		return "Mini"
	case strings.Contains(name, "grand"), strings.Contains(name, "large"):
		return "Grand"
	default:
		return ""
	}
}
