package domain

import "time"

// Metadata is the per-product attribute bag. All fields are optional; the
// zero value of a field means "unknown" and merging never clears a known
// field. Named, typed fields (rather than an open map) give compile-time
// guarantees on the attributes the verdict composition relies on.
type Metadata struct {
	Model    string `json:"model,omitempty"`
	Color    string `json:"color,omitempty"`
	Material string `json:"material,omitempty"`
	Price    int    `json:"price,omitempty"`
	Year     int    `json:"year,omitempty"`
	Size     string `json:"size,omitempty"`
	Serial   string `json:"serial,omitempty"`
}

// Merge applies patch on top of m with per-field last-write-wins semantics.
// Zero-valued patch fields leave the existing value untouched.
func (m Metadata) Merge(patch Metadata) Metadata {
	if patch.Model != "" {
		m.Model = patch.Model
	}
	if patch.Color != "" {
		m.Color = patch.Color
	}
	if patch.Material != "" {
		m.Material = patch.Material
	}
	if patch.Price != 0 {
		m.Price = patch.Price
	}
	if patch.Year != 0 {
		m.Year = patch.Year
	}
	if patch.Size != "" {
		m.Size = patch.Size
	}
	if patch.Serial != "" {
		m.Serial = patch.Serial
	}
	return m
}

// IsZero reports whether no field carries a value.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// CodeRecord binds a ProductKey to its security code, metadata, and
// verification history. Exactly one CodeRecord exists per registered key and
// its code never changes after creation.
type CodeRecord struct {
	Key       ProductKey          `json:"productId"`
	Code      SecurityCode        `json:"shortCode"`
	Meta      Metadata            `json:"meta"`
	CreatedAt time.Time           `json:"createdAt"`
	History   []VerificationEvent `json:"history,omitempty"`
}
