package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadata_Merge(t *testing.T) {
	t.Run("unset patch fields leave existing values untouched", func(t *testing.T) {
		base := Metadata{Color: "Black"}
		merged := base.Merge(Metadata{Material: "Silk"})
		assert.Equal(t, Metadata{Color: "Black", Material: "Silk"}, merged)
	})

	t.Run("set patch fields win", func(t *testing.T) {
		base := Metadata{Model: "Petit Tote", Price: 1809000}
		merged := base.Merge(Metadata{Price: 2100000})
		assert.Equal(t, "Petit Tote", merged.Model)
		assert.Equal(t, 2100000, merged.Price)
	})

	t.Run("merging the zero patch is a no-op", func(t *testing.T) {
		base := Metadata{Model: "Mini", Color: "Ivory", Year: 2025}
		assert.Equal(t, base, base.Merge(Metadata{}))
	})
}

func TestMetadata_IsZero(t *testing.T) {
	assert.True(t, Metadata{}.IsZero())
	assert.False(t, Metadata{Year: 2025}.IsZero())
}
