package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsauth/pkg/domain"
)

const qrTestKey = "0x" + "8888888888888888888888888888888888888888888888888888888888888888"

func TestVerifyURL(t *testing.T) {
	key, err := domain.ParseProductKey(qrTestKey)
	require.NoError(t, err)

	g := New("https://verify.example.com")
	assert.Equal(t, "https://verify.example.com/?id="+qrTestKey, g.VerifyURL(key))
}

func TestPNG(t *testing.T) {
	key, err := domain.ParseProductKey(qrTestKey)
	require.NoError(t, err)

	data, err := New("https://verify.example.com", WithSize(256)).PNG(key)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}
