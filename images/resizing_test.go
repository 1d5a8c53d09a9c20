package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	return img
}

func TestResizeToWidth(t *testing.T) {
	tests := []struct {
		name     string
		maxWidth int
		wantW    int
		wantH    int
	}{
		{name: "disabled", maxWidth: 0, wantW: 200, wantH: 100},
		{name: "already narrow", maxWidth: 400, wantW: 200, wantH: 100},
		{name: "halved", maxWidth: 100, wantW: 100, wantH: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResizeToWidth(getTestImage(200, 100), tt.maxWidth)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestEncodeImage(t *testing.T) {
	img := getTestImage(40, 30)

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EncodeImage(&buf, img, FormatJPEG, 80))
		decoded, err := jpeg.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
	})

	t.Run("png", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EncodeImage(&buf, img, FormatPNG, 0))
		decoded, err := png.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
	})

	t.Run("webp", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EncodeImage(&buf, img, FormatWebP, 0))
		decoded, err := webp.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, EncodeImage(&bytes.Buffer{}, img, ImageFormat("gif"), 0))
	})
}

func TestParseImageFormat(t *testing.T) {
	for in, want := range map[string]ImageFormat{"jpg": FormatJPEG, "JPEG": FormatJPEG, ".png": FormatPNG, "webp": FormatWebP} {
		got, err := ParseImageFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseImageFormat("bmp")
	assert.Error(t, err)
	assert.Equal(t, "jpg", FormatJPEG.Extension())
	assert.Equal(t, "webp", FormatWebP.Extension())
}
