package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMegaPixels(t *testing.T) {
	tests := []struct {
		res  Resolution
		want float64
	}{
		{Resolution{Width: 1920, Height: 1080}, 2.07},
		{Resolution{Width: 3840, Height: 2160}, 8.29},
		{Resolution{Width: 640, Height: 360}, 0.23},
		{Resolution{Width: 0, Height: 1080}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.res.MegaPixels(), "%dx%d", tt.res.Width, tt.res.Height)
	}
}

func TestLookupResolution(t *testing.T) {
	r, ok := LookupResolution(image.Pt(1280, 720))
	assert.True(t, ok)
	assert.Equal(t, "HD 720p", r.Name)

	_, ok = LookupResolution(image.Pt(1281, 720))
	assert.False(t, ok)
}

func TestDescribeResolution(t *testing.T) {
	assert.Equal(t, "Full HD 1080p (1920x1080, 2.07MP)", DescribeResolution(image.Pt(1920, 1080)))
	assert.Equal(t, "1000x500 (0.50MP)", DescribeResolution(image.Pt(1000, 500)))
}
