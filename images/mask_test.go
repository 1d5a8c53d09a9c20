package images

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle(x0, y0, x1, y1 int) Region {
	return Region{image.Pt(x0, y0), image.Pt(x1, y0), image.Pt(x1, y1)}
}

func TestBuildRegionMask(t *testing.T) {
	frame := image.Pt(10, 10)

	tests := []struct {
		name      string
		regions   []Region
		downscale int
		crop      image.Rectangle
		size      image.Point
		area      int
		hasMask   bool
	}{
		{
			name:    "no regions scores the full frame",
			crop:    image.Rect(0, 0, 10, 10),
			size:    image.Pt(10, 10),
			area:    100,
			hasMask: false,
		},
		{
			name:    "single region crops to its bounds",
			regions: []Region{triangle(2, 2, 5, 6)},
			crop:    image.Rect(2, 2, 6, 7),
			size:    image.Pt(4, 5),
			area:    20,
			hasMask: false,
		},
		{
			name:    "two regions mask the gap",
			regions: []Region{triangle(0, 0, 3, 3), triangle(6, 6, 9, 9)},
			crop:    image.Rect(0, 0, 10, 10),
			size:    image.Pt(10, 10),
			area:    32,
			hasMask: true,
		},
		{
			name:      "two regions downscaled",
			regions:   []Region{triangle(0, 0, 3, 3), triangle(6, 6, 9, 9)},
			downscale: 2,
			crop:      image.Rect(0, 0, 10, 10),
			size:      image.Pt(5, 5),
			area:      8,
			hasMask:   true,
		},
		{
			name:      "downscale rounds up odd sizes",
			downscale: 3,
			crop:      image.Rect(0, 0, 10, 10),
			size:      image.Pt(4, 4),
			area:      16,
		},
		{
			name:    "region past the frame edge is intersected",
			regions: []Region{triangle(5, 5, 50, 50)},
			crop:    image.Rect(5, 5, 10, 10),
			size:    image.Pt(5, 5),
			area:    25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := BuildRegionMask(tt.regions, frame, tt.downscale)
			require.NoError(t, err)
			assert.Equal(t, tt.crop, m.Crop)
			assert.Equal(t, tt.size, m.Size)
			assert.Equal(t, tt.area, m.Area())
			assert.Equal(t, tt.hasMask, m.HasMask())
			if m.HasMask() {
				assert.Len(t, m.Excluded, tt.size.X*tt.size.Y)
			}
		})
	}
}

func TestBuildRegionMask_Empty(t *testing.T) {
	t.Run("outside the frame", func(t *testing.T) {
		_, err := BuildRegionMask([]Region{triangle(20, 20, 30, 30)}, image.Pt(10, 10), 1)
		assert.Equal(t, ErrEmptyMask, errors.Cause(err))
	})

	t.Run("no sampled pixel inside a region", func(t *testing.T) {
		a := Region{image.Pt(1, 4), image.Pt(1, 4), image.Pt(1, 4)}
		b := Region{image.Pt(4, 1), image.Pt(4, 1), image.Pt(4, 1)}
		_, err := BuildRegionMask([]Region{a, b}, image.Pt(10, 10), 2)
		assert.Equal(t, ErrEmptyMask, errors.Cause(err))
	})
}

func TestBuildRegionMask_Idempotent(t *testing.T) {
	regions := []Region{triangle(0, 0, 40, 30), triangle(60, 50, 99, 99), triangle(20, 70, 30, 90)}

	first, err := BuildRegionMask(regions, image.Pt(100, 100), 3)
	require.NoError(t, err)
	second, err := BuildRegionMask(regions, image.Pt(100, 100), 3)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, maskChecksum(first), maskChecksum(second))
}

func TestRegionMask_MeanScore(t *testing.T) {
	t.Run("no mask averages every pixel", func(t *testing.T) {
		m, err := BuildRegionMask(nil, image.Pt(4, 2), 1)
		require.NoError(t, err)

		score, err := m.MeanScore([]uint8{0, 255, 0, 255, 0, 255, 0, 255})
		require.NoError(t, err)
		assert.InDelta(t, 127.5, score, 1e-9)
	})

	t.Run("excluded pixels are ignored", func(t *testing.T) {
		m, err := BuildRegionMask([]Region{triangle(0, 0, 3, 3), triangle(6, 6, 9, 9)}, image.Pt(10, 10), 1)
		require.NoError(t, err)

		data := make([]uint8, 100)
		for i := range data {
			if m.Excluded[i] {
				data[i] = 10
			} else {
				data[i] = 255
			}
		}
		score, err := m.MeanScore(data)
		require.NoError(t, err)
		assert.InDelta(t, 255.0, score, 1e-9)

		m.ApplyExclusion(data)
		for i, v := range data {
			if m.Excluded[i] {
				assert.Zero(t, v)
			}
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		m, err := BuildRegionMask(nil, image.Pt(4, 4), 1)
		require.NoError(t, err)
		_, err = m.MeanScore(make([]uint8, 3))
		assert.Error(t, err)
	})
}

func TestUnionBounds(t *testing.T) {
	assert.Equal(t, image.Rectangle{}, UnionBounds(nil))
	assert.Equal(t, image.Rect(0, 0, 10, 10), UnionBounds([]Region{triangle(0, 0, 3, 3), triangle(6, 6, 9, 9)}))
}

func TestStridedSize(t *testing.T) {
	assert.Equal(t, image.Pt(10, 10), StridedSize(image.Pt(10, 10), 0))
	assert.Equal(t, image.Pt(5, 4), StridedSize(image.Pt(10, 7), 2))
	assert.Equal(t, image.Pt(1, 1), StridedSize(image.Pt(3, 3), 4))
}
