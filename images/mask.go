// Package images - Region masks restrict motion scoring to regions of interest.
//
// The mask follows a rectangle approximation of each polygon:
//
//   - no regions: the full frame is scored and no pixel mask exists
//   - one region: the frame is cropped to the polygon's bounding rectangle, no pixel mask
//   - two or more: the crop is the union of all bounding rectangles, and pixels outside
//     every region's bounding rectangle are excluded
//
// Downscaling keeps every Nth pixel of every Nth row of both the crop and the mask.
package images

import (
	"image"

	"github.com/pkg/errors"
)

// ErrEmptyMask is returned when a region configuration leaves no pixel to score.
var ErrEmptyMask = errors.New("region mask excludes every pixel")

// RegionMask is the crop rectangle and exclusion mask derived from a set of regions.
type RegionMask struct {
	// Crop is the rectangle of the source frame that is scored, in source pixels.
	Crop image.Rectangle
	// Size is the size of the crop after downscaling; Excluded has Size.X*Size.Y entries.
	Size image.Point
	// Downscale is the stride applied to the crop, always >= 1.
	Downscale int
	// Excluded is row-major over Size, true meaning "outside every region". Nil
	// when every pixel of the crop is scored.
	Excluded []bool

	included int
}

// BuildRegionMask derives the RegionMask for a set of regions.
//
// Arguments:
//   - regions: Validated regions in source-frame coordinates (clamped or not).
//   - frameSize: Width and height of the source frame.
//   - downscale: Stride factor; values below 1 mean no downscaling.
//
// Returns:
//   - *RegionMask: The crop rectangle and optional exclusion mask.
//   - error: ErrEmptyMask when the regions leave nothing to score.
func BuildRegionMask(regions []Region, frameSize image.Point, downscale int) (*RegionMask, error) {
	frame := image.Rectangle{Max: frameSize}
	downscale = NormalizeDownscale(downscale)

	m := &RegionMask{Downscale: downscale}

	switch len(regions) {
	case 0:
		m.Crop = frame
	case 1:
		m.Crop = regions[0].Bounds().Intersect(frame)
	default:
		m.Crop = UnionBounds(regions).Intersect(frame)
	}
	if m.Crop.Empty() {
		return nil, errors.Wrapf(ErrEmptyMask, "regions do not overlap the %dx%d frame", frameSize.X, frameSize.Y)
	}

	m.Size = StridedSize(m.Crop.Size(), downscale)
	m.included = m.Size.X * m.Size.Y

	if len(regions) < 2 {
		return m, nil
	}

	m.Excluded = make([]bool, m.Size.X*m.Size.Y)
	m.included = 0
	for sy := 0; sy < m.Size.Y; sy++ {
		y := m.Crop.Min.Y + sy*downscale
		for sx := 0; sx < m.Size.X; sx++ {
			pt := image.Pt(m.Crop.Min.X+sx*downscale, y)
			inside := false
			for _, r := range regions {
				if pt.In(r.Bounds()) {
					inside = true
					break
				}
			}
			m.Excluded[sy*m.Size.X+sx] = !inside
			if inside {
				m.included++
			}
		}
	}
	if m.included == 0 {
		return nil, errors.Wrap(ErrEmptyMask, "no pixel falls inside a region after downscaling")
	}
	return m, nil
}

// HasMask reports whether individual pixels are excluded.
func (m *RegionMask) HasMask() bool {
	return m.Excluded != nil
}

// Area is the number of pixels that contribute to the score.
func (m *RegionMask) Area() int {
	return m.included
}

// MeanScore averages an 8-bit single channel motion mask over the included pixels.
//
// Arguments:
//   - data: Row-major pixels of a Size.X x Size.Y mask.
//
// Returns:
//   - float64: Sum of included pixel values divided by the number of included pixels.
//   - error: ErrEmptyMask when nothing is included, or a size mismatch.
func (m *RegionMask) MeanScore(data []uint8) (float64, error) {
	if len(data) != m.Size.X*m.Size.Y {
		return 0, errors.Errorf("mask has %d pixels, expected %dx%d", len(data), m.Size.X, m.Size.Y)
	}
	if m.included == 0 {
		return 0, ErrEmptyMask
	}
	var sum uint64
	if m.Excluded == nil {
		for _, v := range data {
			sum += uint64(v)
		}
	} else {
		for i, v := range data {
			if !m.Excluded[i] {
				sum += uint64(v)
			}
		}
	}
	return float64(sum) / float64(m.included), nil
}

// ApplyExclusion zeroes every excluded pixel of a Size.X x Size.Y mask in place.
func (m *RegionMask) ApplyExclusion(data []uint8) {
	if m.Excluded == nil || len(data) != len(m.Excluded) {
		return
	}
	for i, ex := range m.Excluded {
		if ex {
			data[i] = 0
		}
	}
}

// Equal reports whether two masks describe the same crop and exclusions.
func (m *RegionMask) Equal(o *RegionMask) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Crop != o.Crop || m.Size != o.Size || m.Downscale != o.Downscale || m.included != o.included {
		return false
	}
	if (m.Excluded == nil) != (o.Excluded == nil) || len(m.Excluded) != len(o.Excluded) {
		return false
	}
	for i := range m.Excluded {
		if m.Excluded[i] != o.Excluded[i] {
			return false
		}
	}
	return true
}
