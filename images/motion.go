// Package images - This file turns raw frames into a scalar motion score.
//
// The MotionScorer runs the per-frame scoring pipeline:
//
// ┌──────────────┐
// │ Input Frame  │
// └──────┬───────┘
// ┌────────────────────────────────────┐
// │ Crop to RegionMask.Crop            │
// └──────┬─────────────────────────────┘
// ┌────────────────────────────────────┐
// │ Downscale (stride every Nth pixel) │
// └──────┬─────────────────────────────┘
// ┌────────────────────────────┐
// │ Background Subtraction     │
// └──────┬─────────────────────┘
// ┌────────────────────────────────────┐
// │ Mean over included mask pixels     │
// └────────────────────────────────────┘
//
// Usage:
//
//	scorer, err := images.NewMotionScorer(sub, regions, frameSize, 2)
//	for {
//	    result, err := scorer.Update(frame)
//	    use(result.Score)
//	    result.Close()
//	}
package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// BackgroundSubtractor produces a single channel 8-bit foreground mask for each frame.
type BackgroundSubtractor interface {
	Apply(src gocv.Mat, dst *gocv.Mat) error
}

// MotionScore is the output of one MotionScorer.Update call.
type MotionScore struct {
	// Mask is the raw subtractor output over the cropped, downscaled frame.
	Mask gocv.Mat
	// Masked is Mask with every excluded pixel set to zero.
	Masked gocv.Mat
	// Score is the mean of Mask over included pixels.
	Score float64
}

// Close releases both masks.
func (s *MotionScore) Close() {
	s.Mask.Close()
	s.Masked.Close()
}

// MotionScorer combines a RegionMask with a background subtractor.
//
// It is stateful through the subtractor's background model and must see
// frames in order. Not safe for concurrent use.
type MotionScorer struct {
	subtractor BackgroundSubtractor
	frameSize  image.Point
	mask       *RegionMask
}

// NewMotionScorer builds the region mask and returns a scorer for frames of frameSize.
//
// Arguments:
//   - subtractor: The background subtraction backend.
//   - regions: Regions of interest; empty scores the whole frame.
//   - frameSize: Source frame width and height.
//   - downscale: Stride factor applied after cropping.
//
// Returns:
//   - *MotionScorer: The scorer.
//   - error: ErrEmptyMask if the regions leave nothing to score.
func NewMotionScorer(subtractor BackgroundSubtractor, regions []Region, frameSize image.Point, downscale int) (*MotionScorer, error) {
	if subtractor == nil {
		return nil, errors.New("background subtractor is nil")
	}
	m := &MotionScorer{subtractor: subtractor, frameSize: frameSize}
	if err := m.SetRegions(regions, downscale); err != nil {
		return nil, err
	}
	return m, nil
}

// SetRegions rebuilds the region mask.
func (m *MotionScorer) SetRegions(regions []Region, downscale int) error {
	mask, err := BuildRegionMask(regions, m.frameSize, downscale)
	if err != nil {
		return err
	}
	m.mask = mask
	return nil
}

// Mask returns the current region mask.
func (m *MotionScorer) Mask() *RegionMask {
	return m.mask
}

// Update scores one frame. The caller must Close the returned MotionScore.
//
// Arguments:
//   - frame: A full source frame of the configured size.
//
// Returns:
//   - MotionScore: Raw and masked foreground masks plus the score.
//   - error: An error if the frame has the wrong size or the subtractor fails.
func (m *MotionScorer) Update(frame gocv.Mat) (MotionScore, error) {
	if frame.Empty() {
		return MotionScore{}, errors.New("frame is empty")
	}
	if frame.Cols() != m.frameSize.X || frame.Rows() != m.frameSize.Y {
		return MotionScore{}, errors.Errorf("frame is %dx%d, expected %dx%d",
			frame.Cols(), frame.Rows(), m.frameSize.X, m.frameSize.Y)
	}

	view := frame.Region(m.mask.Crop)
	defer view.Close()

	scaled, err := Subsample(view, m.mask.Downscale)
	if err != nil {
		return MotionScore{}, err
	}
	defer scaled.Close()

	raw := gocv.NewMat()
	if err := m.subtractor.Apply(scaled, &raw); err != nil {
		raw.Close()
		return MotionScore{}, errors.Wrap(err, "background subtraction failed")
	}
	if raw.Type() != gocv.MatTypeCV8UC1 || raw.Cols() != m.mask.Size.X || raw.Rows() != m.mask.Size.Y {
		raw.Close()
		return MotionScore{}, errors.Errorf("subtractor returned a %dx%d mask of type %v, expected %dx%d CV8UC1",
			raw.Cols(), raw.Rows(), raw.Type(), m.mask.Size.X, m.mask.Size.Y)
	}

	data, err := raw.DataPtrUint8()
	if err != nil {
		raw.Close()
		return MotionScore{}, errors.Wrap(err, "reading motion mask")
	}
	score, err := m.mask.MeanScore(data)
	if err != nil {
		raw.Close()
		return MotionScore{}, err
	}

	masked := raw.Clone()
	if m.mask.HasMask() {
		if md, err := masked.DataPtrUint8(); err == nil {
			m.mask.ApplyExclusion(md)
		}
	}

	return MotionScore{Mask: raw, Masked: masked, Score: score}, nil
}
