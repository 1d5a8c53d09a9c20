package overlay

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motionscan/common"
)

// BoxOptions configures the motion bounding box.
type BoxOptions struct {
	// SmoothFrames is the number of processed frames averaged, at least 1.
	SmoothFrames int
	// MinSize is the minimum box side as a fraction of the frame's smaller side.
	MinSize float64
	Color   color.RGBA
	// Thickness of the box outline in pixels.
	Thickness int
}

// DefaultBoxOptions draws a red box averaged over 3 frames.
func DefaultBoxOptions() BoxOptions {
	return BoxOptions{
		SmoothFrames: 3,
		MinSize:      0.032,
		Color:        color.RGBA{R: 255, A: 255},
		Thickness:    2,
	}
}

// BoundingBoxOverlay draws the bounding box of the motion mask, smoothed over
// the last few frames, onto the full source frame.
//
// Masks are in cropped, downscaled coordinates; boxes are scaled by the
// downscale factor and shifted by the crop offset before drawing.
type BoundingBoxOverlay struct {
	opts      BoxOptions
	frame     image.Rectangle
	downscale int
	offset    image.Point
	minSide   float32
	window    []common.BoundingBox
}

// NewBoundingBoxOverlay returns an overlay for frames of frameSize.
//
// Arguments:
//   - opts: Drawing and smoothing options.
//   - frameSize: Source frame size.
//   - crop: The rectangle of the source frame the masks cover.
//   - downscale: The stride the masks were subsampled with.
//
// Returns:
//   - *BoundingBoxOverlay: The overlay.
func NewBoundingBoxOverlay(opts BoxOptions, frameSize image.Point, crop image.Rectangle, downscale int) *BoundingBoxOverlay {
	opts.SmoothFrames = max(opts.SmoothFrames, 1)
	if opts.Thickness < 1 {
		opts.Thickness = 1
	}
	return &BoundingBoxOverlay{
		opts:      opts,
		frame:     image.Rectangle{Max: frameSize},
		downscale: max(downscale, 1),
		offset:    crop.Min,
		minSide:   float32(opts.MinSize * float64(min(frameSize.X, frameSize.Y))),
		window:    make([]common.BoundingBox, 0, opts.SmoothFrames),
	}
}

// Update adds the bounds of a motion mask to the smoothing window and returns
// the smoothed box in source frame coordinates. Masks without motion take a
// slot in the window but are left out of the average, so the box fades out
// once the whole window has seen no motion.
//
// Arguments:
//   - mask: Row-major 8-bit mask pixels.
//   - size: Mask width and height.
//
// Returns:
//   - image.Rectangle: The box to draw.
//   - bool: False when no frame in the window had motion.
func (o *BoundingBoxOverlay) Update(mask []uint8, size image.Point) (image.Rectangle, bool) {
	if len(o.window) == o.opts.SmoothFrames {
		copy(o.window, o.window[1:])
		o.window = o.window[:len(o.window)-1]
	}
	o.window = append(o.window, common.FromRect(maskBounds(mask, size)))

	moving := make([]common.BoundingBox, 0, len(o.window))
	for _, b := range o.window {
		if !b.Empty() {
			moving = append(moving, b)
		}
	}
	avg, ok := common.Average(moving)
	if !ok {
		return image.Rectangle{}, false
	}
	box := avg.Scale(float32(o.downscale)).
		Translate(float32(o.offset.X), float32(o.offset.Y)).
		Pad(o.minSide).
		Clamp(o.frame)
	return box.ToRect(), true
}

// Draw updates the window with mask and draws the smoothed box onto frame.
func (o *BoundingBoxOverlay) Draw(frame *gocv.Mat, mask gocv.Mat) error {
	if mask.Empty() {
		return nil
	}
	data, err := mask.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "reading motion mask")
	}
	rect, ok := o.Update(data, image.Pt(mask.Cols(), mask.Rows()))
	if !ok {
		return nil
	}
	if err := gocv.Rectangle(frame, rect, o.opts.Color, o.opts.Thickness); err != nil {
		return errors.Wrap(err, "drawing bounding box")
	}
	return nil
}

// Clear forgets the smoothing window. Called when an event ends.
func (o *BoundingBoxOverlay) Clear() {
	o.window = o.window[:0]
}

// maskBounds returns the smallest rectangle containing every non-zero pixel.
func maskBounds(mask []uint8, size image.Point) image.Rectangle {
	if len(mask) < size.X*size.Y {
		return image.Rectangle{}
	}
	minX, minY := size.X, size.Y
	maxX, maxY := -1, -1
	for y := 0; y < size.Y; y++ {
		row := mask[y*size.X : (y+1)*size.X]
		for x, v := range row {
			if v == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
