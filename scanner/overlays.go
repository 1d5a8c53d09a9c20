package scanner

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/motionscan/config"
	"github.com/nvr-ai/motionscan/images"
	"github.com/nvr-ai/motionscan/overlay"
	"github.com/nvr-ai/motionscan/timecode"
)

// overlays draws the configured annotations onto frames before they are
// buffered or written.
type overlays struct {
	timecode  *overlay.TextOverlay
	metrics   *overlay.TextOverlay
	box       *overlay.BoundingBoxOverlay
	threshold float64
}

func newOverlays(cfg *config.Config, smoothFrames int, size image.Point, mask *images.RegionMask) (*overlays, error) {
	o := &overlays{threshold: cfg.Threshold}

	if cfg.TimeCode || cfg.FrameMetrics {
		style := overlay.DefaultTextStyle()
		style.Scale = cfg.Text.FontScale
		style.Thickness = cfg.Text.Thickness
		style.Margin = cfg.Text.Margin
		fg, err := config.ParseColor(cfg.Text.Color)
		if err != nil {
			return nil, err
		}
		bg, err := config.ParseColor(cfg.Text.BgColor)
		if err != nil {
			return nil, err
		}
		style.Color, style.Background = fg, bg
		if cfg.TimeCode {
			o.timecode = overlay.NewTextOverlay(overlay.TopLeft, style)
		}
		if cfg.FrameMetrics {
			o.metrics = overlay.NewTextOverlay(overlay.TopRight, style)
		}
	}

	if cfg.BoundingBox.Enabled {
		c, err := config.ParseColor(cfg.BoundingBox.Color)
		if err != nil {
			return nil, err
		}
		thickness := int(math.Round(cfg.BoundingBox.Thickness * float64(max(size.X, size.Y))))
		o.box = overlay.NewBoundingBoxOverlay(overlay.BoxOptions{
			SmoothFrames: smoothFrames,
			MinSize:      cfg.BoundingBox.MinSize,
			Color:        c,
			Thickness:    max(thickness, 1),
		}, size, mask.Crop, mask.Downscale)
	}
	return o, nil
}

func (o *overlays) draw(frame *gocv.Mat, pos timecode.FrameTimecode, score float64, mask gocv.Mat) error {
	if o.box != nil {
		if err := o.box.Draw(frame, mask); err != nil {
			return err
		}
	}
	if o.timecode != nil {
		if err := o.timecode.Draw(frame, []string{pos.String()}); err != nil {
			return err
		}
	}
	if o.metrics != nil {
		return o.metrics.Draw(frame, []string{
			fmt.Sprintf("Frame: %d", pos.Frame()),
			fmt.Sprintf("Score: %.3f", score),
			fmt.Sprintf("Threshold: %.3f", o.threshold),
		})
	}
	return nil
}

// clear resets bounding box smoothing between events.
func (o *overlays) clear() {
	if o.box != nil {
		o.box.Clear()
	}
}
