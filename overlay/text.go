// Package overlay - Annotations drawn onto frames before they are written.
package overlay

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Corner anchors a text block.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// TextStyle controls how a text block is rendered.
type TextStyle struct {
	Font        gocv.HersheyFont
	Scale       float64
	Thickness   int
	Margin      int
	LineSpacing int
	Color       color.RGBA
	Background  color.RGBA
}

// DefaultTextStyle is white text on a black box.
func DefaultTextStyle() TextStyle {
	return TextStyle{
		Font:        gocv.FontHersheySimplex,
		Scale:       1.0,
		Thickness:   2,
		Margin:      5,
		LineSpacing: 5,
		Color:       color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Background:  color.RGBA{A: 255},
	}
}

// TextOverlay draws lines of text in a corner of the frame on a filled
// background rectangle sized to the text.
type TextOverlay struct {
	corner Corner
	style  TextStyle
}

// NewTextOverlay returns an overlay anchored to corner.
func NewTextOverlay(corner Corner, style TextStyle) *TextOverlay {
	return &TextOverlay{corner: corner, style: style}
}

// Draw renders lines onto frame. Nothing is drawn for no lines.
func (o *TextOverlay) Draw(frame *gocv.Mat, lines []string) error {
	if len(lines) == 0 || frame.Empty() {
		return nil
	}
	sizes := make([]image.Point, len(lines))
	for i, line := range lines {
		sizes[i] = gocv.GetTextSize(line, o.style.Font, o.style.Scale, o.style.Thickness)
	}

	box, origins := layoutText(image.Pt(frame.Cols(), frame.Rows()), sizes, o.corner, o.style)
	if err := gocv.Rectangle(frame, box, o.style.Background, -1); err != nil {
		return errors.Wrap(err, "drawing text background")
	}
	for i, line := range lines {
		if err := gocv.PutText(frame, line, origins[i], o.style.Font, o.style.Scale, o.style.Color, o.style.Thickness); err != nil {
			return errors.Wrapf(err, "drawing text %q", line)
		}
	}
	return nil
}

// layoutText places a block of text lines of the given sizes in a corner.
//
// Arguments:
//   - frame: Frame width and height.
//   - sizes: Rendered size of each line.
//   - corner: Where the block is anchored.
//   - style: Margin and line spacing.
//
// Returns:
//   - image.Rectangle: The background box.
//   - []image.Point: The baseline origin of each line for PutText.
func layoutText(frame image.Point, sizes []image.Point, corner Corner, style TextStyle) (image.Rectangle, []image.Point) {
	width, height := 0, 0
	for i, s := range sizes {
		width = max(width, s.X)
		height += s.Y
		if i > 0 {
			height += style.LineSpacing
		}
	}
	width += 2 * style.Margin
	height += 2 * style.Margin

	var anchor image.Point
	switch corner {
	case TopRight:
		anchor = image.Pt(frame.X-width, 0)
	case BottomLeft:
		anchor = image.Pt(0, frame.Y-height)
	case BottomRight:
		anchor = image.Pt(frame.X-width, frame.Y-height)
	}
	box := image.Rectangle{Min: anchor, Max: anchor.Add(image.Pt(width, height))}

	origins := make([]image.Point, len(sizes))
	y := box.Min.Y + style.Margin
	for i, s := range sizes {
		if i > 0 {
			y += style.LineSpacing
		}
		y += s.Y
		origins[i] = image.Pt(box.Min.X+style.Margin, y)
	}
	return box, origins
}
