// Package common - Geometry shared by the overlays and the scanner.
package common

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// BoundingBox is an axis aligned box with float coordinates. X2 and Y2 are
// exclusive, matching image.Rectangle.
type BoundingBox struct {
	X1, Y1, X2, Y2 float32
}

// FromRect converts an image.Rectangle.
func FromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{
		X1: float32(r.Min.X),
		Y1: float32(r.Min.Y),
		X2: float32(r.Max.X),
		Y2: float32(r.Max.Y),
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.1f, %.1f), (%.1f, %.1f)", b.X1, b.Y1, b.X2, b.Y2)
}

// Width of the box.
func (b BoundingBox) Width() float32 { return b.X2 - b.X1 }

// Height of the box.
func (b BoundingBox) Height() float32 { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// ToRect rounds the box to the nearest integer rectangle.
//
// Returns:
// - An image.Rectangle with canonicalized coordinates.
//
// @example
// box := BoundingBox{X1: 100.4, Y1: 100.6, X2: 200.5, Y2: 300.2}
// rect := box.ToRect() // (100,101)-(201,300)
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(math32.Round(b.X1)), int(math32.Round(b.Y1)), int(math32.Round(b.X2)), int(math32.Round(b.Y2))).Canon()
}

// Pad grows the box symmetrically so that neither side is shorter than minSide.
//
// Arguments:
// - minSide: The minimum width and height.
//
// Returns:
// - The padded box. Sides already long enough are unchanged.
func (b BoundingBox) Pad(minSide float32) BoundingBox {
	if w := b.Width(); w < minSide {
		d := (minSide - w) / 2
		b.X1 -= d
		b.X2 += d
	}
	if h := b.Height(); h < minSide {
		d := (minSide - h) / 2
		b.Y1 -= d
		b.Y2 += d
	}
	return b
}

// Scale multiplies every coordinate by f.
func (b BoundingBox) Scale(f float32) BoundingBox {
	return BoundingBox{X1: b.X1 * f, Y1: b.Y1 * f, X2: b.X2 * f, Y2: b.Y2 * f}
}

// Translate shifts the box by (dx, dy).
func (b BoundingBox) Translate(dx, dy float32) BoundingBox {
	return BoundingBox{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// Clamp limits the box to r.
func (b BoundingBox) Clamp(r image.Rectangle) BoundingBox {
	lo := FromRect(r)
	return BoundingBox{
		X1: math32.Max(b.X1, lo.X1),
		Y1: math32.Max(b.Y1, lo.Y1),
		X2: math32.Min(b.X2, lo.X2),
		Y2: math32.Min(b.Y2, lo.Y2),
	}
}

// Average returns the coordinate-wise mean of boxes.
//
// Arguments:
// - boxes: The boxes to average.
//
// Returns:
// - The mean box, and false when boxes is empty.
func Average(boxes []BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}
	var sum BoundingBox
	for _, b := range boxes {
		sum.X1 += b.X1
		sum.Y1 += b.Y1
		sum.X2 += b.X2
		sum.Y2 += b.Y2
	}
	n := float32(len(boxes))
	return BoundingBox{X1: sum.X1 / n, Y1: sum.Y1 / n, X2: sum.X2 / n, Y2: sum.Y2 / n}, true
}
