// Package images - Rectangle geometry shared by region masks and frame cropping.
package images

import "image"

// UnionBounds returns the smallest rectangle enclosing the bounds of every region.
//
// Arguments:
//   - regions: The regions to enclose. May be empty.
//
// Returns:
//   - image.Rectangle: The enclosing rectangle, or the zero rectangle when regions is empty.
func UnionBounds(regions []Region) image.Rectangle {
	var u image.Rectangle
	for i, r := range regions {
		if i == 0 {
			u = r.Bounds()
			continue
		}
		u = u.Union(r.Bounds())
	}
	return u
}

// NormalizeDownscale maps the user facing factor (0 meaning "unchanged") to a stride >= 1.
func NormalizeDownscale(factor int) int {
	if factor < 1 {
		return 1
	}
	return factor
}

// StridedSize returns the size of a width x height grid after keeping every
// factor-th column and row, starting with the first.
func StridedSize(size image.Point, factor int) image.Point {
	factor = NormalizeDownscale(factor)
	return image.Pt(ceilDiv(size.X, factor), ceilDiv(size.Y, factor))
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
