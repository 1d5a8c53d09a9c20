// Package images - Names for the frame sizes surveillance cameras commonly record at.
package images

import (
	"fmt"
	"image"
	"math"
)

// Resolution is a named frame size.
type Resolution struct {
	Name   string
	Width  int
	Height int
}

// MegaPixels is Width*Height in millions, rounded to two decimals (2.07 for 1080p).
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return math.Round(float64(r.Width*r.Height)/1e4) / 100
}

// String returns e.g. "Full HD 1080p (1920x1080, 2.07MP)".
func (r Resolution) String() string {
	if r.Name == "" {
		return fmt.Sprintf("%dx%d (%.2fMP)", r.Width, r.Height, r.MegaPixels())
	}
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

var resolutions = []Resolution{
	{"nHD", 640, 360},
	{"VGA", 640, 480},
	{"D1", 704, 576},
	{"FWVGA", 854, 480},
	{"qHD 540p", 960, 540},
	{"HD 720p", 1280, 720},
	{"1MP (5:4)", 1280, 1024},
	{"WXGA", 1366, 768},
	{"HD+", 1600, 900},
	{"2MP (4:3)", 1600, 1200},
	{"Full HD 1080p", 1920, 1080},
	{"3MP (4:3)", 2048, 1536},
	{"QHD 1440p", 2560, 1440},
	{"4MP (16:9)", 2688, 1520},
	{"6MP (3:2)", 3072, 2048},
	{"QHD+", 3200, 1800},
	{"4K UHD", 3840, 2160},
	{"12MP (4:3)", 4000, 3000},
	{"5K", 5120, 2880},
	{"8K UHD", 7680, 4320},
}

// LookupResolution returns the named resolution with exactly size.
func LookupResolution(size image.Point) (Resolution, bool) {
	for _, r := range resolutions {
		if r.Width == size.X && r.Height == size.Y {
			return r, true
		}
	}
	return Resolution{}, false
}

// DescribeResolution names size if it is a common camera resolution and
// otherwise just prints its dimensions.
func DescribeResolution(size image.Point) string {
	if r, ok := LookupResolution(size); ok {
		return r.String()
	}
	return Resolution{Width: size.X, Height: size.Y}.String()
}
