// Package images - Regions of interest and the plain-text region file format.
//
// A region file holds one polygon per line as a flat list of integers:
//
//	x0 y0 x1 y1 x2 y2 ...
//
// Parentheses, commas, slashes and brackets are read as whitespace so that
// "(10, 20), (30, 40), (50, 60)" and "[10 20] [30 40] [50 60]" both parse.
package images

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidRegion is the cause of every region construction or parse failure.
var ErrInvalidRegion = errors.New("invalid region")

// Region is a closed polygon of at least three points in source-frame pixels.
type Region []image.Point

// NewRegion validates and copies a list of points into a Region.
func NewRegion(points []image.Point) (Region, error) {
	if len(points) < 3 {
		return nil, errors.Wrapf(ErrInvalidRegion, "polygon needs at least 3 points, got %d", len(points))
	}
	r := make(Region, len(points))
	copy(r, points)
	return r, nil
}

// RegionFromInts builds a Region from a flat x0,y0,x1,y1,... list.
func RegionFromInts(coords []int) (Region, error) {
	if len(coords)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidRegion, "odd number of coordinates (%d)", len(coords))
	}
	points := make([]image.Point, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		points = append(points, image.Pt(coords[i], coords[i+1]))
	}
	return NewRegion(points)
}

// Ints flattens the region back to x0,y0,x1,y1,...
func (r Region) Ints() []int {
	out := make([]int, 0, len(r)*2)
	for _, p := range r {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Bounds returns the smallest rectangle containing every vertex. Max is
// exclusive, so a vertex at x=9 yields Max.X == 10.
func (r Region) Bounds() image.Rectangle {
	if len(r) == 0 {
		return image.Rectangle{}
	}
	b := image.Rectangle{Min: r[0], Max: r[0]}
	for _, p := range r[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
	}
	b.Max = b.Max.Add(image.Pt(1, 1))
	return b
}

// Clamp returns a copy with every point moved inside a frame of the given size.
func (r Region) Clamp(size image.Point) Region {
	out := make(Region, len(r))
	for i, p := range r {
		out[i] = image.Pt(clampInt(p.X, 0, size.X-1), clampInt(p.Y, 0, size.Y-1))
	}
	return out
}

// ClampRegions clamps every region to the frame size.
func ClampRegions(regions []Region, size image.Point) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = r.Clamp(size)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

// RegionParseError reports the region file line that could not be parsed.
type RegionParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *RegionParseError) Error() string {
	return fmt.Sprintf("line %d %q: %s", e.Line, e.Text, e.Reason)
}

// Cause lets errors.Cause classify parse failures as ErrInvalidRegion.
func (e *RegionParseError) Cause() error { return ErrInvalidRegion }

var regionSeparators = strings.NewReplacer("(", " ", ")", " ", ",", " ", "/", " ", "[", " ", "]", " ")

// ParseRegion parses a single region line.
func ParseRegion(line string) (Region, error) {
	fields := strings.Fields(regionSeparators.Replace(line))
	coords := make([]int, 0, len(fields))
	for _, f := range fields {
		if !isDigits(f) {
			return nil, errors.Wrapf(ErrInvalidRegion, "token %q is not a non-negative integer", f)
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidRegion, "token %q: %v", f, err)
		}
		coords = append(coords, v)
	}
	return RegionFromInts(coords)
}

// ParseRegions reads a region file. Blank lines are skipped; any other
// malformed line aborts with a *RegionParseError naming it.
func ParseRegions(r io.Reader) ([]Region, error) {
	var regions []Region
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		region, err := ParseRegion(text)
		if err != nil {
			return nil, &RegionParseError{Line: lineNo, Text: text, Reason: err.Error()}
		}
		regions = append(regions, region)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading regions")
	}
	return regions, nil
}

// LoadRegions reads a region file from disk.
func LoadRegions(path string) ([]Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening region file %s", path)
	}
	defer f.Close()

	regions, err := ParseRegions(f)
	if err != nil {
		return nil, errors.Wrapf(err, "region file %s", path)
	}
	return regions, nil
}

// WriteRegions writes regions in the region file format, one per line.
func WriteRegions(w io.Writer, regions []Region) error {
	bw := bufio.NewWriter(w)
	for _, r := range regions {
		ints := r.Ints()
		parts := make([]string, len(ints))
		for i, v := range ints {
			parts[i] = strconv.Itoa(v)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(parts, " ")); err != nil {
			return errors.Wrap(err, "writing region")
		}
	}
	return bw.Flush()
}

// SaveRegions writes regions to a file, replacing it.
func SaveRegions(path string, regions []Region) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating region file %s", path)
	}
	if err := WriteRegions(f, regions); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
