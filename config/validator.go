package config

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/motionscan/images"
	"github.com/nvr-ai/motionscan/output"
	"github.com/nvr-ai/motionscan/subtractor"
	"github.com/nvr-ai/motionscan/timecode"
)

// FieldError is one invalid option.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

// ValidationErrors collects every invalid option found by a validation pass.
type ValidationErrors []*FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Fields lists the names of the invalid options.
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Field
	}
	return out
}

func (v *ValidationErrors) add(field string, value any, format string, args ...any) {
	*v = append(*v, &FieldError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)})
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Validate checks every option that can be checked without opening the input.
//
// Returns:
//   - error: nil, or ValidationErrors listing every problem found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if len(c.Input) == 0 {
		errs.add("input", c.Input, "at least one input video is required")
	}

	mode, err := output.ParseMode(c.OutputMode)
	if err != nil {
		errs.add("output-mode", c.OutputMode, "must be one of %s", strings.Join(output.ModeNames(), ", "))
	}
	if mode == output.ModeConcatenated && c.Output == "" {
		errs.add("output", c.Output, "required when output-mode is %s", output.ModeConcatenated)
	}
	if mode == output.ModePerEvent || mode == output.ModeConcatenated || c.MaskOutput != "" {
		if len(c.Codec) != 4 {
			errs.add("opencv-codec", c.Codec, "must be a four character code")
		}
	}

	kind, err := subtractor.ParseKind(c.BGSubtractor)
	if err != nil {
		errs.add("bg-subtractor", c.BGSubtractor, "unknown background subtractor")
	} else if (kind == subtractor.KindKNN || kind == subtractor.KindMOG2CUDA) && c.LearningRate != subtractor.AutoLearningRate {
		errs.add("learning-rate", c.LearningRate, "%s only supports -1 (auto); use bg-subtractor %s or %s for a fixed rate",
			kind, subtractor.KindMOG2, subtractor.KindRunningAverage)
	}

	if c.Threshold < 0 {
		errs.add("threshold", c.Threshold, "must be >= 0")
	}
	if c.MaxThreshold != 0 && c.MaxThreshold <= c.Threshold {
		errs.add("max-threshold", c.MaxThreshold, "must be greater than threshold (%g)", c.Threshold)
	}
	if c.KernelSize != subtractor.AutoKernelSize && c.KernelSize != 0 && (c.KernelSize < 3 || c.KernelSize%2 == 0) {
		errs.add("kernel-size", c.KernelSize, "must be -1 (auto), 0 (off) or an odd number >= 3")
	}
	if c.LearningRate != subtractor.AutoLearningRate && (c.LearningRate < 0 || c.LearningRate > 1) {
		errs.add("learning-rate", c.LearningRate, "must be -1 (auto) or in [0, 1]")
	}
	if c.VarianceThreshold < 0 {
		errs.add("variance-threshold", c.VarianceThreshold, "must be >= 0")
	}
	if c.Downscale < 0 {
		errs.add("downscale-factor", c.Downscale, "must be >= 0")
	}
	if c.FrameSkip < 0 {
		errs.add("frame-skip", c.FrameSkip, "must be >= 0")
	}

	timecodes := []struct {
		field, value string
		optional     bool
	}{
		{field: "min-event-length", value: c.MinEventLength},
		{field: "time-before-event", value: c.TimeBeforeEvent},
		{field: "time-post-event", value: c.TimePostEvent},
		{field: "bounding-box.smooth-time", value: c.BoundingBox.SmoothTime},
		{field: "start-time", value: c.StartTime, optional: true},
		{field: "end-time", value: c.EndTime, optional: true},
		{field: "duration", value: c.Duration, optional: true},
	}
	for _, tc := range timecodes {
		if tc.optional && tc.value == "" {
			continue
		}
		if err := timecode.Validate(tc.value); err != nil {
			errs.add(tc.field, tc.value, "not a timecode (frames, seconds with an s suffix, or HH:MM:SS[.mmm])")
		}
	}

	for i, r := range c.Regions {
		if _, err := regionFromPoints(r); err != nil {
			errs.add(fmt.Sprintf("regions[%d]", i), r, "%v", errors.Cause(err))
		}
	}

	if c.BoundingBox.MinSize < 0 || c.BoundingBox.MinSize > 1 {
		errs.add("bounding-box.min-size", c.BoundingBox.MinSize, "must be a fraction of the frame in [0, 1]")
	}
	if c.BoundingBox.Thickness < 0 || c.BoundingBox.Thickness > 1 {
		errs.add("bounding-box.thickness", c.BoundingBox.Thickness, "must be a fraction of the frame in [0, 1]")
	}
	colors := [][2]string{
		{"bounding-box.color", c.BoundingBox.Color},
		{"text.color", c.Text.Color},
		{"text.bg-color", c.Text.BgColor},
	}
	for _, fc := range colors {
		if _, err := ParseColor(fc[1]); err != nil {
			errs.add(fc[0], fc[1], "must be #RRGGBB or R,G,B")
		}
	}

	switch c.Thumbnails {
	case "", "highscore":
	default:
		errs.add("thumbnails", c.Thumbnails, "must be empty or highscore")
	}
	if _, err := images.ParseImageFormat(c.Thumbnail.Format); err != nil {
		errs.add("thumbnail.format", c.Thumbnail.Format, "must be jpeg, png or webp")
	}
	if c.Thumbnail.MaxWidth < 0 {
		errs.add("thumbnail.max-width", c.Thumbnail.MaxWidth, "must be >= 0")
	}
	if c.Thumbnail.Quality < 0 || c.Thumbnail.Quality > 100 {
		errs.add("thumbnail.quality", c.Thumbnail.Quality, "must be in [0, 100]")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs.add("mqtt.broker", c.MQTT.Broker, "required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			errs.add("mqtt.topic", c.MQTT.Topic, "required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			errs.add("mqtt.qos", c.MQTT.QoS, "must be 0, 1 or 2")
		}
		switch c.MQTT.Format {
		case "json", "msgpack":
		default:
			errs.add("mqtt.format", c.MQTT.Format, "must be json or msgpack")
		}
	}

	if c.ProgressInterval < 0 {
		errs.add("progress-interval", c.ProgressInterval, "must be >= 0")
	}

	return errs.err()
}

// SubtractorParams maps the options onto background subtractor parameters.
func (c *Config) SubtractorParams() subtractor.Params {
	return subtractor.Params{
		KernelSize:        c.KernelSize,
		VarianceThreshold: c.VarianceThreshold,
		LearningRate:      c.LearningRate,
		DetectShadows:     c.DetectShadows,
		History:           subtractor.DefaultHistory,
	}
}

// LoadRegions returns the inline regions followed by those of every region file.
func (c *Config) LoadRegions() ([]images.Region, error) {
	var regions []images.Region
	for i, points := range c.Regions {
		r, err := regionFromPoints(points)
		if err != nil {
			return nil, errors.Wrapf(err, "regions[%d]", i)
		}
		regions = append(regions, r)
	}
	for _, path := range c.LoadRegion {
		loaded, err := images.LoadRegions(path)
		if err != nil {
			return nil, err
		}
		regions = append(regions, loaded...)
	}
	return regions, nil
}

// SetRegions stores regions inline, replacing the existing inline regions.
func (c *Config) SetRegions(regions []images.Region) {
	c.Regions = make([][][]int, len(regions))
	for i, r := range regions {
		points := make([][]int, len(r))
		for j, p := range r {
			points[j] = []int{p.X, p.Y}
		}
		c.Regions[i] = points
	}
}

func regionFromPoints(points [][]int) (images.Region, error) {
	out := make([]image.Point, 0, len(points))
	for i, p := range points {
		if len(p) != 2 {
			return nil, errors.Wrapf(images.ErrInvalidRegion, "point %d must be [x, y], got %v", i, p)
		}
		if p[0] < 0 || p[1] < 0 {
			return nil, errors.Wrapf(images.ErrInvalidRegion, "point %d has a negative coordinate", i)
		}
		out = append(out, image.Pt(p[0], p[1]))
	}
	return images.NewRegion(out)
}

// ParseColor accepts "#RRGGBB", "RRGGBB", "0xRRGGBB" or "R,G,B".
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return color.RGBA{}, errors.Errorf("color %q: expected R,G,B", s)
		}
		var rgb [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.RGBA{}, errors.Wrapf(err, "color %q", s)
			}
			rgb[i] = uint8(v)
		}
		return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	if len(hex) != 6 {
		return color.RGBA{}, errors.Errorf("color %q: expected 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
