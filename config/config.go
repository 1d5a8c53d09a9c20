// Package config - Typed scan configuration loaded from YAML and overridden by CLI flags.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every scan option. Timecode valued options are kept as the
// strings the user wrote and converted to frames by Resolve once the source
// framerate is known.
type Config struct {
	Input      []string `yaml:"input,omitempty"`
	OutputDir  string   `yaml:"output-dir"`
	Output     string   `yaml:"output"`
	OutputMode string   `yaml:"output-mode"`
	// Codec is the FourCC used for OpenCV written files.
	Codec            string `yaml:"opencv-codec"`
	FFmpegInputArgs  string `yaml:"ffmpeg-input-args"`
	FFmpegOutputArgs string `yaml:"ffmpeg-output-args"`
	MaskOutput       string `yaml:"mask-output"`

	BGSubtractor      string  `yaml:"bg-subtractor"`
	Threshold         float64 `yaml:"threshold"`
	MaxThreshold      float64 `yaml:"max-threshold"`
	KernelSize        int     `yaml:"kernel-size"`
	VarianceThreshold float64 `yaml:"variance-threshold"`
	LearningRate      float64 `yaml:"learning-rate"`
	DetectShadows     bool    `yaml:"detect-shadows"`
	Downscale         int     `yaml:"downscale-factor"`
	FrameSkip         int     `yaml:"frame-skip"`

	MinEventLength  string `yaml:"min-event-length"`
	TimeBeforeEvent string `yaml:"time-before-event"`
	TimePostEvent   string `yaml:"time-post-event"`
	StartTime       string `yaml:"start-time"`
	EndTime         string `yaml:"end-time"`
	Duration        string `yaml:"duration"`

	// Regions are polygons given inline as [[x, y], [x, y], ...].
	Regions    [][][]int `yaml:"regions,omitempty"`
	LoadRegion []string  `yaml:"load-region,omitempty"`
	SaveRegion string    `yaml:"save-region"`

	TimeCode     bool              `yaml:"time-code"`
	FrameMetrics bool              `yaml:"frame-metrics"`
	Text         TextConfig        `yaml:"text"`
	BoundingBox  BoundingBoxConfig `yaml:"bounding-box"`

	Thumbnails string          `yaml:"thumbnails"`
	Thumbnail  ThumbnailConfig `yaml:"thumbnail"`

	MQTT MQTTConfig `yaml:"mqtt"`

	ProgressInterval time.Duration `yaml:"progress-interval"`
}

// TextConfig styles the timecode and metrics overlays.
type TextConfig struct {
	FontScale float64 `yaml:"font-scale"`
	Thickness int     `yaml:"font-thickness"`
	Margin    int     `yaml:"margin"`
	Color     string  `yaml:"color"`
	BgColor   string  `yaml:"bg-color"`
}

// BoundingBoxConfig configures the motion bounding box overlay.
type BoundingBoxConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SmoothTime string  `yaml:"smooth-time"`
	MinSize    float64 `yaml:"min-size"`
	Color      string  `yaml:"color"`
	// Thickness is a fraction of the frame's larger side.
	Thickness float64 `yaml:"thickness"`
}

// ThumbnailConfig configures per event thumbnails.
type ThumbnailConfig struct {
	Format   string `yaml:"format"`
	MaxWidth int    `yaml:"max-width"`
	Quality  int    `yaml:"quality"`
}

// MQTTConfig configures event notifications.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client-id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
	Format   string `yaml:"format"`
}

// Default returns the configuration used when no file or flag sets an option.
func Default() Config {
	return Config{
		OutputMode:       "per-event",
		Codec:            "XVID",
		FFmpegInputArgs:  "-v error",
		FFmpegOutputArgs: "-c:v libx264 -preset fast -crf 21 -pix_fmt yuv420p",
		BGSubtractor:     "mog2",
		Threshold:        0.15,
		MaxThreshold:     255,
		KernelSize:       -1,
		LearningRate:     -1,
		MinEventLength:   "0.1s",
		TimeBeforeEvent:  "1.5s",
		TimePostEvent:    "2.0s",
		Text: TextConfig{
			FontScale: 1.0,
			Thickness: 2,
			Margin:    5,
			Color:     "#FFFFFF",
			BgColor:   "#000000",
		},
		BoundingBox: BoundingBoxConfig{
			SmoothTime: "0.1s",
			MinSize:    0.032,
			Color:      "#FF0000",
			Thickness:  0.0032,
		},
		Thumbnail: ThumbnailConfig{
			Format:  "jpeg",
			Quality: 95,
		},
		MQTT: MQTTConfig{
			Topic:    "motionscan/events",
			ClientID: "motionscan",
			QoS:      1,
			Format:   "json",
		},
		ProgressInterval: 5 * time.Second,
	}
}

// Load reads a YAML file over the defaults. Options missing from the file keep
// their default value.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - *Config: The merged configuration, not yet validated.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}
