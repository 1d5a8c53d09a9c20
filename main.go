package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/motionscan/config"
	"github.com/nvr-ai/motionscan/images"
	"github.com/nvr-ai/motionscan/report"
	"github.com/nvr-ai/motionscan/scanner"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// Inputs with other extensions are still attempted; OpenCV decides what it can read.
var supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".m4v", ".wmv", ".webm", ".ts"}

// cliOptions are the flags that do not map onto config.Config.
type cliOptions struct {
	configPath string
	saveConfig string
	csvOnly    bool
	verbose    bool
	quiet      bool
	logFile    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger, closeLog, err := newLogger(stderr, opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer closeLog()

	if err := validateInputs(cfg.Input, logger); err != nil {
		logger.Error("invalid input", "error", err)
		return exitUsage
	}

	s, err := scanner.New(*cfg, scanner.WithLogger(logger))
	if err != nil {
		reportConfigError(logger, err)
		return exitUsage
	}
	if opts.saveConfig != "" {
		if err := cfg.Save(opts.saveConfig); err != nil {
			logger.Error("failed to save configuration", "path", opts.saveConfig, "error", err)
			return exitFailed
		}
		logger.Info("saved configuration", "path", opts.saveConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go reportProgress(logger, s.Progress(), cfg.FrameSkip+1, cfg.ProgressInterval, done)
	res, err := s.Scan(ctx)
	close(done)

	if err != nil {
		if scanner.IsConfigError(err) {
			reportConfigError(logger, err)
			return exitUsage
		}
		logger.Error("scan failed", "error", err)
		logger.Debug("error detail", "trace", fmt.Sprintf("%+v", err))
		return exitFailed
	}

	if err := report.Write(stdout, res.ScanResult, opts.csvOnly); err != nil {
		logger.Error("failed to write results", "error", err)
		return exitFailed
	}
	return exitOK
}

// parseArgs builds the configuration: defaults, then the -config file, then
// every flag given on the command line.
func parseArgs(args []string, stderr io.Writer) (*config.Config, *cliOptions, error) {
	defaults := config.Default()
	opts := &cliOptions{}
	fs := newFlagSet(&defaults, opts, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.configPath == "" {
		return &defaults, opts, checkArgs(fs)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	opts = &cliOptions{}
	fs = newFlagSet(cfg, opts, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cfg, opts, checkArgs(fs)
}

func checkArgs(fs *flag.FlagSet) error {
	if fs.NArg() > 0 {
		return errors.Errorf("unexpected arguments: %s (use -i for each input)", strings.Join(fs.Args(), " "))
	}
	return nil
}

func newFlagSet(cfg *config.Config, opts *cliOptions, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("motionscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: motionscan -i VIDEO [-i VIDEO ...] [options]")
		fmt.Fprintln(stderr, "\nFinds motion events in video files and writes each event to its own file.")
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file; flags override its values")
	fs.StringVar(&opts.saveConfig, "save-config", "", "write the effective configuration to this YAML file")
	fs.BoolVar(&opts.csvOnly, "csv-only", false, "print only the comma-separated event timecodes")
	fs.BoolVar(&opts.verbose, "verbose", false, "log debug messages and error traces")
	fs.BoolVar(&opts.quiet, "quiet", false, "log errors only")
	fs.StringVar(&opts.logFile, "logfile", "", "also write the log to this file")

	fs.Var(&listFlag{target: &cfg.Input}, "i", "input video (repeat to scan several files as one)")
	fs.StringVar(&cfg.OutputDir, "d", cfg.OutputDir, "output directory for event files and thumbnails")
	fs.StringVar(&cfg.Output, "o", cfg.Output, "output file for concatenated mode")
	fs.StringVar(&cfg.OutputMode, "m", cfg.OutputMode, "output mode: scan-only, per-event, concatenated or ffmpeg")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "FourCC for OpenCV written files")
	fs.StringVar(&cfg.MaskOutput, "mo", cfg.MaskOutput, "write the motion mask of every frame to this video")

	fs.StringVar(&cfg.BGSubtractor, "b", cfg.BGSubtractor, "background subtractor: mog2, knn, running-average or mog2-cuda")
	fs.Float64Var(&cfg.Threshold, "t", cfg.Threshold, "motion score threshold")
	fs.Float64Var(&cfg.MaxThreshold, "max-threshold", cfg.MaxThreshold, "scores at or above this are ignored (0 disables)")
	fs.IntVar(&cfg.KernelSize, "k", cfg.KernelSize, "noise filter kernel size: -1 auto, 0 off, or odd >= 3")
	fs.Float64Var(&cfg.LearningRate, "learning-rate", cfg.LearningRate, "background learning rate, -1 for auto")
	fs.IntVar(&cfg.Downscale, "df", cfg.Downscale, "downscale factor applied before scoring")
	fs.IntVar(&cfg.FrameSkip, "fs", cfg.FrameSkip, "frames skipped after every processed frame")

	fs.StringVar(&cfg.MinEventLength, "l", cfg.MinEventLength, "minimum event length (frames, 1.5s or HH:MM:SS)")
	fs.StringVar(&cfg.TimeBeforeEvent, "tb", cfg.TimeBeforeEvent, "time included before each event")
	fs.StringVar(&cfg.TimePostEvent, "tp", cfg.TimePostEvent, "time without motion that ends an event")
	fs.StringVar(&cfg.StartTime, "st", cfg.StartTime, "start scanning at this timecode")
	fs.StringVar(&cfg.EndTime, "et", cfg.EndTime, "stop scanning at this timecode")
	fs.StringVar(&cfg.Duration, "dt", cfg.Duration, "scan this long from the start time")

	fs.Var(&regionFlag{target: &cfg.Regions}, "a", `region of interest as "x0 y0 x1 y1 x2 y2 ..." (repeatable)`)
	fs.Var(&listFlag{target: &cfg.LoadRegion}, "r", "load regions from a file (repeatable)")
	fs.StringVar(&cfg.SaveRegion, "s", cfg.SaveRegion, "save the regions used to this file")

	fs.BoolVar(&cfg.BoundingBox.Enabled, "bb", cfg.BoundingBox.Enabled, "draw a bounding box around motion")
	fs.BoolVar(&cfg.TimeCode, "tc", cfg.TimeCode, "draw the timecode on output frames")
	fs.BoolVar(&cfg.FrameMetrics, "fm", cfg.FrameMetrics, "draw the motion score on output frames")
	fs.StringVar(&cfg.Thumbnails, "thumbnails", cfg.Thumbnails, `"highscore" saves the highest scoring frame of each event`)
	fs.DurationVar(&cfg.ProgressInterval, "progress", cfg.ProgressInterval, "interval between progress log lines, 0 disables")
	return fs
}

// listFlag is a repeatable string flag. The first use replaces values from the config file.
type listFlag struct {
	target *[]string
	set    bool
}

func (f *listFlag) String() string {
	if f.target == nil {
		return ""
	}
	return strings.Join(*f.target, ",")
}

func (f *listFlag) Set(v string) error {
	if !f.set {
		*f.target, f.set = nil, true
	}
	*f.target = append(*f.target, v)
	return nil
}

// regionFlag parses one polygon per use in the region file syntax.
type regionFlag struct {
	target *[][][]int
	set    bool
}

func (f *regionFlag) String() string { return "" }

func (f *regionFlag) Set(v string) error {
	r, err := images.ParseRegion(v)
	if err != nil {
		return err
	}
	if !f.set {
		*f.target, f.set = nil, true
	}
	points := make([][]int, len(r))
	for i, p := range r {
		points[i] = []int{p.X, p.Y}
	}
	*f.target = append(*f.target, points)
	return nil
}

func newLogger(stderr io.Writer, opts *cliOptions) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelError
	}
	var handler slog.Handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	closer := func() {}

	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening log file %s", opts.logFile)
		}
		fileLevel := min(level, slog.LevelInfo)
		handler = teeHandler{handler, slog.NewTextHandler(f, &slog.HandlerOptions{Level: fileLevel})}
		closer = func() { f.Close() }
	}
	return slog.New(handler), closer, nil
}

// teeHandler sends every record to each handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// validateInputs checks that every input exists and warns about unusual extensions.
func validateInputs(paths []string, logger *slog.Logger) error {
	if len(paths) == 0 {
		return errors.New("no input video given (use -i)")
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return errors.Wrapf(err, "input %s", p)
		}
		if info.IsDir() {
			return errors.Errorf("input %s is a directory", p)
		}
		if !hasExtension(p, supportedVideoExtensions) {
			logger.Warn("unrecognized video extension, trying anyway", "path", p)
		}
	}
	return nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func reportConfigError(logger *slog.Logger, err error) {
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			logger.Error("invalid option", "option", fe.Field, "value", fe.Value, "reason", fe.Reason)
		}
		return
	}
	logger.Error("invalid configuration", "error", err)
}

// reportProgress logs the scan position every interval until done is closed.
func reportProgress(logger *slog.Logger, p *scanner.Progress, step int, interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap := p.Snapshot()
			attrs := []any{"frames", snap.FramesProcessed, "events", snap.EventsFound}
			if pct := snap.Percent(step); pct >= 0 {
				attrs = append(attrs, "percent", fmt.Sprintf("%.1f", pct))
			}
			if snap.DecodeFailures > 0 {
				attrs = append(attrs, "decode_failures", snap.DecodeFailures)
			}
			logger.Info("progress", attrs...)
		}
	}
}
