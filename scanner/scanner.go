// Package scanner - Drives a motion scan from input frames to events.
//
// One goroutine runs the whole pipeline, one frame at a time:
//
//	decode -> score -> detect -> buffer / write -> notify
//
// While idle the last few frames are kept in a bounded buffer so that an
// event is written with its pre-roll. Progress counters and Stop are the only
// state shared with other goroutines.
package scanner

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motionscan/buffer"
	"github.com/nvr-ai/motionscan/config"
	"github.com/nvr-ai/motionscan/detector"
	"github.com/nvr-ai/motionscan/images"
	"github.com/nvr-ai/motionscan/notify"
	"github.com/nvr-ai/motionscan/output"
	"github.com/nvr-ai/motionscan/profiler"
	"github.com/nvr-ai/motionscan/subtractor"
	"github.com/nvr-ai/motionscan/timecode"
	"github.com/nvr-ai/motionscan/video"
)

// ErrAlreadyStarted is returned when Scan is called twice on one Scanner.
var ErrAlreadyStarted = errors.New("scan already started")

// Result is the outcome of a scan.
type Result struct {
	detector.ScanResult
	ScanID string
	// Files are the completed output videos.
	Files      []string
	Thumbnails []string
	// Regions are the regions of interest after clamping to the frame.
	Regions         []images.Region
	Published       int
	PublishFailures int
	Profile         profiler.Summary
}

// Scanner runs one scan. Progress and Stop may be used from other goroutines
// while Scan runs.
type Scanner struct {
	cfg        config.Config
	logger     *slog.Logger
	open       video.Opener
	subtractor subtractor.Subtractor
	writer     output.Writer
	encoders   output.EncoderFactory
	publisher  notify.Publisher
	profiler   *profiler.Profiler

	progress Progress
	stop     atomic.Bool
	started  atomic.Bool
}

// New validates cfg and returns a Scanner.
//
// Arguments:
//   - cfg: The scan configuration.
//   - opts: Replacements for the components cfg would construct.
//
// Returns:
//   - *Scanner: The scanner.
//   - error: config.ValidationErrors if cfg is invalid.
func New(cfg config.Config, opts ...Option) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scanner{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.profiler == nil {
		s.profiler = profiler.New()
	}
	return s, nil
}

// Progress returns the live counters.
func (s *Scanner) Progress() *Progress {
	return &s.progress
}

// Stop asks the scan to finish after the current frame. An open event is
// closed as if the input had ended.
func (s *Scanner) Stop() {
	s.stop.Store(true)
}

// Scan reads every input and returns the detected events. Cancelling ctx
// behaves like Stop.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if s.started.Swap(true) {
		return nil, ErrAlreadyStarted
	}

	r := &run{s: s, cfg: &s.cfg, scanID: uuid.NewString(), prof: s.profiler}
	r.logger = s.logger.With("scan_id", r.scanID)
	defer r.close()

	if err := r.setup(); err != nil {
		return nil, err
	}
	return r.loop(ctx)
}

// IsConfigError reports whether err comes from invalid options rather than
// from reading or writing video.
func IsConfigError(err error) bool {
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	switch errors.Cause(err) {
	case images.ErrInvalidRegion, images.ErrEmptyMask,
		subtractor.ErrUnavailable, subtractor.ErrInvalidParams,
		detector.ErrInvalidConfig, timecode.ErrInvalid:
		return true
	}
	return false
}

// run holds the state of one scan.
type run struct {
	s      *Scanner
	cfg    *config.Config
	logger *slog.Logger
	scanID string
	prof   *profiler.Profiler

	src      *video.Source
	resolved *config.Resolved
	regions  []images.Region
	sub      subtractor.Subtractor
	scorer   *images.MotionScorer
	det      *detector.Detector
	buf      *buffer.Buffer[gocv.Mat]

	writer  output.Writer
	writing bool
	closed  bool
	maskEnc output.Encoder
	thumbs  *output.Thumbnailer
	overlay *overlays

	publisher notify.Publisher
	published int
	failed    int

	index int
}

func (r *run) setup() error {
	cfg := r.cfg

	src, err := video.Open(video.Options{
		Paths:     cfg.Input,
		FrameSkip: cfg.FrameSkip,
		Logger:    r.logger,
		Open:      r.s.open,
	})
	if err != nil {
		return err
	}
	r.src = src
	fps, size := src.Framerate(), src.FrameSize()

	if r.resolved, err = cfg.Resolve(fps); err != nil {
		return err
	}

	if err := r.setupRegions(size); err != nil {
		return err
	}
	mask, err := images.BuildRegionMask(r.regions, size, cfg.Downscale)
	if err != nil {
		return err
	}

	if r.s.subtractor != nil {
		r.sub, r.s.subtractor = r.s.subtractor, nil
	} else {
		kind, err := subtractor.ParseKind(cfg.BGSubtractor)
		if err != nil {
			return err
		}
		if r.sub, err = subtractor.New(kind, cfg.SubtractorParams(), mask.Size.X); err != nil {
			return err
		}
	}
	if r.scorer, err = images.NewMotionScorer(r.sub, r.regions, size, cfg.Downscale); err != nil {
		return err
	}
	if r.det, err = detector.New(r.resolved.Detector); err != nil {
		return err
	}

	capacity := max(1, r.resolved.Detector.BufferLen())
	if r.buf, err = buffer.New(capacity, func(m gocv.Mat) { m.Close() }); err != nil {
		return err
	}

	if err := r.setupOutputs(fps, size, mask); err != nil {
		return err
	}
	if r.overlay, err = newOverlays(cfg, r.resolved.SmoothFrames, size, mask); err != nil {
		return err
	}
	if err := r.setupPublisher(); err != nil {
		return err
	}

	if start := r.resolved.Start; start.Frame() > 0 {
		if err := src.Seek(start); err != nil {
			return errors.Wrapf(err, "seeking to start-time %s", start)
		}
	}
	r.s.progress.TotalFrames.Store(int64(r.windowFrames()))

	r.logger.Info("scan started",
		"inputs", len(cfg.Input),
		"fps", fps,
		"resolution", images.DescribeResolution(size),
		"total_frames", src.TotalFrames(),
		"bg_subtractor", cfg.BGSubtractor,
		"regions", len(r.regions),
		"scored_pixels", mask.Area(),
	)
	if r.writing {
		r.logger.Info("pre-roll buffer",
			"frames", capacity,
			"memory", profiler.BufferEstimate(capacity, size.X, size.Y, 3))
	}
	return nil
}

func (r *run) setupRegions(size image.Point) error {
	regions, err := r.cfg.LoadRegions()
	if err != nil {
		return err
	}
	r.regions = images.ClampRegions(regions, size)
	if path := r.cfg.SaveRegion; path != "" {
		if err := images.SaveRegions(path, r.regions); err != nil {
			return err
		}
		r.logger.Info("saved regions", "path", path, "regions", len(r.regions))
	}
	return nil
}

func (r *run) setupOutputs(fps float64, size image.Point, mask *images.RegionMask) error {
	cfg := r.cfg
	if r.s.writer != nil {
		r.writer, r.writing = r.s.writer, true
	} else {
		mode, err := output.ParseMode(cfg.OutputMode)
		if err != nil {
			return err
		}
		if mode == output.ModeFFmpeg && r.s.encoders == nil {
			if err := output.CheckFFmpeg(); err != nil {
				return err
			}
		}
		w, err := output.New(output.Options{
			Mode:             mode,
			Dir:              cfg.OutputDir,
			Output:           cfg.Output,
			InputName:        cfg.Input[0],
			Codec:            cfg.Codec,
			FPS:              fps,
			Size:             size,
			FFmpegInputArgs:  cfg.FFmpegInputArgs,
			FFmpegOutputArgs: cfg.FFmpegOutputArgs,
			Logger:           r.logger,
			Encoders:         r.s.encoders,
		})
		if err != nil {
			return err
		}
		r.writer, r.writing = w, mode != output.ModeScanOnly
	}

	if cfg.MaskOutput != "" {
		factory := r.s.encoders
		if factory == nil {
			factory = output.OpenCVEncoders(cfg.Codec, false)
		}
		enc, err := factory(cfg.MaskOutput, fps, mask.Size)
		if err != nil {
			return errors.Wrapf(output.ErrWriteFailed, "opening mask output %s: %v", cfg.MaskOutput, err)
		}
		r.maskEnc = enc
	}

	if cfg.Thumbnails == "highscore" {
		format, err := images.ParseImageFormat(cfg.Thumbnail.Format)
		if err != nil {
			return err
		}
		if r.thumbs, err = output.NewThumbnailer(output.ThumbnailOptions{
			Dir:       cfg.OutputDir,
			InputName: cfg.Input[0],
			Format:    format,
			MaxWidth:  cfg.Thumbnail.MaxWidth,
			Quality:   cfg.Thumbnail.Quality,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) setupPublisher() error {
	switch {
	case r.s.publisher != nil:
		r.publisher = r.s.publisher
	case r.cfg.MQTT.Enabled:
		m := r.cfg.MQTT
		format, err := notify.ParseFormat(m.Format)
		if err != nil {
			return err
		}
		p, err := notify.NewMQTTPublisher(notify.MQTTOptions{
			Broker:   m.Broker,
			Topic:    m.Topic,
			ClientID: m.ClientID,
			Username: m.Username,
			Password: m.Password,
			QoS:      m.QoS,
			Format:   format,
			Logger:   r.logger,
		})
		if err != nil {
			return err
		}
		r.publisher = p
	default:
		r.publisher = notify.Nop{}
	}
	return nil
}

// windowFrames is the number of source frames between start-time and
// end-time, or 0 when the inputs do not report a length.
func (r *run) windowFrames() int {
	end := r.src.TotalFrames()
	if r.resolved.HasEnd && (end == 0 || r.resolved.End.Frame() < end) {
		end = r.resolved.End.Frame()
	}
	return max(end-r.resolved.Start.Frame(), 0)
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	var (
		last      timecode.FrameTimecode
		processed int
		cancelled bool
	)
	for {
		if r.s.stop.Load() || ctx.Err() != nil {
			cancelled = true
			r.logger.Info("scan stopped before end of input")
			break
		}

		done := r.prof.StartOperation("decode")
		pos, ok, err := r.src.Read(&frame)
		done()
		r.s.progress.DecodeFailures.Store(int64(r.src.DecodeFailures()))
		if err != nil {
			return nil, errors.Wrap(err, "reading input")
		}
		if !ok {
			break
		}
		if r.resolved.HasEnd && !pos.Before(r.resolved.End) {
			break
		}

		if err := r.process(pos, &frame); err != nil {
			return nil, err
		}
		last = pos
		processed++
		r.s.progress.FramesProcessed.Add(1)
	}

	if processed > 0 {
		if ev, open := r.det.Finish(last.Add(1)); open {
			if err := r.endEvent(ev); err != nil {
				return nil, err
			}
		}
	}
	if err := r.closeWriter(); err != nil {
		return nil, err
	}

	res := &Result{
		ScanResult: detector.ScanResult{
			NumFrames:      processed,
			Events:         r.det.Events(),
			DecodeFailures: r.src.DecodeFailures(),
			Cancelled:      cancelled,
		},
		ScanID:          r.scanID,
		Files:           r.writer.Files(),
		Regions:         r.regions,
		Published:       r.published,
		PublishFailures: r.failed,
	}
	if r.thumbs != nil {
		res.Thumbnails = r.thumbs.Files()
	}
	res.Profile = r.prof.Log(r.logger, processed)
	r.logger.Info("scan complete",
		"frames", processed,
		"events", len(res.Events),
		"decode_failures", res.DecodeFailures,
		"cancelled", cancelled)
	return res, nil
}

// process runs one decoded frame through scoring, detection and output.
// frame is the decode buffer and may be drawn on.
func (r *run) process(pos timecode.FrameTimecode, frame *gocv.Mat) error {
	done := r.prof.StartOperation("score")
	ms, err := r.scorer.Update(*frame)
	done()
	if err != nil {
		return errors.Wrapf(err, "scoring frame %d", pos.Frame())
	}
	defer ms.Close()

	score := ms.Score
	r.prof.RecordMetric("score", score)
	if r.det.Suppressed(score) {
		r.logger.Debug("score at or above max-threshold, treating frame as still",
			"position", pos, "score", score, "max_threshold", r.cfg.MaxThreshold)
	}

	if r.maskEnc != nil {
		if err := r.maskEnc.Write(ms.Masked); err != nil {
			return errors.Wrapf(output.ErrWriteFailed, "mask output: %v", err)
		}
	}

	wasIdle := r.det.State() == detector.Idle
	buffered := 0
	if wasIdle {
		buffered = min(r.buf.Len()+1, r.buf.Cap())
	}
	done = r.prof.StartOperation("detect")
	tr := r.det.Update(pos, score, buffered)
	done()

	if r.thumbs != nil && (!wasIdle || tr == detector.EventStarted) {
		r.thumbs.Offer(*frame, score)
	}
	if err := r.overlay.draw(frame, pos, score, ms.Masked); err != nil {
		return err
	}

	switch {
	case tr == detector.EventStarted:
		r.push(*frame)
		r.index = len(r.det.Events()) + 1
		ev, _ := r.det.Current()
		r.logger.Debug("event started", "index", r.index, "start", ev.Start, "trigger", pos)
		if err := r.writer.EventStart(r.index); err != nil {
			return err
		}
		return r.buf.Drain(func(m gocv.Mat) error {
			defer m.Close()
			return r.write(m)
		})
	case tr == detector.EventEnded:
		if err := r.write(*frame); err != nil {
			return err
		}
		events := r.det.Events()
		return r.endEvent(events[len(events)-1])
	case wasIdle:
		r.push(*frame)
	default:
		return r.write(*frame)
	}
	return nil
}

// push retains frame as pre-roll. Without output only the count matters.
func (r *run) push(frame gocv.Mat) {
	if r.writing {
		r.buf.Push(frame.Clone())
		return
	}
	r.buf.Push(gocv.NewMat())
}

func (r *run) write(frame gocv.Mat) error {
	if !r.writing {
		return nil
	}
	done := r.prof.StartOperation("write")
	defer done()
	return r.writer.Write(frame)
}

func (r *run) endEvent(ev detector.Event) error {
	if err := r.writer.EventEnd(r.index); err != nil {
		return err
	}
	r.overlay.clear()
	r.s.progress.EventsFound.Add(1)
	r.logger.Info("motion event",
		"index", r.index,
		"start", ev.Start,
		"end", ev.End,
		"duration", ev.Duration())

	if r.thumbs != nil {
		path, err := r.thumbs.Flush(r.index)
		if err != nil {
			return err
		}
		if path != "" {
			r.logger.Debug("wrote thumbnail", "path", path, "index", r.index)
		}
	}

	msg := notify.NewEventMessage(r.scanID, r.cfg.Input[0], r.index, ev)
	if err := r.publisher.Publish(msg); err != nil {
		r.failed++
		r.logger.Warn("failed to publish event", "index", r.index, "error", err)
	} else {
		r.published++
	}
	return nil
}

func (r *run) closeWriter() error {
	if r.closed || r.writer == nil {
		return nil
	}
	r.closed = true
	return r.writer.Close()
}

func (r *run) close() {
	if r.buf != nil {
		r.buf.Clear()
	}
	if r.thumbs != nil {
		r.thumbs.Close()
	}
	if r.maskEnc != nil {
		if err := r.maskEnc.Close(); err != nil {
			r.logger.Warn("failed to close mask output", "path", r.cfg.MaskOutput, "error", err)
		}
	}
	if err := r.closeWriter(); err != nil {
		r.logger.Warn("failed to close output", "error", err)
	}
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.sub != nil {
		r.sub.Close()
	} else if r.s.subtractor != nil {
		r.s.subtractor.Close()
	}
	if r.src != nil {
		r.src.Close()
	}
}
