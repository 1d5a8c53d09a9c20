package scanner

import (
	"log/slog"

	"github.com/nvr-ai/motionscan/notify"
	"github.com/nvr-ai/motionscan/output"
	"github.com/nvr-ai/motionscan/profiler"
	"github.com/nvr-ai/motionscan/subtractor"
	"github.com/nvr-ai/motionscan/video"
)

// Option customizes a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger; slog.Default otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithOpener replaces how input files are opened.
func WithOpener(open video.Opener) Option {
	return func(s *Scanner) { s.open = open }
}

// WithSubtractor uses sub instead of the one named by the configuration.
// The scanner closes it.
func WithSubtractor(sub subtractor.Subtractor) Option {
	return func(s *Scanner) { s.subtractor = sub }
}

// WithWriter uses w instead of the one selected by output-mode.
func WithWriter(w output.Writer) Option {
	return func(s *Scanner) { s.writer = w }
}

// WithEncoders replaces the encoders used by output files and the mask video.
func WithEncoders(f output.EncoderFactory) Option {
	return func(s *Scanner) { s.encoders = f }
}

// WithPublisher uses p instead of the one configured by the mqtt block.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Scanner) { s.publisher = p }
}

// WithProfiler records stage timings into p.
func WithProfiler(p *profiler.Profiler) Option {
	return func(s *Scanner) { s.profiler = p }
}
