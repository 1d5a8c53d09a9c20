// Package subtractor - Background subtraction backends that turn a frame into a foreground mask.
//
// Every backend implements Subtractor and is selected at runtime by Kind:
//
//   - mog2: Gaussian mixture model (OpenCV MOG2), automatic or fixed learning rate
//   - knn: K-nearest neighbours model (OpenCV KNN), automatic learning rate only
//   - running-average: accumulated-weighted background, automatic or fixed learning rate
//   - mog2-cuda: MOG2 on a CUDA device, only available in builds tagged "cuda"
//
// Each backend optionally runs a morphological opening over its output to drop
// isolated noise pixels before the mask is scored.
package subtractor

import (
	"image"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// AutoKernelSize selects the opening kernel from the frame width.
	AutoKernelSize = -1
	// AutoLearningRate lets the backend adapt its background model on its own.
	AutoLearningRate = -1.0
	// DefaultHistory is the number of frames the background model remembers.
	DefaultHistory = 500
)

var (
	// ErrUnavailable is returned when a backend's runtime support is missing.
	ErrUnavailable = errors.New("background subtractor is not available")
	// ErrInvalidParams is the cause of every parameter validation failure.
	ErrInvalidParams = errors.New("invalid background subtractor parameters")
)

// Kind selects a background subtraction backend.
type Kind string

const (
	KindMOG2           Kind = "mog2"
	KindKNN            Kind = "knn"
	KindRunningAverage Kind = "running-average"
	KindMOG2CUDA       Kind = "mog2-cuda"
)

// Kinds lists every known backend, available or not.
var Kinds = []Kind{KindMOG2, KindKNN, KindRunningAverage, KindMOG2CUDA}

// ParseKind maps a user supplied name to a Kind. "cnt" is accepted as an
// alias for knn, the closest CPU alternative shipped with OpenCV.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mog2", "mog":
		return KindMOG2, nil
	case "knn", "cnt":
		return KindKNN, nil
	case "running-average", "avg", "average":
		return KindRunningAverage, nil
	case "mog2-cuda", "mog2_cuda", "cuda":
		return KindMOG2CUDA, nil
	}
	return "", errors.Wrapf(ErrInvalidParams, "unknown background subtractor %q", s)
}

// Params tunes a backend.
type Params struct {
	// KernelSize is the opening kernel: odd >= 3, 0 to disable, AutoKernelSize to pick from the frame width.
	KernelSize int
	// VarianceThreshold is the backend's foreground threshold. Zero selects the backend default.
	VarianceThreshold float64
	// LearningRate is AutoLearningRate or a value in [0, 1]; 0 freezes the background model.
	LearningRate float64
	// DetectShadows marks shadows as grey (127) instead of foreground.
	DetectShadows bool
	// History is the background model length in frames. Zero selects DefaultHistory.
	History int
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		KernelSize:   AutoKernelSize,
		LearningRate: AutoLearningRate,
		History:      DefaultHistory,
	}
}

// Validate checks the parameters against a backend.
func (p Params) Validate(kind Kind) error {
	if p.KernelSize != AutoKernelSize && p.KernelSize != 0 && (p.KernelSize < 3 || p.KernelSize%2 == 0) {
		return errors.Wrapf(ErrInvalidParams, "kernel size must be -1, 0 or an odd number >= 3, got %d", p.KernelSize)
	}
	if p.VarianceThreshold < 0 {
		return errors.Wrapf(ErrInvalidParams, "variance threshold must be >= 0, got %g", p.VarianceThreshold)
	}
	if p.History < 0 {
		return errors.Wrapf(ErrInvalidParams, "history must be >= 0, got %d", p.History)
	}
	if p.LearningRate != AutoLearningRate {
		if p.LearningRate < 0 || p.LearningRate > 1 {
			return errors.Wrapf(ErrInvalidParams, "learning rate must be -1 or in [0, 1], got %g", p.LearningRate)
		}
		if kind == KindKNN || kind == KindMOG2CUDA {
			return errors.Wrapf(ErrInvalidParams, "%s only supports an automatic learning rate, use %s or %s for a fixed rate",
				kind, KindMOG2, KindRunningAverage)
		}
	}
	return nil
}

// Subtractor produces a single channel 8-bit foreground mask for each frame.
// Implementations are stateful and must see frames in order.
type Subtractor interface {
	Apply(src gocv.Mat, dst *gocv.Mat) error
	Close() error
}

// IsAvailable reports whether kind can be constructed in this build and on this machine.
func IsAvailable(kind Kind) bool {
	switch kind {
	case KindMOG2, KindKNN, KindRunningAverage:
		return true
	case KindMOG2CUDA:
		return cudaAvailable()
	}
	return false
}

// Remediation describes how to make an unavailable backend available.
func Remediation(kind Kind) string {
	if kind == KindMOG2CUDA {
		return "rebuild with -tags cuda against an OpenCV built with CUDA support, and check that a CUDA device is visible"
	}
	return "choose one of " + joinKinds(Kinds)
}

// ResolveKernelSize maps AutoKernelSize to a concrete size for frames of the given width.
//
// Arguments:
//   - kernelSize: The configured kernel size.
//   - frameWidth: Width of the frames the subtractor sees, after downscaling.
//
// Returns:
//   - int: 7 for widths >= 1920, 5 for >= 1280, otherwise 3. Other sizes pass through.
func ResolveKernelSize(kernelSize, frameWidth int) int {
	if kernelSize != AutoKernelSize {
		return kernelSize
	}
	switch {
	case frameWidth >= 1920:
		return 7
	case frameWidth >= 1280:
		return 5
	default:
		return 3
	}
}

// New constructs a backend. Callers should check IsAvailable first so that a
// missing backend is reported before any work starts.
//
// Arguments:
//   - kind: The backend to construct.
//   - params: Tuning parameters, validated against kind.
//   - frameWidth: Width of the frames the subtractor will see, used for automatic kernel sizing.
//
// Returns:
//   - Subtractor: The backend.
//   - error: ErrUnavailable or ErrInvalidParams.
func New(kind Kind, params Params, frameWidth int) (Subtractor, error) {
	if err := params.Validate(kind); err != nil {
		return nil, err
	}
	if !IsAvailable(kind) {
		return nil, errors.Wrapf(ErrUnavailable, "%s: %s", kind, Remediation(kind))
	}
	if params.History == 0 {
		params.History = DefaultHistory
	}

	filter := newOpeningFilter(ResolveKernelSize(params.KernelSize, frameWidth))

	switch kind {
	case KindMOG2:
		threshold := params.VarianceThreshold
		if threshold == 0 {
			threshold = 16
		}
		mog := gocv.NewBackgroundSubtractorMOG2WithParams(params.History, threshold, params.DetectShadows)
		return &mog2{model: &mog, rate: params.LearningRate, filter: filter}, nil
	case KindKNN:
		threshold := params.VarianceThreshold
		if threshold == 0 {
			threshold = 400
		}
		knn := gocv.NewBackgroundSubtractorKNNWithParams(params.History, threshold, params.DetectShadows)
		return &knnSubtractor{model: &knn, filter: filter}, nil
	case KindRunningAverage:
		return newRunningAverage(params, filter), nil
	case KindMOG2CUDA:
		return newCUDAMOG2(params, filter)
	}
	filter.Close()
	return nil, errors.Wrapf(ErrInvalidParams, "unknown background subtractor %q", kind)
}

type mog2 struct {
	model *gocv.BackgroundSubtractorMOG2
	// rate is passed to OpenCV as is; -1 lets MOG2 derive it from the history length.
	rate   float64
	filter *openingFilter
}

func (m *mog2) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if err := m.model.ApplyWithLearningRate(src, dst, m.rate); err != nil {
		return errors.Wrap(err, "mog2")
	}
	if err := checkMask(*dst, src); err != nil {
		return errors.Wrap(err, "mog2")
	}
	return m.filter.Apply(dst)
}

func (m *mog2) Close() error {
	m.filter.Close()
	return m.model.Close()
}

type knnSubtractor struct {
	model  *gocv.BackgroundSubtractorKNN
	filter *openingFilter
}

func (k *knnSubtractor) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if err := k.model.Apply(src, dst); err != nil {
		return errors.Wrap(err, "knn")
	}
	if err := checkMask(*dst, src); err != nil {
		return errors.Wrap(err, "knn")
	}
	return k.filter.Apply(dst)
}

func (k *knnSubtractor) Close() error {
	k.filter.Close()
	return k.model.Close()
}

// checkMask rejects a backend output that is missing or does not match the
// frame it was computed from.
func checkMask(mask, src gocv.Mat) error {
	if mask.Empty() {
		return errors.New("backend returned an empty mask")
	}
	if mask.Rows() != src.Rows() || mask.Cols() != src.Cols() {
		return errors.Errorf("backend returned a %dx%d mask for a %dx%d frame",
			mask.Cols(), mask.Rows(), src.Cols(), src.Rows())
	}
	return nil
}

// openingFilter erodes then dilates a mask with a square kernel.
type openingFilter struct {
	size   int
	kernel gocv.Mat
}

// newOpeningFilter returns nil for sizes below 3; a nil filter is a no-op.
func newOpeningFilter(size int) *openingFilter {
	if size < 3 {
		return nil
	}
	return &openingFilter{
		size:   size,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size)),
	}
}

// Size is the kernel size, 0 when filtering is disabled.
func (f *openingFilter) Size() int {
	if f == nil {
		return 0
	}
	return f.size
}

func (f *openingFilter) Apply(mask *gocv.Mat) error {
	if f == nil || mask.Empty() {
		return nil
	}
	if err := gocv.MorphologyEx(*mask, mask, gocv.MorphOpen, f.kernel); err != nil {
		return errors.Wrap(err, "morphological opening")
	}
	return nil
}

func (f *openingFilter) Close() {
	if f != nil {
		f.kernel.Close()
	}
}

func joinKinds(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
