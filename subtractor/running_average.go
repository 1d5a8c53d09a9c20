package subtractor

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// defaultDifferenceThreshold is the grey level change that marks a pixel as foreground.
const defaultDifferenceThreshold = 25

// runningAverage keeps a float background that each frame is blended into:
//
//	background = (1 - alpha) * background + alpha * frame
//
// Pixels differing from the background by more than the threshold are
// foreground (255). With an automatic learning rate alpha starts at 1 and
// decays to 1/history, so early frames build the model quickly.
type runningAverage struct {
	background gocv.Mat
	gray       gocv.Mat
	grayFloat  gocv.Mat
	backGray   gocv.Mat
	diff       gocv.Mat

	learningRate float64
	threshold    float64
	history      int
	frames       int
	filter       *openingFilter
}

func newRunningAverage(params Params, filter *openingFilter) *runningAverage {
	threshold := params.VarianceThreshold
	if threshold == 0 {
		threshold = defaultDifferenceThreshold
	}
	return &runningAverage{
		background:   gocv.NewMat(),
		gray:         gocv.NewMat(),
		grayFloat:    gocv.NewMat(),
		backGray:     gocv.NewMat(),
		diff:         gocv.NewMat(),
		learningRate: params.LearningRate,
		threshold:    threshold,
		history:      params.History,
		filter:       filter,
	}
}

// alpha is the blend factor for the next frame.
func (r *runningAverage) alpha() float64 {
	if r.learningRate != AutoLearningRate {
		return r.learningRate
	}
	return 1 / float64(min(r.frames+1, r.history))
}

func (r *runningAverage) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return errors.New("running average: empty frame")
	}
	switch src.Channels() {
	case 1:
		if err := src.CopyTo(&r.gray); err != nil {
			return errors.Wrap(err, "running average")
		}
	case 3:
		if err := gocv.CvtColor(src, &r.gray, gocv.ColorBGRToGray); err != nil {
			return errors.Wrap(err, "running average")
		}
	default:
		return errors.Errorf("running average: unsupported channel count %d", src.Channels())
	}

	if err := r.gray.ConvertTo(&r.grayFloat, gocv.MatTypeCV32F); err != nil {
		return errors.Wrap(err, "running average")
	}
	if r.background.Empty() || r.background.Rows() != r.grayFloat.Rows() || r.background.Cols() != r.grayFloat.Cols() {
		if err := r.grayFloat.CopyTo(&r.background); err != nil {
			return errors.Wrap(err, "running average")
		}
	}

	if err := r.background.ConvertTo(&r.backGray, gocv.MatTypeCV8U); err != nil {
		return errors.Wrap(err, "running average")
	}
	if err := gocv.AbsDiff(r.gray, r.backGray, &r.diff); err != nil {
		return errors.Wrap(err, "running average")
	}
	gocv.Threshold(r.diff, dst, float32(r.threshold), 255, gocv.ThresholdBinary)

	gocv.AccumulatedWeighted(r.grayFloat, &r.background, r.alpha())
	r.frames++

	return r.filter.Apply(dst)
}

func (r *runningAverage) Close() error {
	r.filter.Close()
	for _, m := range []*gocv.Mat{&r.background, &r.gray, &r.grayFloat, &r.backGray, &r.diff} {
		m.Close()
	}
	return nil
}
