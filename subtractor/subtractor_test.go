package subtractor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func grayFrame(t *testing.T, value float64) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0), 10, 10, gocv.MatTypeCV8UC1)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{in: "mog2", want: KindMOG2},
		{in: "MOG2", want: KindMOG2},
		{in: "cnt", want: KindKNN},
		{in: "knn", want: KindKNN},
		{in: "running-average", want: KindRunningAverage},
		{in: "mog2_cuda", want: KindMOG2CUDA},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseKind("gmg")
	assert.Equal(t, ErrInvalidParams, errors.Cause(err))
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		mutate  func(*Params)
		wantErr bool
	}{
		{name: "defaults", kind: KindMOG2, mutate: func(*Params) {}},
		{name: "kernel disabled", kind: KindMOG2, mutate: func(p *Params) { p.KernelSize = 0 }},
		{name: "kernel odd", kind: KindKNN, mutate: func(p *Params) { p.KernelSize = 5 }},
		{name: "kernel even", kind: KindMOG2, mutate: func(p *Params) { p.KernelSize = 4 }, wantErr: true},
		{name: "kernel one", kind: KindMOG2, mutate: func(p *Params) { p.KernelSize = 1 }, wantErr: true},
		{name: "negative threshold", kind: KindMOG2, mutate: func(p *Params) { p.VarianceThreshold = -1 }, wantErr: true},
		{name: "fixed rate on running average", kind: KindRunningAverage, mutate: func(p *Params) { p.LearningRate = 0 }},
		{name: "fixed rate on mog2", kind: KindMOG2, mutate: func(p *Params) { p.LearningRate = 0.1 }},
		{name: "frozen mog2", kind: KindMOG2, mutate: func(p *Params) { p.LearningRate = 0 }},
		{name: "fixed rate on knn", kind: KindKNN, mutate: func(p *Params) { p.LearningRate = 0.1 }, wantErr: true},
		{name: "rate above one", kind: KindRunningAverage, mutate: func(p *Params) { p.LearningRate = 1.5 }, wantErr: true},
		{name: "negative history", kind: KindMOG2, mutate: func(p *Params) { p.History = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate(tt.kind)
			if tt.wantErr {
				assert.Equal(t, ErrInvalidParams, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveKernelSize(t *testing.T) {
	tests := []struct {
		kernel, width, want int
	}{
		{kernel: AutoKernelSize, width: 640, want: 3},
		{kernel: AutoKernelSize, width: 1279, want: 3},
		{kernel: AutoKernelSize, width: 1280, want: 5},
		{kernel: AutoKernelSize, width: 1919, want: 5},
		{kernel: AutoKernelSize, width: 1920, want: 7},
		{kernel: AutoKernelSize, width: 3840, want: 7},
		{kernel: 0, width: 3840, want: 0},
		{kernel: 9, width: 320, want: 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveKernelSize(tt.kernel, tt.width), "kernel=%d width=%d", tt.kernel, tt.width)
	}
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, IsAvailable(KindMOG2))
	assert.True(t, IsAvailable(KindKNN))
	assert.True(t, IsAvailable(KindRunningAverage))
	assert.False(t, IsAvailable(Kind("nope")))
}

func TestNew_Errors(t *testing.T) {
	p := DefaultParams()
	p.KernelSize = 2
	_, err := New(KindMOG2, p, 640)
	assert.Equal(t, ErrInvalidParams, errors.Cause(err))

	if !IsAvailable(KindMOG2CUDA) {
		_, err = New(KindMOG2CUDA, DefaultParams(), 640)
		assert.Equal(t, ErrUnavailable, errors.Cause(err))
	}
}

func TestNew_ProducesMask(t *testing.T) {
	for _, kind := range []Kind{KindMOG2, KindKNN, KindRunningAverage} {
		t.Run(string(kind), func(t *testing.T) {
			sub, err := New(kind, DefaultParams(), 10)
			require.NoError(t, err)
			defer sub.Close()

			frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
			defer frame.Close()

			mask := gocv.NewMat()
			defer mask.Close()
			require.NoError(t, sub.Apply(frame, &mask))
			assert.Equal(t, gocv.MatTypeCV8UC1, mask.Type())
			assert.Equal(t, 10, mask.Rows())
			assert.Equal(t, 10, mask.Cols())
		})
	}
}

func TestMOG2_FixedLearningRate(t *testing.T) {
	p := DefaultParams()
	p.KernelSize = 0
	p.LearningRate = 0
	sub, err := New(KindMOG2, p, 10)
	require.NoError(t, err)
	defer sub.Close()

	dark := grayFrame(t, 0)
	defer dark.Close()
	bright := grayFrame(t, 200)
	defer bright.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	// The first frame always initializes the model, whatever the rate.
	require.NoError(t, sub.Apply(dark, &mask))

	for i := 0; i < 5; i++ {
		require.NoError(t, sub.Apply(bright, &mask))
		assert.Equal(t, 100, gocv.CountNonZero(mask), "frame %d", i)
	}

	// The background is still the dark frame.
	require.NoError(t, sub.Apply(dark, &mask))
	assert.Zero(t, gocv.CountNonZero(mask))
}

func TestRunningAverage(t *testing.T) {
	t.Run("frozen model keeps flagging the change", func(t *testing.T) {
		p := DefaultParams()
		p.KernelSize = 0
		p.LearningRate = 0
		sub, err := New(KindRunningAverage, p, 10)
		require.NoError(t, err)
		defer sub.Close()

		dark := grayFrame(t, 0)
		defer dark.Close()
		bright := grayFrame(t, 200)
		defer bright.Close()

		mask := gocv.NewMat()
		defer mask.Close()

		require.NoError(t, sub.Apply(dark, &mask))
		assert.Zero(t, gocv.CountNonZero(mask))

		for i := 0; i < 3; i++ {
			require.NoError(t, sub.Apply(bright, &mask))
			assert.Equal(t, 100, gocv.CountNonZero(mask))
		}
	})

	t.Run("auto rate absorbs a static scene", func(t *testing.T) {
		p := DefaultParams()
		p.KernelSize = 0
		p.History = 2
		sub, err := New(KindRunningAverage, p, 10)
		require.NoError(t, err)
		defer sub.Close()

		dark := grayFrame(t, 0)
		defer dark.Close()
		bright := grayFrame(t, 40)
		defer bright.Close()

		mask := gocv.NewMat()
		defer mask.Close()

		require.NoError(t, sub.Apply(dark, &mask))
		// Background 0, frame 40: foreground. Background becomes 20.
		require.NoError(t, sub.Apply(bright, &mask))
		assert.Equal(t, 100, gocv.CountNonZero(mask))
		// Background 20, frame 40: below threshold.
		require.NoError(t, sub.Apply(bright, &mask))
		assert.Zero(t, gocv.CountNonZero(mask))
	})

	t.Run("alpha decays to one over history", func(t *testing.T) {
		r := newRunningAverage(Params{LearningRate: AutoLearningRate, History: 3}, nil)
		defer r.Close()

		want := []float64{1, 0.5, 1.0 / 3, 1.0 / 3}
		for _, w := range want {
			assert.InDelta(t, w, r.alpha(), 1e-9)
			r.frames++
		}
	})
}

func TestCheckMask(t *testing.T) {
	frame := grayFrame(t, 0)
	defer frame.Close()

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, checkMask(empty, frame))

	small := gocv.NewMatWithSize(5, 5, gocv.MatTypeCV8UC1)
	defer small.Close()
	assert.Error(t, checkMask(small, frame))

	same := grayFrame(t, 255)
	defer same.Close()
	assert.NoError(t, checkMask(same, frame))
}

func TestOpeningFilter(t *testing.T) {
	assert.Nil(t, newOpeningFilter(0))
	assert.Zero(t, newOpeningFilter(0).Size())

	f := newOpeningFilter(3)
	require.NotNil(t, f)
	defer f.Close()
	assert.Equal(t, 3, f.Size())

	mask := grayFrame(t, 0)
	defer mask.Close()
	mask.SetUCharAt(5, 5, 255)
	require.Equal(t, 1, gocv.CountNonZero(mask))

	require.NoError(t, f.Apply(&mask))
	assert.Zero(t, gocv.CountNonZero(mask), "isolated pixel should be removed")
}
