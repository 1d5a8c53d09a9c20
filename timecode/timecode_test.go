package timecode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		value string
		fps   float64
		frame int
	}{
		{name: "frame count", value: "48", fps: 24, frame: 48},
		{name: "zero frames", value: "0", fps: 30, frame: 0},
		{name: "seconds suffix", value: "1.5s", fps: 30, frame: 45},
		{name: "bare seconds", value: "2.0", fps: 25, frame: 50},
		{name: "seconds rounds to nearest frame", value: "0.1s", fps: 29.97, frame: 3},
		{name: "clock", value: "00:01:02", fps: 10, frame: 620},
		{name: "clock with millis", value: "01:00:00.500", fps: 2, frame: 7201},
		{name: "surrounding space", value: "  12 ", fps: 10, frame: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := Parse(tt.value, tt.fps)
			require.NoError(t, err)
			assert.Equal(t, tt.frame, tc.Frame())
			assert.Equal(t, tt.fps, tc.Framerate())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, value := range []string{"", "abc", "-5", "1:2", "00:61:00", "00:00:60", "-1.5s", "12f"} {
		t.Run(value, func(t *testing.T) {
			_, err := Parse(value, 30)
			require.Error(t, err)
			assert.Equal(t, ErrInvalid, errors.Cause(err))
		})
	}
}

func TestNew_RejectsOutOfRange(t *testing.T) {
	_, err := New(-1, 30)
	assert.Error(t, err)

	_, err = New(10, 0)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	tc := MustNew(4523, 30)

	assert.Equal(t, "00:02:30.767", tc.String())
	assert.Equal(t, "00:02:30.8", tc.Format(1))
	assert.Equal(t, "00:02:31", tc.Format(0))
	assert.InDelta(t, 150.7667, tc.Seconds(), 0.0001)
}

func TestFormat_CarriesRoundingIntoMinutes(t *testing.T) {
	// 59.97s rounds up to a full minute at one decimal.
	tc := MustNew(1799, 30)
	assert.Equal(t, "00:01:00.0", tc.Format(1))
}

func TestArithmetic(t *testing.T) {
	tc := MustNew(10, 24)

	assert.Equal(t, 15, tc.Add(5).Frame())
	assert.Equal(t, 4, tc.Sub(6).Frame())
	assert.Equal(t, 0, tc.Sub(50).Frame(), "subtraction clamps at zero")
	assert.Equal(t, 24.0, tc.Add(1).Framerate())
}

func TestCompare(t *testing.T) {
	a := MustNew(10, 30)
	b := MustNew(20, 30)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(MustNew(10, 30.0001)))
	assert.Panics(t, func() { a.Compare(MustNew(10, 25)) })
}
