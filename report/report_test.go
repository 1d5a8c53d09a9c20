package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nvr-ai/motionscan/detector"
	"github.com/nvr-ai/motionscan/timecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events() []detector.Event {
	return []detector.Event{
		{Start: timecode.MustNew(9, 30), End: timecode.MustNew(149, 30)},
		{Start: timecode.MustNew(358, 30), End: timecode.MustNew(491, 30)},
	}
}

func TestCSV(t *testing.T) {
	assert.Equal(t, "00:00:00.300,00:00:04.967,00:00:11.933,00:00:16.367", CSV(events()))
	assert.Equal(t, "", CSV(nil))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, events()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "|  Event    1  |  00:00:00.3  |  00:00:04.7  |  00:00:05.0  |", lines[3])
	assert.Equal(t, "|  Event    2  |  00:00:11.9  |  00:00:04.4  |  00:00:16.4  |", lines[4])
	for _, l := range lines {
		assert.Len(t, l, len(rule))
	}
}

func TestWriteNoEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, detector.ScanResult{NumFrames: 100}, false))
	assert.Equal(t, NoEvents+"\n", buf.String())
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, detector.ScanResult{NumFrames: 576, Events: events()}, false))
	out := buf.String()
	assert.Contains(t, out, "Detected 2 motion event(s) in 576 frames.")
	assert.True(t, strings.HasSuffix(out, CSV(events())+"\n"))
}

func TestWriteCSVOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, detector.ScanResult{Events: events()}, true))
	assert.Equal(t, CSV(events())+"\n", buf.String())
}
