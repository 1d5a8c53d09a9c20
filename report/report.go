// Package report - Renders detected events for people and for scripts.
//
// The table uses 1-decimal timecodes:
//
//	-------------------------------------------------------------
//	|   Event #    |  Start Time  |   Duration   |   End Time   |
//	-------------------------------------------------------------
//	|  Event    1  |  00:00:00.4  |  00:00:05.6  |  00:00:06.0  |
//	-------------------------------------------------------------
//
// The CSV line lists start,end pairs at full precision and is parsed by other
// tools, so its field order and separator never change.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nvr-ai/motionscan/detector"
)

// NoEvents is printed when a scan finds nothing.
const NoEvents = "No motion events detected in input."

const rule = "-------------------------------------------------------------"

// WriteTable renders events as a fixed-width table.
func WriteTable(w io.Writer, events []detector.Event) error {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("|   Event #    |  Start Time  |   Duration   |   End Time   |\n")
	b.WriteString(rule + "\n")
	for i, ev := range events {
		fmt.Fprintf(&b, "|  Event %4d  |  %s  |  %s  |  %s  |\n",
			i+1, ev.Start.Format(1), ev.Duration().Format(1), ev.End.Format(1))
	}
	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// CSV joins start,end,start,end,... at full precision.
func CSV(events []detector.Event) string {
	parts := make([]string, 0, len(events)*2)
	for _, ev := range events {
		parts = append(parts, ev.Start.String(), ev.End.String())
	}
	return strings.Join(parts, ",")
}

// Write prints the result summary. With csvOnly just the CSV line is written,
// empty when there are no events.
func Write(w io.Writer, result detector.ScanResult, csvOnly bool) error {
	if csvOnly {
		_, err := fmt.Fprintln(w, CSV(result.Events))
		return err
	}
	if len(result.Events) == 0 {
		_, err := fmt.Fprintln(w, NoEvents)
		return err
	}
	if _, err := fmt.Fprintf(w, "Detected %d motion event(s) in %d frames.\n", len(result.Events), result.NumFrames); err != nil {
		return err
	}
	if err := WriteTable(w, result.Events); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Comma-separated timecode values:\n%s\n", CSV(result.Events))
	return err
}
