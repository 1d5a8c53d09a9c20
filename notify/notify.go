// Package notify - Publishes finalized motion events to external sinks.
package notify

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/nvr-ai/motionscan/detector"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the payload encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts "json" or "msgpack".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	}
	return "", errors.Errorf("unknown payload format %q", s)
}

// EventMessage is the payload published for each event.
type EventMessage struct {
	ScanID          string  `json:"scan_id" msgpack:"scan_id"`
	EventID         string  `json:"event_id" msgpack:"event_id"`
	Index           int     `json:"index" msgpack:"index"`
	Input           string  `json:"input" msgpack:"input"`
	Start           string  `json:"start" msgpack:"start"`
	End             string  `json:"end" msgpack:"end"`
	StartSeconds    float64 `json:"start_seconds" msgpack:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds" msgpack:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds" msgpack:"duration_seconds"`
}

// NewEventMessage describes event index (1-based) of a scan.
func NewEventMessage(scanID, input string, index int, ev detector.Event) EventMessage {
	return EventMessage{
		ScanID:          scanID,
		EventID:         uuid.NewString(),
		Index:           index,
		Input:           input,
		Start:           ev.Start.String(),
		End:             ev.End.String(),
		StartSeconds:    ev.Start.Seconds(),
		EndSeconds:      ev.End.Seconds(),
		DurationSeconds: ev.Duration().Seconds(),
	}
}

// Encode serializes m in the given format.
func (m EventMessage) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.Marshal(m)
	case FormatMsgpack:
		return msgpack.Marshal(m)
	}
	return nil, errors.Errorf("unknown payload format %q", format)
}

// Publisher delivers event messages.
type Publisher interface {
	Publish(msg EventMessage) error
	Close() error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(EventMessage) error { return nil }
func (Nop) Close() error               { return nil }
