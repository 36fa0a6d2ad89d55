package tts

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType tags a streaming event variant.
type EventType string

// Streaming event types, in the order they may appear. A sequence contains
// alternating progress/audio_chunk pairs and ends with exactly one done or
// error.
const (
	EventProgress   EventType = "progress"
	EventAudioChunk EventType = "audio_chunk"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// ErrUnknownEventType indicates an event variant the encoder does not know.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is the closed set of streaming generation events. Consumers switch
// on the concrete type to handle each variant.
type Event interface {
	Type() EventType
}

// ProgressEvent announces that a segment is about to be generated.
// Segment numbering is 1-based.
type ProgressEvent struct {
	Segment       int `json:"segment"`
	TotalSegments int `json:"total_segments"`
}

// Type implements Event.
func (ProgressEvent) Type() EventType { return EventProgress }

// AudioChunkEvent carries one generated segment as base64 WAV.
type AudioChunkEvent struct {
	Segment         int     `json:"segment"`
	AudioBase64     string  `json:"audio_base64"`
	DurationSeconds float64 `json:"duration"`
}

// Type implements Event.
func (AudioChunkEvent) Type() EventType { return EventAudioChunk }

// DoneEvent terminates a successful sequence.
type DoneEvent struct {
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	TotalSegments        int     `json:"total_segments"`
}

// Type implements Event.
func (DoneEvent) Type() EventType { return EventDone }

// ErrorEvent terminates a failed sequence.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Type implements Event.
func (ErrorEvent) Type() EventType { return EventError }

// IsTerminal reports whether no event may follow ev.
func IsTerminal(ev Event) bool {
	return ev.Type() == EventDone || ev.Type() == EventError
}

// MarshalEvent serializes an event as a tagged JSON envelope, e.g.
// {"event":"progress","segment":1,"total_segments":3}.
func MarshalEvent(ev Event) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch typed := ev.(type) {
	case ProgressEvent:
		data, err = json.Marshal(struct {
			Event EventType `json:"event"`
			ProgressEvent
		}{EventProgress, typed})
	case AudioChunkEvent:
		data, err = json.Marshal(struct {
			Event EventType `json:"event"`
			AudioChunkEvent
		}{EventAudioChunk, typed})
	case DoneEvent:
		data, err = json.Marshal(struct {
			Event EventType `json:"event"`
			DoneEvent
		}{EventDone, typed})
	case ErrorEvent:
		data, err = json.Marshal(struct {
			Event EventType `json:"event"`
			ErrorEvent
		}{EventError, typed})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Type(), err)
	}

	return data, nil
}
