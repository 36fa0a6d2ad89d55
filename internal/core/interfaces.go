// Package core defines the domain interfaces and shared types for the
// speech generation service.
package core

import "context"

// Audio is the result of a single inference call: raw mono samples in the
// range [-1.0, 1.0] plus the rate they were produced at.
type Audio struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the audio length in seconds.
func (a Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}

	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// GenerateParams holds the inputs for one segment-level inference call.
type GenerateParams struct {
	Text               string
	PromptAudioPath    string
	PromptText         string
	CFGValue           float64
	InferenceTimesteps int
	Normalize          bool
	Denoise            bool
}

// SpeechModel is a loaded handle to the neural TTS model.
type SpeechModel interface {
	Generate(ctx context.Context, params GenerateParams) (Audio, error)
}

// ModelLoader performs the expensive one-time load of a SpeechModel.
type ModelLoader interface {
	Load(ctx context.Context) (SpeechModel, error)
}

// Recognizer transcribes a reference audio file to text.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (string, error)
}

// RecognizerLoader performs the one-time initialization of a Recognizer.
type RecognizerLoader interface {
	Load(ctx context.Context) (Recognizer, error)
}

// InferenceGateway is the concurrency-safe front to the shared model and
// recognizer resources. Implementations guarantee at-most-once loading and
// bound the number of in-flight inference calls.
type InferenceGateway interface {
	EnsureReady(ctx context.Context) error
	RunInference(ctx context.Context, params GenerateParams) (Audio, error)
	RecognizeText(ctx context.Context, audioPath string) (string, error)
}

// VoiceProfile is a stored reference voice: an audio sample on disk plus the
// transcript that conditions synthesis on it.
type VoiceProfile struct {
	ID         string `json:"voice_id"`
	Name       string `json:"voice_name"`
	PromptText string `json:"prompt_text"`
	AudioPath  string `json:"-"`
}

// VoiceStore supplies stored voice profiles. The generation core never
// mutates it.
type VoiceStore interface {
	Get(id string) (VoiceProfile, error)
	Exists(id string) bool
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
