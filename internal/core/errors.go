package core

import "errors"

// Request validation errors. These are rejected before any inference begins
// and are never retried.
var (
	// ErrTextEmpty indicates that the request text is empty after trimming.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrTextTooLong indicates that the request text exceeds the configured limit.
	ErrTextTooLong = errors.New("text exceeds maximum length")
	// ErrConflictingVoiceRef indicates that both a stored voice id and inline
	// prompt audio were supplied.
	ErrConflictingVoiceRef = errors.New("voice id and inline prompt audio are mutually exclusive")
	// ErrPromptAudioInvalid indicates that inline prompt audio could not be decoded.
	ErrPromptAudioInvalid = errors.New("prompt audio is not valid base64")
)

// Lookup errors, surfaced directly and never retried.
var (
	// ErrVoiceNotFound indicates that no voice profile exists for the given id.
	ErrVoiceNotFound = errors.New("voice not found")
	// ErrArtifactNotFound indicates that the artifact is absent or expired.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Resource errors.
var (
	// ErrModelLoad indicates that the speech model failed to initialize. The
	// gateway returns to the unloaded state so a later request may retry.
	ErrModelLoad = errors.New("speech model load failed")
	// ErrRecognizerLoad indicates that the recognition resource failed to initialize.
	ErrRecognizerLoad = errors.New("recognizer load failed")
	// ErrInference indicates that the model failed while generating a segment.
	ErrInference = errors.New("inference failed")
)
