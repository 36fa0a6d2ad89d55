// Package tts coordinates speech generation: it validates requests, resolves
// voice prompts, segments text, drives the inference gateway per segment and
// assembles the resulting audio for batch or streaming delivery.
package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/book-expert/logger"

	"github.com/lutaSci/voxcpm-service/internal/artifact"
	"github.com/lutaSci/voxcpm-service/internal/audio"
	"github.com/lutaSci/voxcpm-service/internal/core"
	"github.com/lutaSci/voxcpm-service/internal/segment"
)

// Request describes one generation request, batch or streaming.
type Request struct {
	Text               string
	VoiceID            string
	PromptAudioBase64  string
	PromptText         string
	CFGValue           float64
	InferenceTimesteps int
	Normalize          bool
	Denoise            bool
	OutputFormat       string
	Persist            bool
}

// Result is the outcome of a batch generation.
type Result struct {
	Audio           []byte
	Format          audio.Format
	SampleRate      int
	DurationSeconds float64
	Segments        []string
	Artifact        *artifact.Metadata
}

// Settings carries the tunable generation defaults and limits.
type Settings struct {
	MaxTextLength      int
	DefaultCFGValue    float64
	DefaultInferenceTS int
}

// Orchestrator runs the full generation pipeline on top of the inference
// gateway.
type Orchestrator struct {
	gateway   core.InferenceGateway
	voices    core.VoiceStore
	artifacts *artifact.Store
	splitter  *segment.Splitter
	settings  Settings
	log       *logger.Logger
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(
	gateway core.InferenceGateway,
	voices core.VoiceStore,
	artifacts *artifact.Store,
	splitter *segment.Splitter,
	settings Settings,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		voices:    voices,
		artifacts: artifacts,
		splitter:  splitter,
		settings:  settings,
		log:       log,
	}
}

// Generate synthesizes the full request into a single WAV payload. A failure
// on any segment fails the whole request; no partial audio is returned.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	err := o.validate(req)
	if err != nil {
		return nil, err
	}

	promptPath, promptText, cleanup, err := o.resolvePrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	segments := o.splitter.Split(req.Text)
	if len(segments) == 0 {
		return nil, core.ErrTextEmpty
	}

	samples := make([]float64, 0)
	sampleRate := 0
	totalDuration := 0.0

	for idx, segmentText := range segments {
		generated, err := o.gateway.RunInference(ctx, o.inferenceParams(req, segmentText, promptPath, promptText))
		if err != nil {
			return nil, fmt.Errorf("segment %d of %d: %w", idx+1, len(segments), err)
		}

		samples = append(samples, generated.Samples...)
		sampleRate = generated.SampleRate
		totalDuration += generated.Duration()
	}

	encoded, err := audio.Encode(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generated audio: %w", err)
	}

	format, fellBack := audio.NormalizeFormat(req.OutputFormat)
	if fellBack {
		o.log.Warn("Unsupported output format %q, falling back to %s", req.OutputFormat, format)
	}

	result := &Result{
		Audio:           encoded,
		Format:          format,
		SampleRate:      sampleRate,
		DurationSeconds: totalDuration,
		Segments:        segments,
		Artifact:        nil,
	}

	if req.Persist {
		meta, err := o.artifacts.Save(uuid.NewString(), encoded, string(format), sampleRate, totalDuration)
		if err != nil {
			return nil, fmt.Errorf("failed to persist generated audio: %w", err)
		}

		result.Artifact = &meta
	}

	return result, nil
}

// GenerateStream synthesizes the request segment by segment, emitting events
// on the returned channel. The channel is closed after a terminal event.
// Persistence is not available in streaming mode.
func (o *Orchestrator) GenerateStream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)
		o.stream(ctx, req, events)
	}()

	return events
}

func (o *Orchestrator) stream(ctx context.Context, req Request, events chan<- Event) {
	emit := func(event Event) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		o.log.Error("Streaming generation failed: %v", err)
		emit(ErrorEvent{Message: err.Error()})
	}

	err := o.validate(req)
	if err != nil {
		fail(err)

		return
	}

	promptPath, promptText, cleanup, err := o.resolvePrompt(ctx, req)
	if err != nil {
		fail(err)

		return
	}
	defer cleanup()

	segments := o.splitter.Split(req.Text)
	if len(segments) == 0 {
		fail(core.ErrTextEmpty)

		return
	}

	totalDuration := 0.0

	for idx, segmentText := range segments {
		if !emit(ProgressEvent{Segment: idx + 1, TotalSegments: len(segments)}) {
			return
		}

		generated, err := o.gateway.RunInference(ctx, o.inferenceParams(req, segmentText, promptPath, promptText))
		if err != nil {
			fail(fmt.Errorf("segment %d of %d: %w", idx+1, len(segments), err))

			return
		}

		encoded, err := audio.Encode(generated.Samples, generated.SampleRate)
		if err != nil {
			fail(fmt.Errorf("failed to encode segment %d: %w", idx+1, err))

			return
		}

		chunk := AudioChunkEvent{
			Segment:         idx + 1,
			AudioBase64:     base64.StdEncoding.EncodeToString(encoded),
			DurationSeconds: generated.Duration(),
		}
		if !emit(chunk) {
			return
		}

		totalDuration += generated.Duration()
	}

	emit(DoneEvent{TotalDurationSeconds: totalDuration, TotalSegments: len(segments)})
}

func (o *Orchestrator) validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return core.ErrTextEmpty
	}

	length := utf8.RuneCountInString(req.Text)
	if length > o.settings.MaxTextLength {
		return fmt.Errorf("%w: %d runes exceeds limit of %d", core.ErrTextTooLong, length, o.settings.MaxTextLength)
	}

	if req.VoiceID != "" && req.PromptAudioBase64 != "" {
		return core.ErrConflictingVoiceRef
	}

	return nil
}

// resolvePrompt materializes the prompt audio reference into a file path and
// its transcript. The returned cleanup removes any temporary file and is
// always safe to call.
func (o *Orchestrator) resolvePrompt(
	ctx context.Context,
	req Request,
) (string, string, func(), error) {
	noop := func() {}

	if req.VoiceID != "" {
		profile, err := o.voices.Get(req.VoiceID)
		if err != nil {
			return "", "", noop, err
		}

		return profile.AudioPath, profile.PromptText, noop, nil
	}

	if req.PromptAudioBase64 == "" {
		return "", "", noop, nil
	}

	rawAudio, err := base64.StdEncoding.DecodeString(req.PromptAudioBase64)
	if err != nil {
		return "", "", noop, fmt.Errorf("%w: %v", core.ErrPromptAudioInvalid, err)
	}

	promptFile, err := os.CreateTemp("", "voxcpm-prompt-*.wav")
	if err != nil {
		return "", "", noop, fmt.Errorf("failed to create prompt temp file: %w", err)
	}

	promptPath := promptFile.Name()
	cleanup := func() {
		removeErr := os.Remove(promptPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			o.log.Warn("Failed to remove prompt temp file %s: %v", promptPath, removeErr)
		}
	}

	_, err = promptFile.Write(rawAudio)
	if err == nil {
		err = promptFile.Close()
	} else {
		_ = promptFile.Close()
	}

	if err != nil {
		cleanup()

		return "", "", noop, fmt.Errorf("failed to write prompt temp file: %w", err)
	}

	promptText := req.PromptText
	if promptText == "" {
		promptText, err = o.gateway.RecognizeText(ctx, promptPath)
		if err != nil {
			cleanup()

			return "", "", noop, fmt.Errorf("failed to transcribe prompt audio: %w", err)
		}
	}

	return promptPath, promptText, cleanup, nil
}

func (o *Orchestrator) inferenceParams(
	req Request,
	segmentText, promptPath, promptText string,
) core.GenerateParams {
	cfgValue := req.CFGValue
	if cfgValue == 0 {
		cfgValue = o.settings.DefaultCFGValue
	}

	timesteps := req.InferenceTimesteps
	if timesteps == 0 {
		timesteps = o.settings.DefaultInferenceTS
	}

	return core.GenerateParams{
		Text:               segmentText,
		PromptAudioPath:    promptPath,
		PromptText:         promptText,
		CFGValue:           cfgValue,
		InferenceTimesteps: timesteps,
		Normalize:          req.Normalize,
		Denoise:            req.Denoise,
	}
}
