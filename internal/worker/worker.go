// Package worker exposes speech generation over NATS. It serves batch jobs
// with a single reply event and streaming jobs with a sequence of event
// envelopes published to the reply subject.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/lutaSci/voxcpm-service/internal/core"
	"github.com/lutaSci/voxcpm-service/internal/tts"
)

const jobTimeout = 10 * time.Minute

// ErrNoReplySubject indicates a streaming job arrived without a reply
// subject to publish events to.
var ErrNoReplySubject = errors.New("streaming job has no reply subject")

// Generator is the part of the orchestrator the worker needs.
type Generator interface {
	Generate(ctx context.Context, req tts.Request) (*tts.Result, error)
	GenerateStream(ctx context.Context, req tts.Request) <-chan tts.Event
}

// GenerateJob is the wire format of a speech generation request.
type GenerateJob struct {
	Header             events.EventHeader `json:"header"`
	Text               string             `json:"text"`
	VoiceID            string             `json:"voice_id,omitempty"`
	PromptAudioBase64  string             `json:"prompt_audio_base64,omitempty"`
	PromptText         string             `json:"prompt_text,omitempty"`
	CFGValue           float64            `json:"cfg_value,omitempty"`
	InferenceTimesteps int                `json:"inference_timesteps,omitempty"`
	Normalize          bool               `json:"normalize,omitempty"`
	Denoise            bool               `json:"denoise,omitempty"`
	Format             string             `json:"format,omitempty"`
	Persist            bool               `json:"persist,omitempty"`
}

// AudioGeneratedEvent is the reply to a successful batch job. The audio
// payload itself lives in the object store under AudioKey.
type AudioGeneratedEvent struct {
	Header          events.EventHeader `json:"header"`
	AudioKey        string             `json:"audio_key"`
	AudioID         string             `json:"audio_id,omitempty"`
	Format          string             `json:"format"`
	SampleRate      int                `json:"sample_rate"`
	DurationSeconds float64            `json:"duration_seconds"`
	SegmentCount    int                `json:"segment_count"`
}

// GenerateFailedEvent is the reply to a failed batch job.
type GenerateFailedEvent struct {
	Header events.EventHeader `json:"header"`
	Error  string             `json:"error"`
}

// NatsWorker subscribes to the batch and streaming generation subjects and
// dispatches jobs to the orchestrator.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	streamSubject  string
	store          core.ObjectStore
	generator      Generator
	log            *logger.Logger
}

// NewNatsWorker creates a worker bound to the given subjects.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	streamSubject string,
	store core.ObjectStore,
	generator Generator,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		streamSubject:  streamSubject,
		store:          store,
		generator:      generator,
		log:            log,
	}
}

// Run subscribes to both subjects and blocks until the context is canceled,
// then drains the subscriptions.
func (w *NatsWorker) Run(ctx context.Context) error {
	batchSub, err := w.natsConnection.Subscribe(w.subject, w.handleBatchMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	streamSub, err := w.natsConnection.Subscribe(w.streamSubject, w.handleStreamMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.streamSubject, err)
	}

	<-ctx.Done()

	drainErr := errors.Join(batchSub.Drain(), streamSub.Drain())
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscriptions: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleBatchMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := parseJob(msg)
	if err != nil {
		w.log.Error("Failed to parse generation job: %v", err)

		return
	}

	result, err := w.generator.Generate(ctx, jobToRequest(job))
	if err != nil {
		w.log.Error("Generation failed for workflow %s: %v", job.Header.WorkflowID, err)
		w.replyFailure(msg, job, err)

		return
	}

	audioKey := uuid.NewString() + "." + string(result.Format)

	err = w.store.Upload(ctx, audioKey, result.Audio)
	if err != nil {
		w.log.Error("Failed to upload audio for workflow %s: %v", job.Header.WorkflowID, err)
		w.replyFailure(msg, job, err)

		return
	}

	reply := AudioGeneratedEvent{
		Header:          job.Header,
		AudioKey:        audioKey,
		AudioID:         "",
		Format:          string(result.Format),
		SampleRate:      result.SampleRate,
		DurationSeconds: result.DurationSeconds,
		SegmentCount:    len(result.Segments),
	}
	if result.Artifact != nil {
		reply.AudioID = result.Artifact.ID
	}

	err = w.respond(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply for workflow %s: %v", job.Header.WorkflowID, err)
	}
}

func (w *NatsWorker) handleStreamMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := parseJob(msg)
	if err != nil {
		w.log.Error("Failed to parse streaming generation job: %v", err)

		return
	}

	if msg.Reply == "" {
		w.log.Error("Dropping streaming job for workflow %s: %v", job.Header.WorkflowID, ErrNoReplySubject)

		return
	}

	for event := range w.generator.GenerateStream(ctx, jobToRequest(job)) {
		data, marshalErr := tts.MarshalEvent(event)
		if marshalErr != nil {
			w.log.Error("Failed to marshal %s event for workflow %s: %v",
				event.Type(), job.Header.WorkflowID, marshalErr)

			return
		}

		publishErr := w.natsConnection.Publish(msg.Reply, data)
		if publishErr != nil {
			w.log.Error("Failed to publish %s event for workflow %s: %v",
				event.Type(), job.Header.WorkflowID, publishErr)

			return
		}
	}
}

func (w *NatsWorker) replyFailure(msg *nats.Msg, job *GenerateJob, jobErr error) {
	err := w.respond(msg, GenerateFailedEvent{
		Header: job.Header,
		Error:  jobErr.Error(),
	})
	if err != nil {
		w.log.Error("Failed to publish failure reply for workflow %s: %v", job.Header.WorkflowID, err)
	}
}

func (w *NatsWorker) respond(msg *nats.Msg, reply any) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseJob(msg *nats.Msg) (*GenerateJob, error) {
	var job GenerateJob

	err := json.Unmarshal(msg.Data, &job)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func jobToRequest(job *GenerateJob) tts.Request {
	return tts.Request{
		Text:               job.Text,
		VoiceID:            job.VoiceID,
		PromptAudioBase64:  job.PromptAudioBase64,
		PromptText:         job.PromptText,
		CFGValue:           job.CFGValue,
		InferenceTimesteps: job.InferenceTimesteps,
		Normalize:          job.Normalize,
		Denoise:            job.Denoise,
		OutputFormat:       job.Format,
		Persist:            job.Persist,
	}
}
