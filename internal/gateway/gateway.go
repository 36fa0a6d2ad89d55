// Package gateway owns the lazily-loaded shared inference resources and
// bounds concurrent access to them.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/book-expert/logger"

	"github.com/lutaSci/voxcpm-service/internal/core"
)

// Gateway fronts one exclusive speech model and one recognition resource.
// Both are loaded on first use; concurrent callers trigger at most one load
// of each. Every model call goes through a bounded worker pool so the
// expensive resource is never oversubscribed.
type Gateway struct {
	modelLoader      core.ModelLoader
	recognizerLoader core.RecognizerLoader
	log              *logger.Logger

	modelReady atomic.Bool
	modelMu    sync.Mutex
	model      core.SpeechModel

	recognizerReady atomic.Bool
	recognizerMu    sync.Mutex
	recognizer      core.Recognizer

	slots chan struct{}
}

// New creates a gateway over the given loaders. workers bounds concurrent
// inference calls; values below one collapse to a single slot, matching the
// model's effectively exclusive nature.
func New(
	modelLoader core.ModelLoader,
	recognizerLoader core.RecognizerLoader,
	workers int,
	log *logger.Logger,
) *Gateway {
	if workers < 1 {
		workers = 1
	}

	return &Gateway{
		modelLoader:      modelLoader,
		recognizerLoader: recognizerLoader,
		log:              log,
		slots:            make(chan struct{}, workers),
	}
}

// EnsureReady loads the speech model if it is not loaded yet. It is safe to
// call from many goroutines: exactly one performs the load while the rest
// wait on the mutex, and callers arriving after a successful load pay only
// an atomic read. A failed load leaves the gateway unloaded so a later call
// retries.
func (g *Gateway) EnsureReady(ctx context.Context) error {
	if g.modelReady.Load() {
		return nil
	}

	g.modelMu.Lock()
	defer g.modelMu.Unlock()

	if g.modelReady.Load() {
		return nil
	}

	g.log.Info("Loading speech model...")

	model, err := g.modelLoader.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrModelLoad, err)
	}

	g.model = model
	g.modelReady.Store(true)

	g.log.Info("Speech model loaded.")

	return nil
}

// RunInference generates audio for one segment. The call blocks until a
// worker slot is free (or ctx ends), then runs the model. A generation
// failure is reported to the caller and leaves the gateway ready.
func (g *Gateway) RunInference(ctx context.Context, params core.GenerateParams) (core.Audio, error) {
	err := g.EnsureReady(ctx)
	if err != nil {
		return core.Audio{}, err
	}

	release, err := g.acquireSlot(ctx)
	if err != nil {
		return core.Audio{}, err
	}
	defer release()

	result, err := g.model.Generate(ctx, params)
	if err != nil {
		return core.Audio{}, fmt.Errorf("%w: %v", core.ErrInference, err)
	}

	return result, nil
}

// RecognizeText transcribes a reference audio file, lazily initializing the
// recognition resource with the same at-most-once semantics as the model.
func (g *Gateway) RecognizeText(ctx context.Context, audioPath string) (string, error) {
	err := g.ensureRecognizer(ctx)
	if err != nil {
		return "", err
	}

	release, err := g.acquireSlot(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	text, err := g.recognizer.Recognize(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to recognize prompt text: %w", err)
	}

	return text, nil
}

func (g *Gateway) ensureRecognizer(ctx context.Context) error {
	if g.recognizerReady.Load() {
		return nil
	}

	g.recognizerMu.Lock()
	defer g.recognizerMu.Unlock()

	if g.recognizerReady.Load() {
		return nil
	}

	g.log.Info("Loading recognition resource...")

	recognizer, err := g.recognizerLoader.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrRecognizerLoad, err)
	}

	g.recognizer = recognizer
	g.recognizerReady.Store(true)

	return nil
}

func (g *Gateway) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for inference slot: %w", ctx.Err())
	}
}
