// Package engine implements the speech model behind the inference gateway
// by invoking the voxcpm binary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/book-expert/logger"

	"github.com/lutaSci/voxcpm-service/internal/audio"
	"github.com/lutaSci/voxcpm-service/internal/core"
)

// Static errors.
var (
	ErrBinaryPathEmpty = errors.New("voxcpm binary path cannot be empty")
	ErrBinaryNotFound  = errors.New("voxcpm binary not found")
	ErrModelPathBad    = errors.New("model path is not accessible")
)

// Config holds the settings for the subprocess engine.
type Config struct {
	BinaryPath        string
	ModelPath         string
	DenoiserModelPath string
	GenerateTimeout   time.Duration
}

// Loader implements core.ModelLoader. Load verifies the binary and model
// location once, standing in for the expensive model initialization the
// binary performs on its side.
type Loader struct {
	config Config
	log    *logger.Logger
}

// NewLoader creates a loader for the subprocess engine.
func NewLoader(cfg Config, log *logger.Logger) *Loader {
	return &Loader{config: cfg, log: log}
}

// Load validates the configured paths and returns a ready engine handle.
func (l *Loader) Load(_ context.Context) (core.SpeechModel, error) {
	if l.config.BinaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	_, err := exec.LookPath(l.config.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, l.config.BinaryPath)
	}

	if l.config.ModelPath != "" {
		_, err = os.Stat(l.config.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrModelPathBad, l.config.ModelPath)
		}
	}

	l.log.Info("VoxCPM engine ready (binary: %s)", l.config.BinaryPath)

	return &Engine{config: l.config, log: l.log}, nil
}

// Engine runs one generation per call by shelling out to the voxcpm binary,
// which writes a WAV file that is read back into samples.
type Engine struct {
	config Config
	log    *logger.Logger
}

// Generate synthesizes one text segment conditioned on the optional prompt.
func (e *Engine) Generate(ctx context.Context, params core.GenerateParams) (core.Audio, error) {
	tempFile, err := os.CreateTemp("", "voxcpm-output-*.wav")
	if err != nil {
		return core.Audio{}, fmt.Errorf("failed to create temp file for engine output: %w", err)
	}

	outputPath := tempFile.Name()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return core.Audio{}, fmt.Errorf("failed to close temp output file: %w", closeErr)
	}

	defer func() {
		removeErr := os.Remove(outputPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			e.log.Warn("Failed to remove temp file '%s': %v", outputPath, removeErr)
		}
	}()

	if e.config.GenerateTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.config.GenerateTimeout)
		defer cancel()
	}

	args := e.buildArgs(params, outputPath)

	// #nosec G204 -- arguments come from validated config and request fields
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return core.Audio{}, fmt.Errorf("voxcpm binary execution failed: %w - output: %s", err, string(output))
	}

	samples, sampleRate, err := audio.DecodeFile(outputPath)
	if err != nil {
		return core.Audio{}, fmt.Errorf("failed to read engine output: %w", err)
	}

	return core.Audio{Samples: samples, SampleRate: sampleRate}, nil
}

func (e *Engine) buildArgs(params core.GenerateParams, outputPath string) []string {
	args := []string{
		"generate",
		"--text", params.Text,
		"--output", outputPath,
		"--cfg-value", fmt.Sprintf("%.2f", params.CFGValue),
		"--inference-timesteps", strconv.Itoa(params.InferenceTimesteps),
	}

	if e.config.ModelPath != "" {
		args = append(args, "--model", e.config.ModelPath)
	}

	if params.PromptAudioPath != "" {
		args = append(args, "--prompt-audio", params.PromptAudioPath)

		if params.PromptText != "" {
			args = append(args, "--prompt-text", params.PromptText)
		}
	}

	if params.Normalize {
		args = append(args, "--normalize")
	}

	if params.Denoise {
		args = append(args, "--denoise")

		if e.config.DenoiserModelPath != "" {
			args = append(args, "--denoiser-model", e.config.DenoiserModelPath)
		}
	}

	return args
}
