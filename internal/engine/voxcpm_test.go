package engine_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutaSci/voxcpm-service/internal/audio"
	"github.com/lutaSci/voxcpm-service/internal/core"
	"github.com/lutaSci/voxcpm-service/internal/engine"
)

const testSampleRate = 16000

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "engine-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

// writeFixtureWAV encodes a short sine wave to a file the fake binary can
// copy to its output path.
func writeFixtureWAV(t *testing.T, dir string) string {
	t.Helper()

	samples := make([]float64, testSampleRate/10)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(testSampleRate))
	}

	encoded, err := audio.Encode(samples, testSampleRate)
	require.NoError(t, err)

	path := filepath.Join(dir, "fixture.wav")
	require.NoError(t, os.WriteFile(path, encoded, 0o600))

	return path
}

// writeFakeBinary creates a shell script that records its arguments and
// copies the fixture WAV to whatever --output path it was given.
func writeFakeBinary(t *testing.T, dir, fixturePath, argsPath string) string {
	t.Helper()

	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$@" > %q
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then
    out="$2"
  fi
  shift
done
cp %q "$out"
`, argsPath, fixturePath)

	path := filepath.Join(dir, "voxcpm")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o700))

	return path
}

func TestLoaderRejectsEmptyBinaryPath(t *testing.T) {
	t.Parallel()

	loader := engine.NewLoader(engine.Config{}, testLogger(t))

	_, err := loader.Load(context.Background())
	require.ErrorIs(t, err, engine.ErrBinaryPathEmpty)
}

func TestLoaderRejectsMissingBinary(t *testing.T) {
	t.Parallel()

	loader := engine.NewLoader(engine.Config{
		BinaryPath: filepath.Join(t.TempDir(), "no-such-binary"),
	}, testLogger(t))

	_, err := loader.Load(context.Background())
	require.ErrorIs(t, err, engine.ErrBinaryNotFound)
}

func TestLoaderRejectsBadModelPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fixture := writeFixtureWAV(t, dir)
	binary := writeFakeBinary(t, dir, fixture, filepath.Join(dir, "args.txt"))

	loader := engine.NewLoader(engine.Config{
		BinaryPath: binary,
		ModelPath:  filepath.Join(dir, "no-such-model"),
	}, testLogger(t))

	_, err := loader.Load(context.Background())
	require.ErrorIs(t, err, engine.ErrModelPathBad)
}

func TestGenerateReadsBackEngineOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fixture := writeFixtureWAV(t, dir)
	argsPath := filepath.Join(dir, "args.txt")
	binary := writeFakeBinary(t, dir, fixture, argsPath)

	loader := engine.NewLoader(engine.Config{BinaryPath: binary}, testLogger(t))

	model, err := loader.Load(context.Background())
	require.NoError(t, err)

	generated, err := model.Generate(context.Background(), core.GenerateParams{
		Text:               "Hello world.",
		CFGValue:           2.0,
		InferenceTimesteps: 10,
	})
	require.NoError(t, err)

	assert.Len(t, generated.Samples, testSampleRate/10)
	assert.Equal(t, testSampleRate, generated.SampleRate)

	recorded, err := os.ReadFile(argsPath)
	require.NoError(t, err)

	args := strings.Split(strings.TrimSpace(string(recorded)), "\n")
	assert.Equal(t, "generate", args[0])
	assert.Contains(t, args, "--text")
	assert.Contains(t, args, "Hello world.")
	assert.Contains(t, args, "--cfg-value")
	assert.Contains(t, args, "2.00")
	assert.Contains(t, args, "--inference-timesteps")
	assert.Contains(t, args, "10")
	assert.NotContains(t, args, "--prompt-audio")
	assert.NotContains(t, args, "--normalize")
}

func TestGeneratePassesPromptAndFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fixture := writeFixtureWAV(t, dir)
	argsPath := filepath.Join(dir, "args.txt")
	binary := writeFakeBinary(t, dir, fixture, argsPath)

	loader := engine.NewLoader(engine.Config{
		BinaryPath:        binary,
		DenoiserModelPath: fixture,
	}, testLogger(t))

	model, err := loader.Load(context.Background())
	require.NoError(t, err)

	_, err = model.Generate(context.Background(), core.GenerateParams{
		Text:               "Hello.",
		PromptAudioPath:    "/voices/narrator/audio.wav",
		PromptText:         "A calm reading voice.",
		CFGValue:           1.5,
		InferenceTimesteps: 8,
		Normalize:          true,
		Denoise:            true,
	})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsPath)
	require.NoError(t, err)

	args := strings.Split(strings.TrimSpace(string(recorded)), "\n")
	assert.Contains(t, args, "--prompt-audio")
	assert.Contains(t, args, "/voices/narrator/audio.wav")
	assert.Contains(t, args, "--prompt-text")
	assert.Contains(t, args, "A calm reading voice.")
	assert.Contains(t, args, "--normalize")
	assert.Contains(t, args, "--denoise")
	assert.Contains(t, args, "--denoiser-model")
}

func TestGenerateSurfacesSubprocessFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := "#!/bin/sh\necho 'model blew up' >&2\nexit 3\n"
	binary := filepath.Join(dir, "voxcpm")
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o700))

	loader := engine.NewLoader(engine.Config{BinaryPath: binary}, testLogger(t))

	model, err := loader.Load(context.Background())
	require.NoError(t, err)

	_, err = model.Generate(context.Background(), core.GenerateParams{Text: "Hello."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model blew up")
}
