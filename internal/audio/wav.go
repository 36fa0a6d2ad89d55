// Package audio provides conversion between raw model samples and WAV data
// for the speech generation service.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Format represents a supported output audio format.
type Format string

// Supported output formats. WAV is the native format; other requests fall
// back to it.
const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// PCM encoding parameters for generated audio.
const (
	bitDepth    = 16
	numChannels = 1
	wavFormat   = 1 // PCM

	maxInt16 = 32767
	pcmScale = 32768.0
)

// Static errors.
var (
	ErrNoSamples        = errors.New("no samples to encode")
	ErrInvalidRate      = errors.New("sample rate must be positive")
	ErrNotAWAVFile      = errors.New("not a valid wav file")
	ErrUnsupportedDepth = errors.New("unsupported wav bit depth")
)

// NormalizeFormat maps a requested format string to the format actually
// produced. Anything other than wav falls back to wav; the second return
// reports that a fallback happened so the caller can warn.
func NormalizeFormat(requested string) (Format, bool) {
	switch Format(requested) {
	case FormatWAV, Format(""):
		return FormatWAV, false
	default:
		return FormatWAV, true
	}
}

// Encode serializes mono float samples to 16-bit PCM WAV bytes. Samples
// outside [-1, 1] are clamped.
func Encode(samples []float64, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	if sampleRate <= 0 {
		return nil, ErrInvalidRate
	}

	// The wav encoder requires a seekable writer to backfill the header, so
	// the encode goes through a temp file.
	tempFile, err := os.CreateTemp("", "voxcpm-encode-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for wav encode: %w", err)
	}

	tempPath := tempFile.Name()

	defer func() {
		_ = os.Remove(tempPath)
	}()

	intData := make([]int, len(samples))
	for i, sample := range samples {
		clamped := math.Max(-1.0, math.Min(1.0, sample))
		intData[i] = int(clamped * maxInt16)
	}

	encoder := wav.NewEncoder(tempFile, sampleRate, bitDepth, numChannels, wavFormat)
	buffer := &goaudio.IntBuffer{
		Data:           intData,
		Format:         &goaudio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}

	err = encoder.Write(buffer)
	if err != nil {
		_ = tempFile.Close()

		return nil, fmt.Errorf("failed to write wav data: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		_ = tempFile.Close()

		return nil, fmt.Errorf("failed to finalize wav data: %w", err)
	}

	err = tempFile.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to close temp wav file: %w", err)
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoded wav data: %w", err)
	}

	return data, nil
}

// DecodeFile reads a WAV file into mono float samples in [-1, 1] plus the
// sample rate it was recorded at.
func DecodeFile(path string) ([]float64, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open wav file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotAWAVFile, path)
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode wav data: %w", err)
	}

	scale, err := pcmScaleForDepth(int(decoder.BitDepth))
	if err != nil {
		return nil, 0, err
	}

	samples := make([]float64, len(buffer.Data))
	for i, value := range buffer.Data {
		samples[i] = float64(value) / scale
	}

	return samples, int(decoder.SampleRate), nil
}

func pcmScaleForDepth(depth int) (float64, error) {
	switch depth {
	case 8, 16, 24, 32:
		return float64(int64(1) << (depth - 1)), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedDepth, depth)
	}
}

// FormatDuration renders a duration in seconds as mm:ss.mmm for logs.
func FormatDuration(seconds float64) string {
	minutes := int(seconds) / 60
	remainder := seconds - float64(minutes*60)

	return fmt.Sprintf("%02d:%06.3f", minutes, remainder)
}
