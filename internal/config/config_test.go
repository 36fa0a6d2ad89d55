// Package config_test tests the configuration loading for the voxcpm-service.
package config_test

import (
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutaSci/voxcpm-service/internal/config"
)

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[service]
max_text_length = 5000
segment_max_length = 300
worker_count = 1

[model]
binary_path = "/usr/local/bin/voxcpm"
model_path = "models/voxcpm-1.5"
default_cfg_value = 2.0
default_inference_timesteps = 10
generate_timeout_seconds = 300

[asr]
base_url = "https://api.openai.com/v1/audio/transcriptions"
model = "whisper-1"
language = "en"

[storage]
voices_dir = "voices"
generated_dir = "generated"
artifact_ttl_hours = 24
sweep_interval_minutes = 60

[nats]
url = "nats://127.0.0.1:4222"
generate_subject = "speech.generate"
generate_stream_subject = "speech.generate.stream"
audio_object_store_bucket = "GENERATED_AUDIO"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Service.MaxTextLength)
	assert.Equal(t, 300, cfg.Service.SegmentMaxLength)
	assert.Equal(t, "/usr/local/bin/voxcpm", cfg.Model.BinaryPath)
	assert.InEpsilon(t, 2.0, cfg.Model.DefaultCFGValue, 1e-9)
	assert.Equal(t, "whisper-1", cfg.ASR.Model)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "speech.generate", cfg.NATS.GenerateSubject)
	assert.Equal(t, "speech.generate.stream", cfg.NATS.GenerateStreamSubject)
	assert.Equal(t, "GENERATED_AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, 24*time.Hour, cfg.ArtifactTTL())
	assert.Equal(t, time.Hour, cfg.SweepInterval())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	assert.Equal(t, config.DefaultMaxTextLength, cfg.Service.MaxTextLength)
	assert.Equal(t, config.DefaultSegmentMaxLength, cfg.Service.SegmentMaxLength)
	assert.Equal(t, config.DefaultWorkerCount, cfg.Service.WorkerCount)
	assert.InEpsilon(t, config.DefaultCFGValue, cfg.Model.DefaultCFGValue, 1e-9)
	assert.Equal(t, config.DefaultInferenceTimesteps, cfg.Model.DefaultTimesteps)
	assert.Equal(t, config.DefaultArtifactTTLHours, cfg.Storage.ArtifactTTLHours)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := config.Config{
		Service: config.ServiceConfig{MaxTextLength: 100, SegmentMaxLength: 50, WorkerCount: 1},
		Model:   config.ModelConfig{BinaryPath: "/bin/voxcpm"},
		Storage: config.StorageConfig{VoicesDir: "v", GeneratedDir: "g"},
		NATS:    config.NATSConfig{URL: "nats://localhost:4222"},
	}
	require.NoError(t, valid.Validate())

	noURL := valid
	noURL.NATS.URL = ""
	require.ErrorIs(t, noURL.Validate(), config.ErrNATSURLEmpty)

	noBinary := valid
	noBinary.Model.BinaryPath = ""
	require.ErrorIs(t, noBinary.Validate(), config.ErrModelBinaryEmpty)

	negativeTTL := valid
	negativeTTL.Storage.ArtifactTTLHours = -1
	require.ErrorIs(t, negativeTTL.Validate(), config.ErrNegativeArtifactTTL)

	badTextLength := valid
	badTextLength.Service.MaxTextLength = -1
	require.ErrorIs(t, badTextLength.Validate(), config.ErrTextLengthNotPositive)

	badSegmentLength := valid
	badSegmentLength.Service.SegmentMaxLength = 0
	require.ErrorIs(t, badSegmentLength.Validate(), config.ErrSegmentLengthNotPositive)

	badWorkerCount := valid
	badWorkerCount.Service.WorkerCount = -2
	require.ErrorIs(t, badWorkerCount.Validate(), config.ErrWorkerCountNotPositive)
}
