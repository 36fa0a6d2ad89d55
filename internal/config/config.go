// Package config provides the configuration structure for the voxcpm-service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Default settings applied to zero-valued configuration fields.
const (
	DefaultCFGValue           = 2.0
	DefaultInferenceTimesteps = 10
	DefaultMaxTextLength      = 5000
	DefaultSegmentMaxLength   = 300
	DefaultWorkerCount        = 1
	DefaultArtifactTTLHours   = 24
	DefaultSweepIntervalMins  = 60
)

// Static validation errors.
var (
	ErrNATSURLEmpty             = errors.New("nats url cannot be empty")
	ErrVoicesDirEmpty           = errors.New("voices directory cannot be empty")
	ErrGeneratedDirEmpty        = errors.New("generated audio directory cannot be empty")
	ErrModelBinaryEmpty         = errors.New("model binary path cannot be empty")
	ErrNegativeArtifactTTL      = errors.New("artifact ttl cannot be negative")
	ErrTextLengthNotPositive    = errors.New("max text length must be positive")
	ErrSegmentLengthNotPositive = errors.New("segment max length must be positive")
	ErrWorkerCountNotPositive   = errors.New("worker count must be positive")
)

// ServiceConfig holds the request-level limits and worker sizing.
type ServiceConfig struct {
	MaxTextLength    int `toml:"max_text_length"`
	SegmentMaxLength int `toml:"segment_max_length"`
	WorkerCount      int `toml:"worker_count"`
}

// ModelConfig holds the configuration for the VoxCPM inference engine.
type ModelConfig struct {
	BinaryPath         string  `toml:"binary_path"`
	ModelPath          string  `toml:"model_path"`
	DenoiserModelPath  string  `toml:"denoiser_model_path"`
	DefaultCFGValue    float64 `toml:"default_cfg_value"`
	DefaultTimesteps   int     `toml:"default_inference_timesteps"`
	GenerateTimeoutSec int     `toml:"generate_timeout_seconds"`
}

// ASRConfig holds the configuration for the prompt transcription client.
type ASRConfig struct {
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// StorageConfig holds the on-disk layout and artifact expiration settings.
type StorageConfig struct {
	VoicesDir            string `toml:"voices_dir"`
	GeneratedDir         string `toml:"generated_dir"`
	ArtifactTTLHours     int    `toml:"artifact_ttl_hours"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
}

// NATSConfig holds the configuration for the NATS delivery surface.
type NATSConfig struct {
	URL                    string `toml:"url"`
	GenerateSubject        string `toml:"generate_subject"`
	GenerateStreamSubject  string `toml:"generate_stream_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Model   ModelConfig   `toml:"model"`
	ASR     ASRConfig     `toml:"asr"`
	Storage StorageConfig `toml:"storage"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the voxcpm-service and applies defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with the package defaults.
func (c *Config) ApplyDefaults() {
	if c.Service.MaxTextLength == 0 {
		c.Service.MaxTextLength = DefaultMaxTextLength
	}

	if c.Service.SegmentMaxLength == 0 {
		c.Service.SegmentMaxLength = DefaultSegmentMaxLength
	}

	if c.Service.WorkerCount == 0 {
		c.Service.WorkerCount = DefaultWorkerCount
	}

	if c.Model.DefaultCFGValue == 0 {
		c.Model.DefaultCFGValue = DefaultCFGValue
	}

	if c.Model.DefaultTimesteps == 0 {
		c.Model.DefaultTimesteps = DefaultInferenceTimesteps
	}

	if c.Storage.ArtifactTTLHours == 0 {
		c.Storage.ArtifactTTLHours = DefaultArtifactTTLHours
	}

	if c.Storage.SweepIntervalMinutes == 0 {
		c.Storage.SweepIntervalMinutes = DefaultSweepIntervalMins
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return ErrNATSURLEmpty
	}

	if c.Storage.VoicesDir == "" {
		return ErrVoicesDirEmpty
	}

	if c.Storage.GeneratedDir == "" {
		return ErrGeneratedDirEmpty
	}

	if c.Model.BinaryPath == "" {
		return ErrModelBinaryEmpty
	}

	if c.Storage.ArtifactTTLHours < 0 {
		return ErrNegativeArtifactTTL
	}

	if c.Service.MaxTextLength <= 0 {
		return ErrTextLengthNotPositive
	}

	if c.Service.SegmentMaxLength <= 0 {
		return ErrSegmentLengthNotPositive
	}

	if c.Service.WorkerCount <= 0 {
		return ErrWorkerCountNotPositive
	}

	return nil
}

// ArtifactTTL returns the configured artifact time-to-live as a duration.
func (c *Config) ArtifactTTL() time.Duration {
	return time.Duration(c.Storage.ArtifactTTLHours) * time.Hour
}

// SweepInterval returns the configured sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Storage.SweepIntervalMinutes) * time.Minute
}
