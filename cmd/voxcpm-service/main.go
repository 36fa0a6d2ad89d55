// main package for the voxcpm-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/lutaSci/voxcpm-service/internal/artifact"
	"github.com/lutaSci/voxcpm-service/internal/asr"
	"github.com/lutaSci/voxcpm-service/internal/config"
	"github.com/lutaSci/voxcpm-service/internal/engine"
	"github.com/lutaSci/voxcpm-service/internal/gateway"
	"github.com/lutaSci/voxcpm-service/internal/objectstore"
	"github.com/lutaSci/voxcpm-service/internal/segment"
	"github.com/lutaSci/voxcpm-service/internal/tts"
	"github.com/lutaSci/voxcpm-service/internal/voice"
	"github.com/lutaSci/voxcpm-service/internal/worker"
)

func setupLogger(logPath, filename string) (*logger.Logger, error) {
	log, err := logger.New(logPath, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "voxcpm-service-bootstrap.log")
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "voxcpm-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return runService(cfg, finalLog)
}

func runService(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize audio object store: %w", err)
	}

	voices, err := voice.New(cfg.Storage.VoicesDir, log)
	if err != nil {
		return fmt.Errorf("failed to initialize voice store: %w", err)
	}

	artifacts, err := artifact.New(cfg.Storage.GeneratedDir, cfg.ArtifactTTL(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	modelLoader := engine.NewLoader(engine.Config{
		BinaryPath:        cfg.Model.BinaryPath,
		ModelPath:         cfg.Model.ModelPath,
		DenoiserModelPath: cfg.Model.DenoiserModelPath,
		GenerateTimeout:   time.Duration(cfg.Model.GenerateTimeoutSec) * time.Second,
	}, log)

	recognizerLoader := asr.NewLoader(asr.Config{
		BaseURL:  cfg.ASR.BaseURL,
		APIKey:   cfg.ASR.APIKey,
		Model:    cfg.ASR.Model,
		Language: cfg.ASR.Language,
		Timeout:  0,
	})

	inferenceGateway := gateway.New(modelLoader, recognizerLoader, cfg.Service.WorkerCount, log)

	orchestrator := tts.NewOrchestrator(
		inferenceGateway,
		voices,
		artifacts,
		segment.NewSplitter(cfg.Service.SegmentMaxLength),
		tts.Settings{
			MaxTextLength:      cfg.Service.MaxTextLength,
			DefaultCFGValue:    cfg.Model.DefaultCFGValue,
			DefaultInferenceTS: cfg.Model.DefaultTimesteps,
		},
		log,
	)

	natsWorker := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.GenerateSubject,
		cfg.NATS.GenerateStreamSubject,
		audioStore,
		orchestrator,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := artifact.NewSweeper(artifacts, cfg.SweepInterval(), log)
	sweeperDone := make(chan struct{})

	go func() {
		defer close(sweeperDone)

		sweepErr := sweeper.Run(ctx)
		if sweepErr != nil {
			log.Error("Artifact sweeper stopped with error: %v", sweepErr)
		}
	}()

	log.System("VoxCPM service initialized. Listening for jobs on subjects: %s, %s",
		cfg.NATS.GenerateSubject, cfg.NATS.GenerateStreamSubject)

	runErr := natsWorker.Run(ctx)

	// Stop the sweeper and wait for it so no sweep is mid-write when the
	// process exits.
	stop()
	<-sweeperDone

	if runErr != nil {
		return fmt.Errorf("worker stopped with error: %w", runErr)
	}

	log.System("VoxCPM service shut down cleanly.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
