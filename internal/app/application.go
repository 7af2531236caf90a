package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"speechscope/internal/aligner"
	"speechscope/internal/config"
	"speechscope/internal/device"
	"speechscope/internal/diarizer"
	"speechscope/internal/emotion"
	"speechscope/internal/logger"
	"speechscope/internal/media"
	"speechscope/internal/pipeline"
	"speechscope/internal/report"
	"speechscope/internal/server"
	"speechscope/internal/transcriber"
)

// Application wires the configuration, inference pipeline, report generator
// and HTTP boundary into one runnable service
type Application struct {
	config    *config.Configuration
	zapLogger *zap.Logger
	pipeline  *pipeline.Pipeline
	server    *server.Server
}

// NewApplication creates an application instance with all components
// initialized. A missing emotion classifier checkpoint is a fatal startup
// error: the service refuses to start rather than degrade every request.
func NewApplication() (*Application, error) {
	var cfg *config.Configuration
	var err error

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.NewConfigurationFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	zapLogger := logger.NewLogger()

	if err := os.MkdirAll(cfg.GetTempDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", cfg.GetTempDir(), err)
	}

	var detector *device.Detector
	if cfg.GetForceCPU() {
		detector = device.NewDetectorForceCPU(zapLogger)
	} else {
		detector = device.NewDetector(zapLogger)
	}

	converter := media.NewConverter(cfg.GetFFmpegPath(), cfg.GetTempDir(), zapLogger)

	speechModel := transcriber.NewRunnerModel(cfg.GetWhisperRunner(), zapLogger)
	transcription := transcriber.NewStage(speechModel,
		cfg.GetWhisperModelSize(), cfg.GetWhisperPrecision(), cfg.GetWhisperBatchSize(), zapLogger)

	alignModel := aligner.NewRunnerModel(cfg.GetAlignRunner(), zapLogger)
	alignment := aligner.NewStage(alignModel, zapLogger)

	diarModel := diarizer.NewRunnerModel(cfg.GetDiarizationRunner(), zapLogger)
	diarization := diarizer.NewStage(diarModel, cfg.GetHFToken(), zapLogger)

	classifier, err := emotion.LoadClassifier(cfg.GetEmotionCheckpointPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load emotion classifier: %w", err)
	}

	encoder := emotion.NewRunnerEncoder(cfg.GetEncoderRunner(), cfg.GetEncoderModel(), zapLogger)
	emotionStage, err := emotion.NewStage(encoder, classifier, converter, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create emotion stage: %w", err)
	}

	pl := pipeline.New(detector, transcription, alignment, diarization, emotionStage, zapLogger)
	pl.TrackResource(speechModel)
	pl.TrackResource(alignModel)
	pl.TrackResource(diarModel)
	pl.TrackResource(encoder)

	reports := report.NewClient(cfg.GetReportURL(), cfg.GetReportModel(),
		time.Duration(cfg.GetReportTimeoutSec())*time.Second, zapLogger)

	srv := server.NewServer(cfg.GetServerAddr(), pl, reports, converter,
		cfg.GetTempDir(), cfg.GetMaxUploadMB(), zapLogger)

	return &Application{
		config:    cfg,
		zapLogger: zapLogger,
		pipeline:  pl,
		server:    srv,
	}, nil
}

// Run serves requests until the context is cancelled or the listener fails
func (app *Application) Run(ctx context.Context) error {
	app.zapLogger.Info("starting speechscope application",
		zap.String("addr", app.config.GetServerAddr()),
		zap.String("whisper_model", app.config.GetWhisperModelSize()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.zapLogger.Info("shutdown signal received, stopping application")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.zapLogger.Error("error during server shutdown", zap.Error(err))
		}
		<-errCh
		return nil
	}
}

// Shutdown releases any model handles a failed run may have left behind
func (app *Application) Shutdown() error {
	app.zapLogger.Info("shutting down application components")

	if err := app.pipeline.Cleanup(); err != nil {
		app.zapLogger.Error("error during pipeline cleanup", zap.Error(err))
	}

	app.zapLogger.Info("application shutdown completed")
	return nil
}
