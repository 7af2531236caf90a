package transcriber

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
)

// Stage is the speech-to-text stage of the pipeline. It owns the device memory
// budget for the duration of one Run call and releases the model on every exit
// path; a transcription failure invalidates the whole request.
type Stage struct {
	model     SpeechModel
	modelSize string
	precision string
	batchSize int
	logger    *zap.Logger
}

// NewStage creates a transcription stage around the given speech model
func NewStage(model SpeechModel, modelSize, precision string, batchSize int, log *zap.Logger) *Stage {
	return &Stage{
		model:     model,
		modelSize: modelSize,
		precision: precision,
		batchSize: batchSize,
		logger:    logger.OrNop(log),
	}
}

// Run loads the speech model sized for the device, transcribes the full audio
// and returns raw segments plus the detected language. The model is released
// before Run returns, success or failure.
func (s *Stage) Run(ctx context.Context, audioPath string, dev device.Context) (res *Result, err error) {
	s.logger.Info("transcription stage starting",
		zap.String("audio", audioPath),
		zap.String("device", dev.String()))

	if err := s.model.Load(s.modelSize, dev, s.precision); err != nil {
		return nil, fmt.Errorf("load speech model: %w", err)
	}
	defer func() {
		if cerr := s.model.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("release speech model: %w", cerr))
		}
	}()

	result, err := s.model.Transcribe(ctx, audioPath, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}

	s.logger.Info("transcription stage finished",
		zap.Int("segments", len(result.Segments)),
		zap.String("language", result.Language))
	return result, nil
}
