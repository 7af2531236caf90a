package diarizer

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
)

// Stage produces speaker intervals for the full audio. Model failures are
// fatal for the request; the model is released on every exit path.
type Stage struct {
	model       DiarizationModel
	credentials string
	logger      *zap.Logger
}

// NewStage creates a diarization stage around the given model
func NewStage(model DiarizationModel, credentials string, log *zap.Logger) *Stage {
	return &Stage{
		model:       model,
		credentials: credentials,
		logger:      logger.OrNop(log),
	}
}

// Run loads the diarization model, produces speaker intervals for the audio
// and releases the model before returning.
func (s *Stage) Run(ctx context.Context, audioPath string, dev device.Context) (intervals []SpeakerInterval, err error) {
	s.logger.Info("diarization stage starting", zap.String("audio", audioPath))

	if err := s.model.Load(s.credentials, dev); err != nil {
		return nil, fmt.Errorf("load diarization model: %w", err)
	}
	defer func() {
		if cerr := s.model.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("release diarization model: %w", cerr))
		}
	}()

	intervals, err = s.model.Diarize(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("diarize audio: %w", err)
	}

	s.logger.Info("diarization stage finished", zap.Int("intervals", len(intervals)))
	return intervals, nil
}
