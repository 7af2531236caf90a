package aligner

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
	"speechscope/internal/segment"
)

// Stage refines coarse transcription timestamps with a language-specific
// alignment model. An unsupported language is fatal; the model is released on
// every exit path.
type Stage struct {
	model  AlignModel
	logger *zap.Logger
}

// NewStage creates an alignment stage around the given model
func NewStage(model AlignModel, log *zap.Logger) *Stage {
	return &Stage{
		model:  model,
		logger: logger.OrNop(log),
	}
}

// Run loads the alignment model for the detected language, refines the given
// spans against the audio and releases the model before returning.
func (s *Stage) Run(ctx context.Context, spans []segment.Span, language, audioPath string, dev device.Context) (aligned []segment.Span, err error) {
	s.logger.Info("alignment stage starting",
		zap.String("language", language),
		zap.Int("segments", len(spans)))

	if err := s.model.Load(language, dev); err != nil {
		return nil, fmt.Errorf("load alignment model: %w", err)
	}
	defer func() {
		if cerr := s.model.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("release alignment model: %w", cerr))
		}
	}()

	aligned, err = s.model.Align(ctx, spans, audioPath)
	if err != nil {
		return nil, fmt.Errorf("align segments: %w", err)
	}

	s.logger.Info("alignment stage finished", zap.Int("segments", len(aligned)))
	return aligned, nil
}
