package emotion

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
	"speechscope/internal/segment"
)

// RangeExtractor cuts a [start, end) sub-range of an audio file into a fresh
// 16 kHz mono WAV and returns its path. Implemented by media.Converter.
type RangeExtractor interface {
	ExtractRange(ctx context.Context, src string, start, end float64) (string, error)
}

// Stage classifies the emotion of each segment. Models are loaded once per
// run, not per segment, and released after the whole batch. Classification
// failures are contained per segment: one bad audio slice degrades to the
// fixed fallback and must never lose the rest of the batch.
type Stage struct {
	encoder    Encoder
	classifier *Classifier
	extractor  RangeExtractor
	logger     *zap.Logger
}

// NewStage creates an emotion stage. The classifier must already be loaded
// from its checkpoint; a missing checkpoint is a startup failure, not a
// per-request one.
func NewStage(encoder Encoder, classifier *Classifier, extractor RangeExtractor, log *zap.Logger) (*Stage, error) {
	if classifier == nil {
		return nil, fmt.Errorf("emotion classifier is required")
	}
	return &Stage{
		encoder:    encoder,
		classifier: classifier,
		extractor:  extractor,
		logger:     logger.OrNop(log),
	}, nil
}

// Annotate classifies every segment and returns one AnnotatedSegment per
// input segment, in the same order. The encoder is released before Annotate
// returns, success or failure.
func (s *Stage) Annotate(ctx context.Context, audioPath string, segs []segment.Segment, dev device.Context) (annotated []segment.AnnotatedSegment, err error) {
	s.logger.Info("emotion stage starting", zap.Int("segments", len(segs)))

	if err := s.encoder.Load(dev); err != nil {
		return nil, fmt.Errorf("load audio encoder: %w", err)
	}
	defer func() {
		if cerr := s.encoder.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("release audio encoder: %w", cerr))
		}
	}()

	annotated = make([]segment.AnnotatedSegment, 0, len(segs))
	fallbacks := 0

	for i, sg := range segs {
		ann := s.ClassifySegment(ctx, audioPath, sg)
		if ann.IsFallback() {
			fallbacks++
			s.logger.Warn("segment classification fell back",
				zap.Int("index", i),
				zap.String("reason", string(ann.Fallback)),
				zap.Float64("start", sg.Start),
				zap.Float64("end", sg.End))
		}

		annotated = append(annotated, segment.AnnotatedSegment{
			Segment: sg,
			Emotion: ann.Label,
			Score:   ann.Score,
		})
	}

	s.logger.Info("emotion stage finished",
		zap.Int("segments", len(annotated)),
		zap.Int("fallbacks", fallbacks))
	return annotated, nil
}

// ClassifySegment classifies one segment, degrading to the fixed fallback on
// any per-segment failure. It never returns an error; the typed fallback
// reason says what went wrong.
func (s *Stage) ClassifySegment(ctx context.Context, audioPath string, sg segment.Segment) Annotation {
	if sg.Duration() <= 0 {
		return fallback(FallbackZeroDuration)
	}

	slicePath, err := s.extractor.ExtractRange(ctx, audioPath, sg.Start, sg.End)
	if err != nil {
		s.logger.Debug("audio slice extraction failed", zap.Error(err))
		return fallback(FallbackAudioExtract)
	}
	defer os.Remove(slicePath)

	hidden, err := s.encoder.Encode(ctx, slicePath)
	if err != nil {
		s.logger.Debug("encoder failed on slice", zap.Error(err))
		return fallback(FallbackEncoder)
	}

	features, err := PoolFeatures(hidden)
	if err != nil {
		s.logger.Debug("feature pooling failed", zap.Error(err))
		return fallback(FallbackEncoder)
	}

	label, score, err := s.classifier.Predict(features)
	if err != nil {
		s.logger.Debug("classifier failed", zap.Error(err))
		return fallback(FallbackClassifier)
	}

	return Annotation{Label: label, Score: score}
}
