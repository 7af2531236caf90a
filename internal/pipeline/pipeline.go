package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/diarizer"
	"speechscope/internal/logger"
	"speechscope/internal/segment"
	"speechscope/internal/transcriber"
)

// TranscriptionStage converts audio into raw spans plus a detected language
type TranscriptionStage interface {
	Run(ctx context.Context, audioPath string, dev device.Context) (*transcriber.Result, error)
}

// AlignmentStage refines span timestamps for a given language
type AlignmentStage interface {
	Run(ctx context.Context, spans []segment.Span, language, audioPath string, dev device.Context) ([]segment.Span, error)
}

// DiarizationStage produces speaker-labeled intervals for the audio
type DiarizationStage interface {
	Run(ctx context.Context, audioPath string, dev device.Context) ([]diarizer.SpeakerInterval, error)
}

// EmotionStage annotates each segment with an emotion label and score
type EmotionStage interface {
	Annotate(ctx context.Context, audioPath string, segs []segment.Segment, dev device.Context) ([]segment.AnnotatedSegment, error)
}

// DeviceSelector picks the compute device for one pipeline invocation
type DeviceSelector interface {
	Select() device.Context
}

// Pipeline sequences the heavy inference stages over one audio file. Stages
// run strictly in order, each with exclusive use of the device's memory; a
// single-slot admission gate keeps concurrent invocations from contending for
// the same device.
type Pipeline struct {
	selector      DeviceSelector
	transcription TranscriptionStage
	alignment     AlignmentStage
	diarization   DiarizationStage
	emotion       EmotionStage
	logger        *zap.Logger

	slot chan struct{}

	mu        sync.Mutex
	resources []io.Closer
}

// New creates a pipeline over the given stages
func New(selector DeviceSelector, ts TranscriptionStage, as AlignmentStage, ds DiarizationStage, es EmotionStage, log *zap.Logger) *Pipeline {
	return &Pipeline{
		selector:      selector,
		transcription: ts,
		alignment:     as,
		diarization:   ds,
		emotion:       es,
		logger:        logger.OrNop(log),
		slot:          make(chan struct{}, 1),
	}
}

// TrackResource registers a model handle for best-effort cleanup. Handles are
// closed by Cleanup after a fatal stage failure and at shutdown; their Close
// must be idempotent.
func (p *Pipeline) TrackResource(c io.Closer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources = append(p.resources, c)
}

// Run executes the full staged pipeline over one audio file and returns the
// annotated, ordered result. Any fatal stage failure aborts the run with
// best-effort cleanup and no partial result.
func (p *Pipeline) Run(ctx context.Context, audioPath string) (result *segment.PipelineResult, err error) {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("pipeline admission: %w", ctx.Err())
	}
	defer func() { <-p.slot }()

	defer func() {
		if err != nil {
			if cerr := p.Cleanup(); cerr != nil {
				p.logger.Warn("best-effort cleanup after pipeline failure", zap.Error(cerr))
			}
		}
	}()

	dev := p.selector.Select()
	p.logger.Info("pipeline starting",
		zap.String("audio", audioPath),
		zap.String("device", dev.String()))

	transcription, err := p.transcription.Run(ctx, audioPath, dev)
	if err != nil {
		return nil, fmt.Errorf("transcription stage: %w", err)
	}

	aligned, err := p.alignment.Run(ctx, transcription.Segments, transcription.Language, audioPath, dev)
	if err != nil {
		return nil, fmt.Errorf("alignment stage: %w", err)
	}

	intervals, err := p.diarization.Run(ctx, audioPath, dev)
	if err != nil {
		return nil, fmt.Errorf("diarization stage: %w", err)
	}

	merged := stampTimecodes(diarizer.AssignSpeakers(intervals, aligned))

	annotated, err := p.emotion.Annotate(ctx, audioPath, merged, dev)
	if err != nil {
		return nil, fmt.Errorf("emotion stage: %w", err)
	}

	segment.SortByStart(annotated)

	result = &segment.PipelineResult{
		Segments:   annotated,
		Transcript: segment.BuildTranscript(annotated),
	}

	p.logger.Info("pipeline finished",
		zap.Int("segments", len(annotated)),
		zap.String("language", transcription.Language))
	return result, nil
}

// Cleanup closes every tracked model handle. It is safe to call repeatedly;
// handles are required to tolerate duplicate Close calls.
func (p *Pipeline) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for _, r := range p.resources {
		if cerr := r.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// stampTimecodes produces a new segment list with a [MM:SS] timecode prefixed
// to each segment's text. Input segments are left untouched.
func stampTimecodes(segs []segment.Segment) []segment.Segment {
	out := make([]segment.Segment, 0, len(segs))
	for _, s := range segs {
		out = append(out, segment.Segment{
			Speaker: s.Speaker,
			Text:    segment.FormatTime(s.Start) + " " + strings.TrimSpace(s.Text),
			Start:   s.Start,
			End:     s.End,
		})
	}
	return out
}
