package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechscope/internal/device"
	"speechscope/internal/diarizer"
	"speechscope/internal/segment"
	"speechscope/internal/transcriber"
)

type fixedSelector struct{ dev device.Context }

func (s fixedSelector) Select() device.Context { return s.dev }

// recorder tracks stage execution order across all mock stages
type recorder struct {
	order []string
}

type mockTranscription struct {
	rec    *recorder
	result *transcriber.Result
	err    error
}

func (m *mockTranscription) Run(ctx context.Context, audioPath string, dev device.Context) (*transcriber.Result, error) {
	m.rec.order = append(m.rec.order, "transcription")
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockAlignment struct {
	rec      *recorder
	language string
	err      error
}

func (m *mockAlignment) Run(ctx context.Context, spans []segment.Span, language, audioPath string, dev device.Context) ([]segment.Span, error) {
	m.rec.order = append(m.rec.order, "alignment")
	m.language = language
	if m.err != nil {
		return nil, m.err
	}
	return spans, nil
}

type mockDiarization struct {
	rec       *recorder
	intervals []diarizer.SpeakerInterval
	err       error
}

func (m *mockDiarization) Run(ctx context.Context, audioPath string, dev device.Context) ([]diarizer.SpeakerInterval, error) {
	m.rec.order = append(m.rec.order, "diarization")
	if m.err != nil {
		return nil, m.err
	}
	return m.intervals, nil
}

type mockEmotion struct {
	rec     *recorder
	err     error
	started chan struct{}
	release chan struct{}
}

func (m *mockEmotion) Annotate(ctx context.Context, audioPath string, segs []segment.Segment, dev device.Context) ([]segment.AnnotatedSegment, error) {
	m.rec.order = append(m.rec.order, "emotion")
	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]segment.AnnotatedSegment, 0, len(segs))
	for _, s := range segs {
		out = append(out, segment.AnnotatedSegment{Segment: s, Emotion: segment.LabelNeutral, Score: 0.9})
	}
	return out, nil
}

type countingCloser struct {
	closes int
	err    error
}

func (c *countingCloser) Close() error {
	c.closes++
	return c.err
}

func newTestPipeline(rec *recorder) (*Pipeline, *mockTranscription, *mockAlignment, *mockDiarization, *mockEmotion) {
	ts := &mockTranscription{
		rec: rec,
		result: &transcriber.Result{
			Language: "en",
			Segments: []segment.Span{
				{Text: "second utterance", Start: 4.0, End: 6.0},
				{Text: "first utterance", Start: 0.0, End: 2.0},
			},
		},
	}
	as := &mockAlignment{rec: rec}
	ds := &mockDiarization{
		rec: rec,
		intervals: []diarizer.SpeakerInterval{
			{Speaker: "SPEAKER_00", Start: 0.0, End: 3.0},
			{Speaker: "SPEAKER_01", Start: 3.0, End: 10.0},
		},
	}
	es := &mockEmotion{rec: rec}
	p := New(fixedSelector{device.CPU()}, ts, as, ds, es, nil)
	return p, ts, as, ds, es
}

func TestPipeline_Run_StagesExecuteInOrder(t *testing.T) {
	rec := &recorder{}
	p, _, as, _, _ := newTestPipeline(rec)

	result, err := p.Run(context.Background(), "audio.wav")

	require.NoError(t, err)
	assert.Equal(t, []string{"transcription", "alignment", "diarization", "emotion"}, rec.order)
	assert.Equal(t, "en", as.language)
	require.Len(t, result.Segments, 2)
}

func TestPipeline_Run_OutputOrderedByStart(t *testing.T) {
	rec := &recorder{}
	p, _, _, _, _ := newTestPipeline(rec)

	result, err := p.Run(context.Background(), "audio.wav")

	require.NoError(t, err)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, 0.0, result.Segments[0].Start)
	assert.Equal(t, 4.0, result.Segments[1].Start)
}

func TestPipeline_Run_MergesSpeakersAndTimecodes(t *testing.T) {
	rec := &recorder{}
	p, _, _, _, _ := newTestPipeline(rec)

	result, err := p.Run(context.Background(), "audio.wav")

	require.NoError(t, err)
	assert.Equal(t, "SPEAKER_00", result.Segments[0].Speaker)
	assert.Equal(t, "[00:00] first utterance", result.Segments[0].Text)
	assert.Equal(t, "SPEAKER_01", result.Segments[1].Speaker)
	assert.Equal(t, "[00:04] second utterance", result.Segments[1].Text)
	assert.Equal(t,
		"SPEAKER_00: [00:00] first utterance\nSPEAKER_01: [00:04] second utterance\n",
		result.Transcript)
}

func TestPipeline_Run_FatalStageAbortsWithoutPartialResult(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*mockTranscription, *mockAlignment, *mockDiarization, *mockEmotion)
		expectedOrder []string
		expectedError string
	}{
		{
			name: "transcription failure",
			setup: func(ts *mockTranscription, as *mockAlignment, ds *mockDiarization, es *mockEmotion) {
				ts.err = fmt.Errorf("model load failed")
			},
			expectedOrder: []string{"transcription"},
			expectedError: "transcription stage",
		},
		{
			name: "alignment failure",
			setup: func(ts *mockTranscription, as *mockAlignment, ds *mockDiarization, es *mockEmotion) {
				as.err = fmt.Errorf("no model for language")
			},
			expectedOrder: []string{"transcription", "alignment"},
			expectedError: "alignment stage",
		},
		{
			name: "diarization failure",
			setup: func(ts *mockTranscription, as *mockAlignment, ds *mockDiarization, es *mockEmotion) {
				ds.err = fmt.Errorf("diarization failed")
			},
			expectedOrder: []string{"transcription", "alignment", "diarization"},
			expectedError: "diarization stage",
		},
		{
			name: "emotion failure",
			setup: func(ts *mockTranscription, as *mockAlignment, ds *mockDiarization, es *mockEmotion) {
				es.err = fmt.Errorf("encoder load failed")
			},
			expectedOrder: []string{"transcription", "alignment", "diarization", "emotion"},
			expectedError: "emotion stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p, ts, as, ds, es := newTestPipeline(rec)
			tt.setup(ts, as, ds, es)

			result, err := p.Run(context.Background(), "audio.wav")

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), tt.expectedError)
			assert.Equal(t, tt.expectedOrder, rec.order)
		})
	}
}

func TestPipeline_Run_FatalFailureTriggersCleanup(t *testing.T) {
	rec := &recorder{}
	p, ts, _, _, _ := newTestPipeline(rec)
	ts.err = fmt.Errorf("model load failed")
	closer := &countingCloser{}
	p.TrackResource(closer)

	_, err := p.Run(context.Background(), "audio.wav")

	require.Error(t, err)
	assert.Equal(t, 1, closer.closes)
}

func TestPipeline_Cleanup_Idempotent(t *testing.T) {
	rec := &recorder{}
	p, _, _, _, _ := newTestPipeline(rec)
	closer := &countingCloser{}
	p.TrackResource(closer)

	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())

	// The handle tolerates duplicate Close; cleanup itself never raises
	assert.Equal(t, 2, closer.closes)
}

func TestPipeline_Cleanup_AggregatesErrors(t *testing.T) {
	rec := &recorder{}
	p, _, _, _, _ := newTestPipeline(rec)
	p.TrackResource(&countingCloser{err: fmt.Errorf("close one")})
	p.TrackResource(&countingCloser{err: fmt.Errorf("close two")})

	err := p.Cleanup()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "close one")
	assert.Contains(t, err.Error(), "close two")
}

func TestPipeline_Run_AdmissionGateRejectsWhenBusy(t *testing.T) {
	rec := &recorder{}
	p, _, _, _, es := newTestPipeline(rec)
	es.started = make(chan struct{})
	es.release = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), "audio.wav")
		firstDone <- err
	}()

	// Wait until the first invocation holds the slot inside the emotion stage
	select {
	case <-es.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pipeline run never reached the emotion stage")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Run(ctx, "other.wav")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline admission")

	close(es.release)
	require.NoError(t, <-firstDone)
}

func TestPipeline_Run_CancelledContextWhileBusy(t *testing.T) {
	rec := &recorder{}
	p, _, _, _, _ := newTestPipeline(rec)
	// Occupy the slot so admission must wait on the context
	p.slot <- struct{}{}
	defer func() { <-p.slot }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, "audio.wav")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.order)
}
