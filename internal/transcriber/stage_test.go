package transcriber

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechscope/internal/device"
	"speechscope/internal/segment"
)

// mockSpeechModel records lifecycle calls so tests can assert the
// load/use/release discipline
type mockSpeechModel struct {
	loadErr       error
	transcribeErr error
	result        *Result

	loadCalls  int
	closeCalls int
	calls      []string
}

func (m *mockSpeechModel) Load(modelSize string, dev device.Context, precision string) error {
	m.loadCalls++
	m.calls = append(m.calls, "load")
	return m.loadErr
}

func (m *mockSpeechModel) Transcribe(ctx context.Context, audioPath string, batchSize int) (*Result, error) {
	m.calls = append(m.calls, "transcribe")
	if m.transcribeErr != nil {
		return nil, m.transcribeErr
	}
	return m.result, nil
}

func (m *mockSpeechModel) Close() error {
	m.closeCalls++
	m.calls = append(m.calls, "close")
	return nil
}

func TestStage_Run_Success(t *testing.T) {
	model := &mockSpeechModel{
		result: &Result{
			Language: "en",
			Segments: []segment.Span{
				{Text: "hello world", Start: 0.0, End: 2.5},
			},
		},
	}
	stage := NewStage(model, "medium", "float16", 8, nil)

	result, err := stage.Run(context.Background(), "audio.wav", device.CPU())

	require.NoError(t, err)
	assert.Equal(t, "en", result.Language)
	assert.Len(t, result.Segments, 1)
	assert.Equal(t, []string{"load", "transcribe", "close"}, model.calls)
}

func TestStage_Run_LoadFailureIsFatal(t *testing.T) {
	model := &mockSpeechModel{loadErr: fmt.Errorf("weights missing")}
	stage := NewStage(model, "medium", "float16", 8, nil)

	result, err := stage.Run(context.Background(), "audio.wav", device.CPU())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "load speech model")
	// Nothing was loaded, so nothing to release
	assert.Equal(t, 0, model.closeCalls)
}

func TestStage_Run_ReleasesModelOnInferenceError(t *testing.T) {
	model := &mockSpeechModel{transcribeErr: fmt.Errorf("out of memory")}
	stage := NewStage(model, "medium", "float16", 8, nil)

	result, err := stage.Run(context.Background(), "audio.wav", device.CPU())

	require.Error(t, err)
	assert.Nil(t, result)
	// The model must be released even when inference fails
	assert.Equal(t, 1, model.closeCalls)
}

func TestRunnerModel_TranscribeBeforeLoad(t *testing.T) {
	model := NewRunnerModel("speechscope-transcribe", nil)

	_, err := model.Transcribe(context.Background(), "audio.wav", 8)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not loaded")
}

func TestRunnerModel_LoadMissingRunner(t *testing.T) {
	model := NewRunnerModel("definitely-not-a-real-binary-7c2f", nil)

	err := model.Load("medium", device.CPU(), "float16")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunnerModel_LoadEmptyModelSize(t *testing.T) {
	model := NewRunnerModel("speechscope-transcribe", nil)

	err := model.Load("", device.CPU(), "float16")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model size cannot be empty")
}

func TestRunnerModel_CloseIsIdempotent(t *testing.T) {
	model := NewRunnerModel("speechscope-transcribe", nil)

	assert.NoError(t, model.Close())
	assert.NoError(t, model.Close())
}
