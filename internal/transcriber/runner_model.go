package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
)

// RunnerModel implements SpeechModel by shelling out to a transcription runner
// that prints a JSON result on stdout. The runner owns the actual model
// weights; Load verifies the runner exists and pins the inference parameters,
// Close drops them so a stale handle cannot be reused.
type RunnerModel struct {
	mu        sync.Mutex
	runner    string
	logger    *zap.Logger
	modelSize string
	devName   string
	precision string
	loaded    bool
}

// NewRunnerModel creates a RunnerModel invoking the given command
func NewRunnerModel(runner string, log *zap.Logger) *RunnerModel {
	return &RunnerModel{
		runner: runner,
		logger: logger.OrNop(log),
	}
}

// Load resolves the runner binary and records the model parameters
func (m *RunnerModel) Load(modelSize string, dev device.Context, precision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if modelSize == "" {
		return fmt.Errorf("model size cannot be empty")
	}

	if _, err := exec.LookPath(m.runner); err != nil {
		return fmt.Errorf("transcription runner %q not found: %w", m.runner, err)
	}

	m.modelSize = modelSize
	m.devName = dev.String()
	m.precision = precision
	m.loaded = true

	m.logger.Info("speech model ready",
		zap.String("model_size", modelSize),
		zap.String("device", m.devName),
		zap.String("precision", precision))
	return nil
}

// Transcribe runs batched inference over the full audio file
func (m *RunnerModel) Transcribe(ctx context.Context, audioPath string, batchSize int) (*Result, error) {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return nil, fmt.Errorf("speech model not loaded")
	}
	args := []string{
		"--model", m.modelSize,
		"--device", m.devName,
		"--compute-type", m.precision,
		"--batch-size", strconv.Itoa(batchSize),
		audioPath,
	}
	m.mu.Unlock()

	cmd := exec.CommandContext(ctx, m.runner, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("transcription runner failed: %w: %s", err, stderr.String())
	}

	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("transcription runner returned invalid JSON: %w", err)
	}

	if result.Language == "" {
		return nil, fmt.Errorf("transcription runner reported no language")
	}

	m.logger.Info("transcription completed",
		zap.Int("segments", len(result.Segments)),
		zap.String("language", result.Language))
	return &result, nil
}

// Close releases the model handle. Safe to call more than once.
func (m *RunnerModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = false
	m.modelSize = ""
	m.precision = ""
	return nil
}
