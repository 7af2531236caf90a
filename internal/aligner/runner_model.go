package aligner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
	"speechscope/internal/segment"
)

// alignRequest is the payload handed to the runner on stdin
type alignRequest struct {
	Segments []segment.Span `json:"segments"`
}

// alignResponse is the runner's stdout payload
type alignResponse struct {
	Segments []segment.Span `json:"segments"`
}

// RunnerModel implements AlignModel by shelling out to an alignment runner.
// Raw segments go in on stdin as JSON, refined segments come back on stdout.
type RunnerModel struct {
	mu       sync.Mutex
	runner   string
	logger   *zap.Logger
	language string
	devName  string
	loaded   bool
}

// NewRunnerModel creates a RunnerModel invoking the given command
func NewRunnerModel(runner string, log *zap.Logger) *RunnerModel {
	return &RunnerModel{
		runner: runner,
		logger: logger.OrNop(log),
	}
}

// Load resolves the runner and pins the language-specific model parameters
func (m *RunnerModel) Load(language string, dev device.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if language == "" {
		return fmt.Errorf("%w: empty language code", ErrNoAlignModel)
	}

	if _, err := exec.LookPath(m.runner); err != nil {
		return fmt.Errorf("alignment runner %q not found: %w", m.runner, err)
	}

	m.language = language
	m.devName = dev.String()
	m.loaded = true

	m.logger.Info("alignment model ready",
		zap.String("language", language),
		zap.String("device", m.devName))
	return nil
}

// Align refines segment boundaries for the loaded language
func (m *RunnerModel) Align(ctx context.Context, spans []segment.Span, audioPath string) ([]segment.Span, error) {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return nil, fmt.Errorf("alignment model not loaded")
	}
	args := []string{
		"--language", m.language,
		"--device", m.devName,
		audioPath,
	}
	m.mu.Unlock()

	payload, err := json.Marshal(alignRequest{Segments: spans})
	if err != nil {
		return nil, fmt.Errorf("encode alignment request: %w", err)
	}

	cmd := exec.CommandContext(ctx, m.runner, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("alignment runner failed: %w: %s", err, stderr.String())
	}

	var resp alignResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("alignment runner returned invalid JSON: %w", err)
	}

	m.logger.Info("alignment completed", zap.Int("segments", len(resp.Segments)))
	return resp.Segments, nil
}

// Close releases the model handle. Safe to call more than once.
func (m *RunnerModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = false
	m.language = ""
	return nil
}
