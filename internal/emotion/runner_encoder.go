package emotion

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
)

// RunnerEncoder implements Encoder by shelling out to an encoder runner that
// prints all hidden-state layers for a WAV slice as JSON on stdout
type RunnerEncoder struct {
	mu      sync.Mutex
	runner  string
	model   string
	logger  *zap.Logger
	devName string
	loaded  bool
}

// NewRunnerEncoder creates a RunnerEncoder invoking the given command for the
// given pretrained model identifier
func NewRunnerEncoder(runner, model string, log *zap.Logger) *RunnerEncoder {
	return &RunnerEncoder{
		runner: runner,
		model:  model,
		logger: logger.OrNop(log),
	}
}

// Load resolves the runner and records the target device
func (e *RunnerEncoder) Load(dev device.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := exec.LookPath(e.runner); err != nil {
		return fmt.Errorf("encoder runner %q not found: %w", e.runner, err)
	}

	e.devName = dev.String()
	e.loaded = true

	e.logger.Info("audio encoder ready",
		zap.String("model", e.model),
		zap.String("device", e.devName))
	return nil
}

// Encode extracts hidden states for one audio slice
func (e *RunnerEncoder) Encode(ctx context.Context, wavPath string) (*HiddenStates, error) {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return nil, fmt.Errorf("audio encoder not loaded")
	}
	args := []string{
		"--model", e.model,
		"--device", e.devName,
		wavPath,
	}
	e.mu.Unlock()

	cmd := exec.CommandContext(ctx, e.runner, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("encoder runner failed: %w: %s", err, stderr.String())
	}

	var hs HiddenStates
	if err := json.Unmarshal(out, &hs); err != nil {
		return nil, fmt.Errorf("encoder runner returned invalid JSON: %w", err)
	}
	if err := hs.Validate(); err != nil {
		return nil, fmt.Errorf("encoder output: %w", err)
	}

	return &hs, nil
}

// Close releases the encoder handle. Safe to call more than once.
func (e *RunnerEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loaded = false
	return nil
}
