package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"speechscope/internal/device"
	"speechscope/internal/logger"
)

// RunnerModel implements DiarizationModel by shelling out to a diarization
// runner that prints speaker intervals as a JSON array on stdout. Credentials
// are passed through the environment, never on the command line.
type RunnerModel struct {
	mu          sync.Mutex
	runner      string
	logger      *zap.Logger
	credentials string
	devName     string
	loaded      bool
}

// NewRunnerModel creates a RunnerModel invoking the given command
func NewRunnerModel(runner string, log *zap.Logger) *RunnerModel {
	return &RunnerModel{
		runner: runner,
		logger: logger.OrNop(log),
	}
}

// Load resolves the runner and records credentials and target device
func (m *RunnerModel) Load(credentials string, dev device.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := exec.LookPath(m.runner); err != nil {
		return fmt.Errorf("diarization runner %q not found: %w", m.runner, err)
	}

	m.credentials = credentials
	m.devName = dev.String()
	m.loaded = true

	m.logger.Info("diarization model ready", zap.String("device", m.devName))
	return nil
}

// Diarize produces speaker-labeled time intervals for the audio file
func (m *RunnerModel) Diarize(ctx context.Context, audioPath string) ([]SpeakerInterval, error) {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return nil, fmt.Errorf("diarization model not loaded")
	}
	args := []string{"--device", m.devName, audioPath}
	credentials := m.credentials
	m.mu.Unlock()

	cmd := exec.CommandContext(ctx, m.runner, args...)
	cmd.Env = append(os.Environ(), "HF_TOKEN="+credentials)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("diarization runner failed: %w: %s", err, stderr.String())
	}

	var intervals []SpeakerInterval
	if err := json.Unmarshal(out, &intervals); err != nil {
		return nil, fmt.Errorf("diarization runner returned invalid JSON: %w", err)
	}

	m.logger.Info("diarization completed", zap.Int("intervals", len(intervals)))
	return intervals, nil
}

// Close releases the model handle. Safe to call more than once.
func (m *RunnerModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = false
	m.credentials = ""
	return nil
}
