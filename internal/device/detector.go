package device

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"speechscope/internal/logger"
)

// Detector probes the host for an NVIDIA accelerator and selects the compute
// device for a pipeline invocation
type Detector struct {
	logger   *zap.Logger
	forceCPU bool
}

// NewDetector creates a new device detector instance
func NewDetector(log *zap.Logger) *Detector {
	return &Detector{logger: logger.OrNop(log)}
}

// NewDetectorForceCPU creates a detector that always selects the CPU,
// skipping accelerator probing entirely
func NewDetectorForceCPU(log *zap.Logger) *Detector {
	return &Detector{logger: logger.OrNop(log), forceCPU: true}
}

// Select picks the device context for one pipeline run: the accelerator when
// one is detected, otherwise the CPU. Detection failures never propagate; they
// downgrade to the CPU context.
func (d *Detector) Select() Context {
	if d.forceCPU {
		d.logger.Info("device selection forced to CPU")
		return CPU()
	}

	ctx, err := d.detect()
	if err != nil {
		d.logger.Debug("accelerator detection failed, using CPU", zap.Error(err))
		return CPU()
	}

	d.logger.Info("device selected",
		zap.String("kind", string(ctx.Kind)),
		zap.String("name", ctx.Name),
		zap.Int("device_count", ctx.DeviceCount))
	return ctx
}

// detect tries nvidia-smi first, then CUDA environment variables
func (d *Detector) detect() (Context, error) {
	if ctx, err := d.detectWithNvidiaSMI(); err == nil {
		return ctx, nil
	} else {
		d.logger.Debug("nvidia-smi detection failed", zap.Error(err))
	}

	if ctx, err := d.detectWithCUDAEnv(); err == nil {
		return ctx, nil
	} else {
		d.logger.Debug("CUDA environment detection failed", zap.Error(err))
	}

	return Context{}, fmt.Errorf("no accelerator found")
}

// detectWithNvidiaSMI queries nvidia-smi for device presence and identity
func (d *Detector) detectWithNvidiaSMI() (Context, error) {
	countCmd := exec.Command("nvidia-smi", "--list-gpus")
	countOutput, err := countCmd.Output()
	if err != nil {
		return Context{}, fmt.Errorf("nvidia-smi command failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(countOutput)), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return Context{}, fmt.Errorf("no GPUs listed by nvidia-smi")
	}
	deviceCount := len(lines)

	infoCmd := exec.Command("nvidia-smi", "--query-gpu=name,driver_version", "--format=csv,noheader,nounits", "--id=0")
	infoOutput, err := infoCmd.Output()
	if err != nil {
		return Context{}, fmt.Errorf("nvidia-smi info query failed: %w", err)
	}

	infoLine := strings.SplitN(strings.TrimSpace(string(infoOutput)), "\n", 2)[0]
	parts := strings.Split(infoLine, ",")
	if len(parts) < 2 {
		return Context{}, fmt.Errorf("unexpected nvidia-smi info format: %s", infoLine)
	}

	return Context{
		Kind:          KindCUDA,
		Name:          strings.TrimSpace(parts[0]),
		DeviceCount:   deviceCount,
		DriverVersion: strings.TrimSpace(parts[1]),
	}, nil
}

// detectWithCUDAEnv falls back to CUDA environment variables when nvidia-smi
// is unavailable (common inside containers)
func (d *Detector) detectWithCUDAEnv() (Context, error) {
	visibleDevices := os.Getenv("CUDA_VISIBLE_DEVICES")
	if visibleDevices == "" {
		return Context{}, fmt.Errorf("CUDA_VISIBLE_DEVICES not set")
	}
	if visibleDevices == "-1" {
		return Context{}, fmt.Errorf("CUDA devices hidden by CUDA_VISIBLE_DEVICES=-1")
	}

	devices := strings.Split(visibleDevices, ",")
	return Context{
		Kind:        KindCUDA,
		Name:        "cuda-env",
		DeviceCount: len(devices),
	}, nil
}
