package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speechscope/internal/logger"
)

// Converter normalizes audio through an external ffmpeg process: arbitrary
// input in, mono 16 kHz 16-bit PCM WAV out
type Converter struct {
	ffmpegPath string
	tempDir    string
	logger     *zap.Logger
}

// NewConverter creates a Converter using the given ffmpeg binary and temp directory
func NewConverter(ffmpegPath, tempDir string, log *zap.Logger) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Converter{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
		logger:     logger.OrNop(log),
	}
}

// buildArgs assembles the ffmpeg argument list for a convert-and-trim run.
// The -to flag is only emitted when the range has positive length; an end of
// zero means "to the end of the input".
func buildArgs(inputPath, outputPath string, start, end float64) []string {
	args := []string{
		"-i", inputPath,
		"-ss", strconv.FormatFloat(start, 'f', -1, 64),
	}
	if end > start {
		args = append(args, "-to", strconv.FormatFloat(end, 'f', -1, 64))
	}
	args = append(args,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", outputPath,
	)
	return args
}

// ConvertAndTrim converts inputPath to mono 16 kHz PCM WAV at outputPath,
// trimmed to [start, end). A non-zero ffmpeg exit is fatal and carries the
// tool's stderr diagnostics.
func (c *Converter) ConvertAndTrim(ctx context.Context, inputPath, outputPath string, start, end float64) error {
	args := buildArgs(inputPath, outputPath, start, end)

	c.logger.Debug("running ffmpeg",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Float64("start", start),
		zap.Float64("end", end))

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}

	return nil
}

// ExtractRange cuts the [start, end) sub-range of src into a fresh temp WAV
// and returns its path. The caller owns the file and removes it when done.
func (c *Converter) ExtractRange(ctx context.Context, src string, start, end float64) (string, error) {
	out := filepath.Join(c.tempDir, fmt.Sprintf("%s_slice.wav", uuid.NewString()))
	if err := c.ConvertAndTrim(ctx, src, out, start, end); err != nil {
		return "", fmt.Errorf("extract range [%.2f, %.2f): %w", start, end, err)
	}
	return out, nil
}
