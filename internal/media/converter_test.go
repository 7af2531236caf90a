package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs_WithTrimRange(t *testing.T) {
	args := buildArgs("in.mp3", "out.wav", 1.5, 10.0)

	assert.Equal(t, []string{
		"-i", "in.mp3",
		"-ss", "1.5",
		"-to", "10",
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", "out.wav",
	}, args)
}

func TestBuildArgs_NoEndMeansFullLength(t *testing.T) {
	args := buildArgs("in.mp3", "out.wav", 0.0, 0.0)

	assert.NotContains(t, args, "-to")
	assert.Contains(t, args, "-ss")
}

func TestBuildArgs_EndBeforeStartDropsTo(t *testing.T) {
	args := buildArgs("in.mp3", "out.wav", 5.0, 2.0)

	assert.NotContains(t, args, "-to")
}

func TestConverter_ConvertAndTrim_ToolFailure(t *testing.T) {
	// Point at a binary that exits non-zero so the error path is exercised
	conv := NewConverter("false", t.TempDir(), nil)

	err := conv.ConvertAndTrim(context.Background(), "missing.mp3", "out.wav", 0, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg failed")
}

func TestConverter_ExtractRange_ToolFailure(t *testing.T) {
	conv := NewConverter("false", t.TempDir(), nil)

	path, err := conv.ExtractRange(context.Background(), "missing.wav", 1.0, 2.0)

	require.Error(t, err)
	assert.Empty(t, path)
	assert.Contains(t, err.Error(), "extract range")
}

func TestConverter_DefaultsBinaryName(t *testing.T) {
	conv := NewConverter("", t.TempDir(), nil)

	assert.Equal(t, "ffmpeg", conv.ffmpegPath)
}
