package transcriber

import (
	"context"

	"speechscope/internal/device"
	"speechscope/internal/segment"
)

// Result is the raw output of speech recognition over the full audio
type Result struct {
	Segments []segment.Span `json:"segments"`
	Language string         `json:"language"`
}

// SpeechModel defines the operations needed from a speech-to-text engine.
// Implementations hold heavy device memory between Load and Close; callers
// must guarantee Close runs on every exit path.
type SpeechModel interface {
	Load(modelSize string, dev device.Context, precision string) error
	Transcribe(ctx context.Context, audioPath string, batchSize int) (*Result, error)
	Close() error
}
