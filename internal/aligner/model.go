package aligner

import (
	"context"
	"errors"

	"speechscope/internal/device"
	"speechscope/internal/segment"
)

// ErrNoAlignModel reports that no alignment model exists for a detected
// language. There is no fallback: the pipeline fails the whole request.
var ErrNoAlignModel = errors.New("no alignment model for language")

// AlignModel defines the operations needed from a timestamp alignment engine.
// The model is keyed by language; Load must fail with ErrNoAlignModel when the
// language is unsupported.
type AlignModel interface {
	Load(language string, dev device.Context) error
	Align(ctx context.Context, spans []segment.Span, audioPath string) ([]segment.Span, error)
	Close() error
}
