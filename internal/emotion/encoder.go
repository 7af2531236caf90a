package emotion

import (
	"context"
	"fmt"

	"speechscope/internal/device"
)

// HiddenStates holds the per-layer, per-frame activations of a pretrained
// audio encoder: Layers[layer][frame][dim]. Every layer must report the same
// number of frames.
type HiddenStates struct {
	Layers [][][]float64 `json:"hidden_states"`
}

// Validate checks the shape is usable for feature pooling
func (h *HiddenStates) Validate() error {
	if len(h.Layers) == 0 {
		return fmt.Errorf("encoder returned no layers")
	}

	frames := len(h.Layers[0])
	if frames == 0 {
		return fmt.Errorf("encoder returned no frames")
	}

	for i, layer := range h.Layers {
		if len(layer) != frames {
			return fmt.Errorf("layer %d has %d frames, expected %d", i, len(layer), frames)
		}
		dim := len(layer[0])
		if dim == 0 {
			return fmt.Errorf("layer %d has zero-width frames", i)
		}
		for f, frame := range layer {
			if len(frame) != dim {
				return fmt.Errorf("layer %d frame %d has width %d, expected %d", i, f, len(frame), dim)
			}
		}
	}

	return nil
}

// Encoder defines the operations needed from a pretrained audio encoder. It
// consumes a mono 16 kHz WAV slice and exposes all hidden layers so the stage
// can pool its own statistics.
type Encoder interface {
	Load(dev device.Context) error
	Encode(ctx context.Context, wavPath string) (*HiddenStates, error)
	Close() error
}
