package emotion

import (
	"fmt"
	"math"
)

// PoolFeatures reduces encoder hidden states to a fixed-length vector: the
// layers are concatenated along the feature dimension, then mean, max and
// standard deviation are taken over time and concatenated in that order. The
// result has length 3 * sum of layer widths, independent of audio duration.
func PoolFeatures(h *HiddenStates) ([]float64, error) {
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hidden states: %w", err)
	}

	frames := len(h.Layers[0])

	totalDim := 0
	for _, layer := range h.Layers {
		totalDim += len(layer[0])
	}

	means := make([]float64, 0, totalDim)
	maxes := make([]float64, 0, totalDim)
	stds := make([]float64, 0, totalDim)

	for _, layer := range h.Layers {
		dim := len(layer[0])
		for d := 0; d < dim; d++ {
			sum := 0.0
			max := math.Inf(-1)
			for f := 0; f < frames; f++ {
				v := layer[f][d]
				sum += v
				if v > max {
					max = v
				}
			}
			mean := sum / float64(frames)

			// Sample standard deviation, zero for a single frame
			std := 0.0
			if frames > 1 {
				ss := 0.0
				for f := 0; f < frames; f++ {
					diff := layer[f][d] - mean
					ss += diff * diff
				}
				std = math.Sqrt(ss / float64(frames-1))
			}

			means = append(means, mean)
			maxes = append(maxes, max)
			stds = append(stds, std)
		}
	}

	vec := make([]float64, 0, 3*totalDim)
	vec = append(vec, means...)
	vec = append(vec, maxes...)
	vec = append(vec, stds...)
	return vec, nil
}
