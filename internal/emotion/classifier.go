package emotion

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"speechscope/internal/segment"
)

// batchNorm holds the inference-time parameters of a normalization layer
type batchNorm struct {
	Gamma []float64 `json:"gamma"`
	Beta  []float64 `json:"beta"`
	Mean  []float64 `json:"running_mean"`
	Var   []float64 `json:"running_var"`
	Eps   float64   `json:"eps"`
}

// denseLayer is one linear block of the classifier: weights, bias, optional
// normalization and optional ReLU
type denseLayer struct {
	Weight     [][]float64 `json:"weight"`
	Bias       []float64   `json:"bias"`
	Norm       *batchNorm  `json:"norm,omitempty"`
	Activation string      `json:"activation,omitempty"`
}

// checkpoint is the on-disk form of the trained classifier
type checkpoint struct {
	Labels []string     `json:"labels"`
	Layers []denseLayer `json:"layers"`
}

// Classifier is the feed-forward emotion head: a stack of normalization-
// regularized linear layers reducing the pooled encoder features to four
// logits. Weights live in a JSON checkpoint produced by the training job;
// the absence of that file is a fatal startup error for the emotion stage.
type Classifier struct {
	labels []segment.Label
	layers []denseLayer
}

// LoadClassifier reads and validates a classifier checkpoint
func LoadClassifier(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emotion classifier checkpoint %s: %w", path, err)
	}

	var ckpt checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("parse emotion classifier checkpoint: %w", err)
	}

	if len(ckpt.Layers) == 0 {
		return nil, fmt.Errorf("emotion classifier checkpoint has no layers")
	}

	if len(ckpt.Labels) != len(segment.Labels) {
		return nil, fmt.Errorf("emotion classifier has %d labels, expected %d", len(ckpt.Labels), len(segment.Labels))
	}
	labels := make([]segment.Label, len(ckpt.Labels))
	for i, raw := range ckpt.Labels {
		label, err := segment.ParseLabel(raw)
		if err != nil {
			return nil, fmt.Errorf("emotion classifier label %d: %w", i, err)
		}
		labels[i] = label
	}

	for i, layer := range ckpt.Layers {
		if err := validateLayer(i, layer); err != nil {
			return nil, err
		}
	}

	last := ckpt.Layers[len(ckpt.Layers)-1]
	if len(last.Weight) != len(labels) {
		return nil, fmt.Errorf("final layer produces %d logits, expected %d", len(last.Weight), len(labels))
	}

	return &Classifier{labels: labels, layers: ckpt.Layers}, nil
}

// validateLayer checks internal shape consistency of one linear block
func validateLayer(idx int, layer denseLayer) error {
	out := len(layer.Weight)
	if out == 0 {
		return fmt.Errorf("layer %d has no weights", idx)
	}

	in := len(layer.Weight[0])
	for r, row := range layer.Weight {
		if len(row) != in {
			return fmt.Errorf("layer %d weight row %d has width %d, expected %d", idx, r, len(row), in)
		}
	}

	if len(layer.Bias) != out {
		return fmt.Errorf("layer %d bias length %d does not match %d outputs", idx, len(layer.Bias), out)
	}

	if n := layer.Norm; n != nil {
		if len(n.Gamma) != out || len(n.Beta) != out || len(n.Mean) != out || len(n.Var) != out {
			return fmt.Errorf("layer %d norm parameters do not match %d outputs", idx, out)
		}
	}

	return nil
}

// InputDim returns the feature vector length the classifier expects
func (c *Classifier) InputDim() int {
	return len(c.layers[0].Weight[0])
}

// Predict runs the forward pass over a pooled feature vector and returns the
// arg-max label with its probability.
func (c *Classifier) Predict(features []float64) (segment.Label, float64, error) {
	probs, err := c.Probabilities(features)
	if err != nil {
		return "", 0, err
	}

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return c.labels[best], probs[best], nil
}

// Probabilities runs the forward pass and returns the softmax distribution
// over the taxonomy, in label order.
func (c *Classifier) Probabilities(features []float64) ([]float64, error) {
	if len(features) != c.InputDim() {
		return nil, fmt.Errorf("feature vector has %d dims, classifier expects %d", len(features), c.InputDim())
	}

	x := features
	for _, layer := range c.layers {
		x = forward(layer, x)
	}

	return softmax(x), nil
}

// forward applies one linear block: y = Wx + b, then norm, then activation
func forward(layer denseLayer, x []float64) []float64 {
	out := len(layer.Weight)
	y := make([]float64, out)

	for i := 0; i < out; i++ {
		sum := layer.Bias[i]
		row := layer.Weight[i]
		for j := range row {
			sum += row[j] * x[j]
		}
		y[i] = sum
	}

	if n := layer.Norm; n != nil {
		for i := 0; i < out; i++ {
			y[i] = n.Gamma[i]*(y[i]-n.Mean[i])/math.Sqrt(n.Var[i]+n.Eps) + n.Beta[i]
		}
	}

	if layer.Activation == "relu" {
		for i := 0; i < out; i++ {
			if y[i] < 0 {
				y[i] = 0
			}
		}
	}

	return y
}

// softmax converts logits to a probability distribution, shifted by the max
// logit for numerical stability
func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
