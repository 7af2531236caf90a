package emotion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechscope/internal/segment"
)

// writeCheckpoint marshals a checkpoint to a temp file and returns its path
func writeCheckpoint(t *testing.T, ckpt checkpoint) string {
	t.Helper()
	data, err := json.Marshal(ckpt)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "classifier.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// testCheckpoint builds a small valid two-layer classifier: 2 -> 2 (relu) -> 4
func testCheckpoint() checkpoint {
	return checkpoint{
		Labels: []string{"sad", "angry", "neutral", "positive"},
		Layers: []denseLayer{
			{
				Weight:     [][]float64{{1, 0}, {0, 1}},
				Bias:       []float64{0, 0},
				Activation: "relu",
			},
			{
				Weight: [][]float64{{1, 0}, {0, 1}, {0, 0}, {0, 0}},
				Bias:   []float64{0, 0, 0, 0},
			},
		},
	}
}

func TestLoadClassifier_MissingFileIsFatal(t *testing.T) {
	_, err := LoadClassifier("/nonexistent/classifier.json")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read emotion classifier checkpoint")
}

func TestLoadClassifier_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadClassifier(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse emotion classifier checkpoint")
}

func TestLoadClassifier_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*checkpoint)
	}{
		{
			name:   "no layers",
			mutate: func(c *checkpoint) { c.Layers = nil },
		},
		{
			name:   "wrong label count",
			mutate: func(c *checkpoint) { c.Labels = []string{"sad", "angry"} },
		},
		{
			name:   "unknown label",
			mutate: func(c *checkpoint) { c.Labels[0] = "bored" },
		},
		{
			name:   "bias length mismatch",
			mutate: func(c *checkpoint) { c.Layers[0].Bias = []float64{0} },
		},
		{
			name:   "ragged weight rows",
			mutate: func(c *checkpoint) { c.Layers[0].Weight[1] = []float64{1} },
		},
		{
			name:   "final layer logit count mismatch",
			mutate: func(c *checkpoint) { c.Layers[1].Weight = c.Layers[1].Weight[:3]; c.Layers[1].Bias = c.Layers[1].Bias[:3] },
		},
		{
			name: "norm parameter length mismatch",
			mutate: func(c *checkpoint) {
				c.Layers[0].Norm = &batchNorm{Gamma: []float64{1}, Beta: []float64{0}, Mean: []float64{0}, Var: []float64{1}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ckpt := testCheckpoint()
			tt.mutate(&ckpt)
			path := writeCheckpoint(t, ckpt)

			_, err := LoadClassifier(path)

			assert.Error(t, err)
		})
	}
}

func TestClassifier_Predict(t *testing.T) {
	path := writeCheckpoint(t, testCheckpoint())
	clf, err := LoadClassifier(path)
	require.NoError(t, err)

	// Input [1, -1]: relu clamps the second feature, so the "sad" logit wins
	label, score, err := clf.Predict([]float64{1, -1})

	require.NoError(t, err)
	assert.Equal(t, segment.LabelSad, label)
	assert.Greater(t, score, 0.25)
	assert.LessOrEqual(t, score, 1.0)
}

func TestClassifier_ProbabilitiesSumToOne(t *testing.T) {
	path := writeCheckpoint(t, testCheckpoint())
	clf, err := LoadClassifier(path)
	require.NoError(t, err)

	probs, err := clf.Probabilities([]float64{0.3, 2.1})

	require.NoError(t, err)
	require.Len(t, probs, 4)
	sum := 0.0
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestClassifier_PredictRejectsWrongInputDim(t *testing.T) {
	path := writeCheckpoint(t, testCheckpoint())
	clf, err := LoadClassifier(path)
	require.NoError(t, err)

	_, _, err = clf.Predict([]float64{1, 2, 3})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier expects")
}

func TestClassifier_NormalizationApplied(t *testing.T) {
	ckpt := testCheckpoint()
	// Scale the first logit path down so the second wins after normalization
	ckpt.Layers[1].Norm = &batchNorm{
		Gamma: []float64{0.1, 10, 1, 1},
		Beta:  []float64{0, 0, 0, 0},
		Mean:  []float64{0, 0, 0, 0},
		Var:   []float64{1, 1, 1, 1},
		Eps:   0,
	}
	path := writeCheckpoint(t, ckpt)
	clf, err := LoadClassifier(path)
	require.NoError(t, err)

	label, _, err := clf.Predict([]float64{1, 1})

	require.NoError(t, err)
	assert.Equal(t, segment.LabelAngry, label)
}

func TestClassifier_InputDim(t *testing.T) {
	path := writeCheckpoint(t, testCheckpoint())
	clf, err := LoadClassifier(path)
	require.NoError(t, err)

	assert.Equal(t, 2, clf.InputDim())
}
