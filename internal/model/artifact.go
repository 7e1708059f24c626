// Package model loads serialized model artifacts and owns the process-wide
// resource cache. Artifacts are JSON exports of fitted estimators: a binary
// linear classifier plus optional standardization scaler for the tabular
// domains, and a final-layer linear classifier over the flattened input
// tensor for the image domain. The rest of the pipeline depends only on the
// predict / predict-probability capability, not on the artifact format.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"medpredict/internal/schema"
)

// ErrNoProbability is returned by PredictProba when the underlying model was
// exported without probability output.
var ErrNoProbability = errors.New("model does not expose probability output")

// Scorer exposes the scoring capability of a loaded tabular model.
type Scorer interface {
	// Predict returns the discrete class label for a feature vector.
	Predict(x []float64) (int, error)
	// PredictProba returns the per-class probability vector, or
	// ErrNoProbability when the model does not support it. For binary
	// models the positive class is always index 1.
	PredictProba(x []float64) ([]float64, error)
}

// Scaler is a fitted standardization transform. It must be applied to
// tabular features before scoring with the exact fitted parameters; skipping
// it silently produces wrong probabilities.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform standardizes a feature vector in a new slice.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) || len(x) != len(s.Scale) {
		return nil, fmt.Errorf("scaler fitted on %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// LoadScaler reads a fitted scaler artifact from disk.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler artifact %s: %w", path, err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("malformed scaler artifact %s: %d means, %d scales",
			path, len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

type linearArtifact struct {
	Features    []string  `json:"features"`
	Coef        []float64 `json:"coef"`
	Intercept   float64   `json:"intercept"`
	Probability bool      `json:"probability"`
}

// LinearModel is a binary linear classifier (logistic regression export).
// The decision function is sigmoid(w.x + b); class 1 is the positive class.
type LinearModel struct {
	features    []string
	coef        []float64
	intercept   float64
	probability bool
}

// NewLinearModel constructs a classifier directly from fitted parameters.
// Used by tests; production models come from LoadLinear.
func NewLinearModel(features []string, coef []float64, intercept float64, probability bool) (*LinearModel, error) {
	if len(coef) != len(features) {
		return nil, fmt.Errorf("model has %d coefficients for %d features", len(coef), len(features))
	}
	return &LinearModel{
		features:    features,
		coef:        coef,
		intercept:   intercept,
		probability: probability,
	}, nil
}

// LoadLinear reads a tabular model artifact from disk.
func LoadLinear(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a linearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	m, err := NewLinearModel(a.Features, a.Coef, a.Intercept, a.Probability)
	if err != nil {
		return nil, fmt.Errorf("malformed model artifact %s: %w", path, err)
	}
	return m, nil
}

// Features returns the training-time feature names the model expects, in
// order.
func (m *LinearModel) Features() []string { return m.features }

func (m *LinearModel) score(x []float64) (float64, error) {
	if len(x) != len(m.coef) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.coef), len(x))
	}
	z := m.intercept
	for i, v := range x {
		z += m.coef[i] * v
	}
	return sigmoid(z), nil
}

// Predict returns 1 when the positive-class probability exceeds 0.5.
func (m *LinearModel) Predict(x []float64) (int, error) {
	p, err := m.score(x)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

// PredictProba returns [P(class 0), P(class 1)].
func (m *LinearModel) PredictProba(x []float64) ([]float64, error) {
	if !m.probability {
		return nil, ErrNoProbability
	}
	p, err := m.score(x)
	if err != nil {
		return nil, err
	}
	return []float64{1 - p, p}, nil
}

type imageArtifact struct {
	Classes []string    `json:"classes"`
	Weight  [][]float64 `json:"weight"`
	Bias    []float64   `json:"bias"`
}

// ImageModel is the exported classification head of the image classifier:
// a linear map from the flattened normalized input tensor to per-class
// logits. Softmax and arg-max happen in the inference adapter.
type ImageModel struct {
	classes []string
	weight  [][]float64
	bias    []float64
}

// NewImageModel constructs an image classifier from fitted parameters,
// falling back to the supplied class names when the artifact embeds none.
func NewImageModel(classes []string, weight [][]float64, bias []float64, fallbackClasses []string) (*ImageModel, error) {
	if len(classes) == 0 {
		classes = fallbackClasses
	}
	if len(weight) != len(classes) || len(bias) != len(classes) {
		return nil, fmt.Errorf("image model shape mismatch: %d classes, %d weight rows, %d biases",
			len(classes), len(weight), len(bias))
	}
	for i, row := range weight {
		if len(row) != len(weight[0]) {
			return nil, fmt.Errorf("image model weight row %d has %d columns, expected %d",
				i, len(row), len(weight[0]))
		}
	}
	return &ImageModel{classes: classes, weight: weight, bias: bias}, nil
}

// LoadImage reads an image model artifact from disk.
func LoadImage(path string, fallbackClasses []string) (*ImageModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a imageArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse image artifact %s: %w", path, err)
	}
	m, err := NewImageModel(a.Classes, a.Weight, a.Bias, fallbackClasses)
	if err != nil {
		return nil, fmt.Errorf("malformed image artifact %s: %w", path, err)
	}
	return m, nil
}

// Classes returns the ordered output class names.
func (m *ImageModel) Classes() []string { return m.classes }

// Forward runs a single forward pass over the flattened tensor and returns
// raw per-class logits.
func (m *ImageModel) Forward(t *schema.Tensor) ([]float64, error) {
	if len(t.Data) != len(m.weight[0]) {
		return nil, fmt.Errorf("expected input of %d values, got %d", len(m.weight[0]), len(t.Data))
	}
	logits := make([]float64, len(m.classes))
	for c := range m.classes {
		z := m.bias[c]
		row := m.weight[c]
		for i, v := range t.Data {
			z += row[i] * float64(v)
		}
		logits[c] = z
	}
	return logits, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
