package infer

import (
	"math"
	"testing"

	"medpredict/internal/domain"
	"medpredict/internal/model"
	"medpredict/internal/schema"
)

func linearHandle(t *testing.T, coef []float64, intercept float64, probability bool) *model.Handle {
	t.Helper()
	names := make([]string, len(coef))
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	m, err := model.NewLinearModel(names, coef, intercept, probability)
	if err != nil {
		t.Fatalf("NewLinearModel failed: %v", err)
	}
	return &model.Handle{Domain: domain.LungCancer, Scorer: m}
}

func TestTabular_ScoresVector(t *testing.T) {
	h := linearHandle(t, []float64{2}, 0, true)
	vec := schema.FeatureVector{Names: []string{"a"}, Values: []float64{3}}

	out, err := Tabular(h, vec)
	if err != nil {
		t.Fatalf("Tabular failed: %v", err)
	}
	if out.Class != 1 {
		t.Errorf("Expected class 1 for positive logit, got %d", out.Class)
	}
	if len(out.Probs) != 2 {
		t.Fatalf("Expected 2 probabilities, got %v", out.Probs)
	}
	if out.Probs[1] <= 0.5 {
		t.Errorf("Expected positive probability above 0.5, got %v", out.Probs[1])
	}
}

func TestTabular_ScalerAppliedBeforeScoring(t *testing.T) {
	h := linearHandle(t, []float64{1}, 0, true)
	// Raw value 10 gives class 1; centered on mean 20 it becomes -10,
	// so the scaler must run first for the prediction to flip.
	h.Scaler = &model.Scaler{Mean: []float64{20}, Scale: []float64{1}}

	out, err := Tabular(h, schema.FeatureVector{Names: []string{"a"}, Values: []float64{10}})
	if err != nil {
		t.Fatalf("Tabular failed: %v", err)
	}
	if out.Class != 0 {
		t.Errorf("Expected class 0 after scaling, got %d", out.Class)
	}
}

func TestTabular_NoProbabilityOutput(t *testing.T) {
	h := linearHandle(t, []float64{1}, 0, false)

	out, err := Tabular(h, schema.FeatureVector{Names: []string{"a"}, Values: []float64{5}})
	if err != nil {
		t.Fatalf("Tabular failed: %v", err)
	}
	if out.Class != 1 {
		t.Errorf("Expected class 1, got %d", out.Class)
	}
	if out.Probs != nil {
		t.Errorf("Expected nil probabilities, got %v", out.Probs)
	}
}

func TestTabular_MissingScorer(t *testing.T) {
	h := &model.Handle{Domain: domain.LungCancer}
	if _, err := Tabular(h, schema.FeatureVector{Values: []float64{1}}); err == nil {
		t.Error("Expected error for handle without scorer")
	}
}

func TestImage_SoftmaxArgmax(t *testing.T) {
	m, err := model.NewImageModel(
		[]string{"Cataract", "Normal", "Other"},
		[][]float64{{1}, {3}, {2}},
		[]float64{0, 0, 0},
		nil,
	)
	if err != nil {
		t.Fatalf("NewImageModel failed: %v", err)
	}
	h := &model.Handle{Domain: domain.EyeDisease, Image: m}

	tensor := &schema.Tensor{Channels: 1, Height: 1, Width: 1, Data: []float32{1}}
	out, err := Image(h, tensor)
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}

	if out.Class != 1 || out.ClassName != "Normal" {
		t.Errorf("Expected arg-max class Normal(1), got %s(%d)", out.ClassName, out.Class)
	}
	var sum float64
	for _, p := range out.Probs {
		if p <= 0 || p >= 1 {
			t.Errorf("Expected probabilities in (0,1), got %v", out.Probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Probabilities sum to %v, expected 1", sum)
	}
	if out.Probs[1] <= out.Probs[2] || out.Probs[2] <= out.Probs[0] {
		t.Errorf("Expected softmax to preserve logit order, got %v", out.Probs)
	}
}

func TestImage_MissingModel(t *testing.T) {
	h := &model.Handle{Domain: domain.EyeDisease}
	tensor := &schema.Tensor{Channels: 1, Height: 1, Width: 1, Data: []float32{1}}
	if _, err := Image(h, tensor); err == nil {
		t.Error("Expected error for handle without image model")
	}
}
