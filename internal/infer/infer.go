// Package infer invokes a resolved model handle against an extracted feature
// vector or tensor and returns the raw numeric outcome. It owns the
// scaling-before-scoring step for tabular domains and the softmax/arg-max
// step for the image domain; response shaping happens downstream.
package infer

import (
	"errors"
	"fmt"
	"math"

	"medpredict/internal/model"
	"medpredict/internal/schema"
)

// Outcome is the raw model output before normalization.
type Outcome struct {
	// Class is the discrete predicted label. For binary models the
	// positive class is always index 1; for the image domain it is the
	// arg-max class index.
	Class int
	// ClassName is the predicted class name, image domain only.
	ClassName string
	// Classes holds the ordered output class names, image domain only.
	Classes []string
	// Probs is the per-class probability vector. Nil when the model does
	// not expose probability output. May have a single column for models
	// exported with one probability value; that value is the class-1
	// probability and is passed through unchanged rather than dropped.
	Probs []float64
}

// Tabular scores a tabular feature vector. When the handle carries a fitted
// scaler the vector is transformed through it first; this step uses the
// exact fitted parameters and is correctness-critical, not an optimization.
func Tabular(h *model.Handle, vec schema.FeatureVector) (Outcome, error) {
	if h.Scorer == nil {
		return Outcome{}, fmt.Errorf("handle for %s has no tabular scorer", h.Domain)
	}

	x := vec.Values
	if h.Scaler != nil {
		scaled, err := h.Scaler.Transform(x)
		if err != nil {
			return Outcome{}, fmt.Errorf("scale features: %w", err)
		}
		x = scaled
	}

	class, err := h.Scorer.Predict(x)
	if err != nil {
		return Outcome{}, fmt.Errorf("predict: %w", err)
	}

	probs, err := h.Scorer.PredictProba(x)
	if err != nil {
		if errors.Is(err, model.ErrNoProbability) {
			return Outcome{Class: class}, nil
		}
		return Outcome{}, fmt.Errorf("predict probabilities: %w", err)
	}
	return Outcome{Class: class, Probs: probs}, nil
}

// Image runs a single forward pass over the preprocessed tensor, applies
// softmax over the raw logits, and selects the arg-max class as the primary
// prediction. No gradient state exists in this deployment; the pass is pure
// computation.
func Image(h *model.Handle, t *schema.Tensor) (Outcome, error) {
	if h.Image == nil {
		return Outcome{}, fmt.Errorf("handle for %s has no image model", h.Domain)
	}

	logits, err := h.Image.Forward(t)
	if err != nil {
		return Outcome{}, fmt.Errorf("forward pass: %w", err)
	}

	probs := softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return Outcome{
		Class:     best,
		ClassName: h.Image.Classes()[best],
		Classes:   h.Image.Classes(),
		Probs:     probs,
	}, nil
}

// softmax converts raw logits into a probability distribution, shifted by
// the max logit for numerical stability.
func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, z := range logits[1:] {
		if z > max {
			max = z
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, z := range logits {
		out[i] = math.Exp(z - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
