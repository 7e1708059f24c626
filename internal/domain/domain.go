// Package domain defines the prediction domains supported by the service and
// the types that flow through the prediction pipeline: raw payloads, normalized
// results, and the pipeline error taxonomy.
package domain

import (
	"fmt"
	"time"
)

// Domain identifies one of the supported prediction types. Each domain has
// its own schema, model artifacts, and response shape.
type Domain string

const (
	LungCancer       Domain = "lung-cancer"
	Covid            Domain = "covid"
	Cardiovascular   Domain = "cardiovascular"
	CardiovascularV2 Domain = "cardiovascular-v2"
	EyeDisease       Domain = "eye-disease"
)

// All returns every supported domain in a fixed order.
func All() []Domain {
	return []Domain{LungCancer, Covid, Cardiovascular, CardiovascularV2, EyeDisease}
}

// Parse resolves a route segment to a Domain.
func Parse(s string) (Domain, error) {
	d := Domain(s)
	switch d {
	case LungCancer, Covid, Cardiovascular, CardiovascularV2, EyeDisease:
		return d, nil
	}
	return "", fmt.Errorf("unknown prediction domain %q", s)
}

// IsImage reports whether the domain takes an uploaded image instead of a
// tabular JSON payload.
func (d Domain) IsImage() bool {
	return d == EyeDisease
}

// RawPayload is the untyped field mapping supplied by the caller for tabular
// domains. It is constructed per request and discarded after the pipeline
// completes, optionally echoed into a history record.
type RawPayload map[string]any

// PredictionResult is the normalized, user-facing outcome of one pipeline run.
// Every field present is computed from the same scoring call. Probability
// values are percentages rounded to two decimal places.
type PredictionResult struct {
	Prediction string `json:"prediction"`
	RiskScore  *int   `json:"risk_score,omitempty"`

	// Probability is a map[string]float64 breakdown for lung-cancer and
	// covid, and a single positive-class percentage (float64) for the
	// cardiovascular domains.
	Probability any `json:"probability,omitempty"`

	// Distribution carries the full per-class percentages for eye-disease.
	Distribution map[string]float64 `json:"probability_distribution,omitempty"`

	// OtherConditions lists rule-derived secondary findings (covid only).
	OtherConditions []string `json:"other_conditions,omitempty"`
}

// HistoryRecord is a completed (domain, input, result) triple stored against
// an authenticated identity. Immutable once created.
type HistoryRecord struct {
	ID        string            `json:"id"`
	Identity  string            `json:"identity"`
	Domain    Domain            `json:"domain"`
	Input     RawPayload        `json:"input"`
	Result    *PredictionResult `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
}

// IntPtr is a convenience for populating PredictionResult.RiskScore.
func IntPtr(v int) *int { return &v }
