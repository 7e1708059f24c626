package pipeline

import (
	"fmt"
	"math"

	"medpredict/internal/domain"
	"medpredict/internal/infer"
	"medpredict/internal/schema"
)

// normalize maps a raw model outcome into the uniform user-facing result for
// one domain. Every field of the result comes from the same scoring call.
// Probabilities are reported as percentages rounded to two decimal places;
// risk scores are the underlying integer class.
func normalize(d domain.Domain, out infer.Outcome, vec schema.FeatureVector) *domain.PredictionResult {
	switch d {
	case domain.LungCancer:
		return normalizeLung(out)
	case domain.Covid:
		return normalizeCovid(out, vec)
	case domain.Cardiovascular:
		return normalizeCardio(out, "Heart Disease")
	case domain.CardiovascularV2:
		return normalizeCardio(out, "Cardiovascular Disease")
	case domain.EyeDisease:
		return normalizeEye(out)
	}
	return &domain.PredictionResult{Prediction: "Unknown domain"}
}

func normalizeLung(out infer.Outcome) *domain.PredictionResult {
	label := "Negative (Low Risk)"
	if out.Class == 1 {
		label = "Positive (High Risk)"
	}
	res := &domain.PredictionResult{
		Prediction: label,
		RiskScore:  domain.IntPtr(out.Class),
	}
	if len(out.Probs) >= 2 {
		res.Probability = map[string]float64{
			"low_risk":  pct(out.Probs[0]),
			"high_risk": pct(out.Probs[1]),
		}
	}
	return res
}

// normalizeCovid decides on the positive-class probability against a strict
// 0.5 threshold rather than the discrete classifier output. This asymmetry
// with the other tabular domains is preserved as observed behavior.
func normalizeCovid(out infer.Outcome, vec schema.FeatureVector) *domain.PredictionResult {
	positive := positiveProb(out)
	label := "COVID-19 Negative"
	if positive > 0.5 {
		label = "COVID-19 Positive"
	}

	res := &domain.PredictionResult{
		Prediction:      label,
		OtherConditions: covidFindings(vec),
	}
	if len(out.Probs) >= 2 {
		res.Probability = map[string]float64{
			"negative": pct(out.Probs[0]),
			"positive": pct(out.Probs[1]),
		}
	}
	return res
}

// covidFindings layers deterministic rule checks over the raw lab values,
// independent of the model output.
func covidFindings(vec schema.FeatureVector) []string {
	var findings []string

	if platelets, ok := vec.Value("platelets"); ok {
		if platelets < 150 {
			findings = append(findings, "Possible Thrombocytopenia (Low Platelets)")
		} else if platelets > 450 {
			findings = append(findings, "Possible Thrombocytosis (High Platelets)")
		}
	}
	if hemoglobin, ok := vec.Value("hemoglobin"); ok {
		if hemoglobin < 12 {
			findings = append(findings, "Possible Anemia (Low Hemoglobin)")
		} else if hemoglobin > 18 {
			findings = append(findings, "Possible Polycythemia (High Hemoglobin)")
		}
	}
	if lymphocytes, ok := vec.Value("lymphocytesP"); ok {
		if lymphocytes < 20 {
			findings = append(findings, "Possible Lymphopenia (Low Lymphocytes %)")
		} else if lymphocytes > 50 {
			findings = append(findings, "Possible Lymphocytosis (High Lymphocytes %)")
		}
	}

	if len(findings) == 0 {
		return []string{"No additional abnormalities detected"}
	}
	return findings
}

func normalizeCardio(out infer.Outcome, condition string) *domain.PredictionResult {
	label := fmt.Sprintf("LOW RISK of %s", condition)
	if out.Class == 1 {
		label = fmt.Sprintf("HIGH RISK of %s", condition)
	}
	res := &domain.PredictionResult{
		Prediction: label,
		RiskScore:  domain.IntPtr(out.Class),
	}
	if len(out.Probs) > 0 {
		res.Probability = pct(positiveProb(out))
	}
	return res
}

func normalizeEye(out infer.Outcome) *domain.PredictionResult {
	var label string
	switch out.ClassName {
	case "Normal":
		label = "No Eye Disease Detected (Normal)"
	case "Other":
		label = "Abnormality Detected (Unspecified Condition)"
	default:
		label = fmt.Sprintf("%s Detected", out.ClassName)
	}
	return &domain.PredictionResult{
		Prediction:   label,
		RiskScore:    domain.IntPtr(out.Class),
		Distribution: classDistribution(out),
	}
}

func classDistribution(out infer.Outcome) map[string]float64 {
	dist := make(map[string]float64, len(out.Probs))
	for i, p := range out.Probs {
		dist[out.Classes[i]] = pct(p)
	}
	return dist
}

// positiveProb extracts the probability of class 1. When the probability
// output has only one column that single value is used directly; when no
// probability output exists, the discrete class stands in (0 or 1).
func positiveProb(out infer.Outcome) float64 {
	switch len(out.Probs) {
	case 0:
		return float64(out.Class)
	case 1:
		return out.Probs[0]
	default:
		return out.Probs[1]
	}
}

// pct converts a probability into a percentage rounded to two decimals.
func pct(p float64) float64 {
	return math.Round(p*100*100) / 100
}
