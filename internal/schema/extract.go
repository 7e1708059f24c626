package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"medpredict/internal/domain"
)

// FeatureVector is the ordered numeric input a tabular model expects. Names
// hold the training-time column names in the exact order used at training.
// Never mutated after construction.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Value looks up a feature by its training-time column name.
func (v FeatureVector) Value(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Extract validates a raw payload against the schema and assembles the
// ordered feature vector. The validation policy is applied in order, first
// failure wins: presence, type coercion, range/enum constraint, ordering.
func Extract(s Schema, payload domain.RawPayload) (FeatureVector, error) {
	var missing []string
	for _, f := range s.Fields {
		if _, ok := payload[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return FeatureVector{}, domain.MissingFields(missing)
	}

	vec := FeatureVector{
		Names:  make([]string, 0, len(s.Fields)),
		Values: make([]float64, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		v, err := coerce(f, payload[f.Name])
		if err != nil {
			return FeatureVector{}, err
		}
		if err := checkBounds(f, v); err != nil {
			return FeatureVector{}, err
		}
		vec.Names = append(vec.Names, f.FeatureName())
		vec.Values = append(vec.Values, v)
	}
	return vec, nil
}

// coerce converts an externally supplied JSON scalar to the field's declared
// numeric kind. Numeric strings are accepted; booleans are not.
func coerce(f Field, raw any) (float64, error) {
	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, domain.InvalidValue(f.Name, "%s must be a number, got %q", f.Name, t.String())
		}
		v = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, domain.InvalidValue(f.Name, "%s must be a number, got %q", f.Name, t)
		}
		v = parsed
	default:
		return 0, domain.InvalidValue(f.Name, "%s must be a number, got %v", f.Name, raw)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.InvalidValue(f.Name, "%s must be a finite number", f.Name)
	}
	if f.Kind == Int && v != math.Trunc(v) {
		return 0, domain.InvalidValue(f.Name, "%s must be a whole number, got %v", f.Name, v)
	}
	return v, nil
}

func checkBounds(f Field, v float64) error {
	if len(f.Allowed) > 0 {
		for _, a := range f.Allowed {
			if v == a {
				return nil
			}
		}
		return domain.InvalidValue(f.Name, "%s must be one of %s, got %v", f.Name, allowedList(f.Allowed), v)
	}
	if math.IsInf(f.Max, 1) {
		if v < f.Min {
			return domain.InvalidValue(f.Name, "%s must be at least %v, got %v", f.Name, f.Min, v)
		}
		return nil
	}
	if v < f.Min || v > f.Max {
		return domain.InvalidValue(f.Name, "%s must be between %v and %v, got %v", f.Name, f.Min, f.Max, v)
	}
	return nil
}

func allowedList(allowed []float64) string {
	parts := make([]string, len(allowed))
	for i, a := range allowed {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return strings.Join(parts, ", ")
}
