// Package schema declares, per prediction domain, the required payload fields,
// their validation rules, and the exact ordered feature vector the trained
// model expects. The feature order here must match training time exactly;
// reordering or omitting a field is a correctness bug.
package schema

import (
	"math"

	"medpredict/internal/domain"
)

// Kind is the declared value kind of a tabular field.
type Kind int

const (
	// Int fields must coerce to a whole number.
	Int Kind = iota
	// Float fields accept any finite numeric value.
	Float
)

// Field describes one required payload field and its validity predicate.
type Field struct {
	Name    string    // public field name in the request payload
	Feature string    // training-time feature name; empty means same as Name
	Kind    Kind
	Min     float64   // inclusive lower bound (when Allowed is empty)
	Max     float64   // inclusive upper bound (when Allowed is empty)
	Allowed []float64 // discrete allowed set; overrides Min/Max when set
}

// FeatureName returns the training-time column name for the field.
func (f Field) FeatureName() string {
	if f.Feature != "" {
		return f.Feature
	}
	return f.Name
}

// ImageSpec carries the fixed preprocessing contract for the image domain:
// input resolution, RGB channel order, per-channel normalization constants,
// accepted file extensions, and the ordered fallback class-name list used
// when the model artifact does not embed its own.
type ImageSpec struct {
	Width, Height int
	Mean          [3]float64
	Std           [3]float64
	Extensions    []string
	Classes       []string
}

// Schema is the static per-domain validation and ordering contract. Built at
// process start, read-only thereafter.
type Schema struct {
	Domain domain.Domain
	Fields []Field    // in training feature order; nil for the image domain
	Image  *ImageSpec // non-nil only for the image domain
}

// Required returns the public names of all required fields in schema order.
func (s Schema) Required() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// FeatureNames returns the training-time column names in feature order.
func (s Schema) FeatureNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.FeatureName()
	}
	return names
}

var registry = map[domain.Domain]Schema{
	domain.LungCancer:       lungSchema(),
	domain.Covid:            covidSchema(),
	domain.Cardiovascular:   heartSchema(),
	domain.CardiovascularV2: cardioV2Schema(),
	domain.EyeDisease:       eyeSchema(),
}

// For returns the schema for a domain. Schemas exist for every domain
// returned by domain.All.
func For(d domain.Domain) Schema {
	return registry[d]
}

func binary(name string) Field {
	return Field{Name: name, Kind: Int, Allowed: []float64{0, 1}}
}

func intRange(name string, min, max float64) Field {
	return Field{Name: name, Kind: Int, Min: min, Max: max}
}

func floatRange(name string, min, max float64) Field {
	return Field{Name: name, Kind: Float, Min: min, Max: max}
}

func nonNegative(name string) Field {
	return Field{Name: name, Kind: Float, Min: 0, Max: math.Inf(1)}
}

func percentage(name string) Field {
	return Field{Name: name, Kind: Float, Min: 0, Max: 100}
}

func enum(name string, allowed ...float64) Field {
	return Field{Name: name, Kind: Float, Allowed: allowed}
}

func renamed(f Field, feature string) Field {
	f.Feature = feature
	return f
}

func lungSchema() Schema {
	return Schema{
		Domain: domain.LungCancer,
		Fields: []Field{
			binary("gender"),
			intRange("age", 1, 120),
			binary("smoking"),
			binary("yellow_fingers"),
			binary("anxiety"),
			binary("peer_pressure"),
			binary("chronic_disease"),
			binary("fatigue"),
			binary("allergy"),
			binary("wheezing"),
			binary("alcohol_consuming"),
			binary("coughing"),
			binary("shortness_of_breath"),
			binary("swallowing_difficulty"),
			binary("chest_pain"),
		},
	}
}

func covidSchema() Schema {
	return Schema{
		Domain: domain.Covid,
		Fields: []Field{
			floatRange("age", 1, 120),
			nonNegative("leukocytes"),
			percentage("neutrophilsP"),
			percentage("lymphocytesP"),
			percentage("monocytesP"),
			percentage("eosinophilsP"),
			percentage("basophilsP"),
			nonNegative("neutrophils"),
			nonNegative("lymphocytes"),
			nonNegative("monocytes"),
			nonNegative("eosinophils"),
			nonNegative("basophils"),
			nonNegative("redbloodcells"),
			nonNegative("mcv"),
			nonNegative("mch"),
			nonNegative("mchc"),
			percentage("rdwP"),
			nonNegative("hemoglobin"),
			percentage("hematocritP"),
			nonNegative("platelets"),
			nonNegative("mpv"),
		},
	}
}

// heartSchema remaps the public API names to the column names the model was
// trained with (e.g. chest_pain_type -> cp).
func heartSchema() Schema {
	return Schema{
		Domain: domain.Cardiovascular,
		Fields: []Field{
			floatRange("age", 1, 120),
			enum("sex", 0, 1),
			renamed(enum("chest_pain_type", 0, 1, 2, 3), "cp"),
			renamed(floatRange("resting_bp", 40, 250), "trestbps"),
			renamed(floatRange("cholesterol", 50, 700), "chol"),
			renamed(enum("fasting_bs", 0, 1), "fbs"),
			renamed(enum("rest_ecg", 0, 1, 2), "restecg"),
			renamed(floatRange("max_heart_rate", 40, 250), "thalach"),
			renamed(enum("exercise_angina", 0, 1), "exang"),
			floatRange("oldpeak", 0, 10),
			enum("slope", 0, 1, 2),
			renamed(enum("major_vessels", 0, 1, 2, 3, 4), "ca"),
			enum("thal", 0, 1, 2, 3),
		},
	}
}

func cardioV2Schema() Schema {
	return Schema{
		Domain: domain.CardiovascularV2,
		Fields: []Field{
			intRange("age", 1, 120),
			Field{Name: "gender", Kind: Int, Allowed: []float64{1, 2}},
			intRange("height", 100, 250),
			floatRange("weight", 30, 300),
			intRange("ap_hi", 40, 250),
			intRange("ap_lo", 40, 250),
			Field{Name: "cholesterol", Kind: Int, Allowed: []float64{1, 2, 3}},
			Field{Name: "gluc", Kind: Int, Allowed: []float64{1, 2, 3}},
			binary("smoke"),
			binary("alco"),
			binary("active"),
		},
	}
}

func eyeSchema() Schema {
	return Schema{
		Domain: domain.EyeDisease,
		Image: &ImageSpec{
			Width:      224,
			Height:     224,
			Mean:       [3]float64{0.485, 0.456, 0.406},
			Std:        [3]float64{0.229, 0.224, 0.225},
			Extensions: []string{"png", "jpg", "jpeg", "gif", "bmp"},
			Classes: []string{
				"Cataract",
				"Diabetic Retinopathy",
				"Glaucoma",
				"Normal",
				"Other",
			},
		},
	}
}
