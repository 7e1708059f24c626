// Generates placeholder model artifacts for local development. The weights
// are random, so predictions are meaningless; the artifacts only exist to
// exercise the full request path without real trained models.
//
// Usage: go run scripts/generate_sample_artifacts.go -out models
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"medpredict/internal/domain"
	"medpredict/internal/schema"
)

func main() {
	var (
		outDir = flag.String("out", "models", "Output directory for artifacts")
		seed   = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	for _, d := range domain.All() {
		dir := filepath.Join(*outDir, string(d))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create %s: %v", dir, err)
		}

		sch := schema.For(d)
		if d.IsImage() {
			writeImageArtifact(rng, dir, sch)
		} else {
			writeTabularArtifacts(rng, dir, d, sch)
		}
		fmt.Printf("wrote artifacts for %s\n", d)
	}
}

func writeTabularArtifacts(rng *rand.Rand, dir string, d domain.Domain, sch schema.Schema) {
	features := sch.FeatureNames()
	coef := make([]float64, len(features))
	for i := range coef {
		coef[i] = rng.NormFloat64() * 0.1
	}
	writeJSON(filepath.Join(dir, "model.json"), map[string]any{
		"features":    features,
		"coef":        coef,
		"intercept":   rng.NormFloat64() * 0.1,
		"probability": true,
	})

	// Lung is trained on raw values; the other tabular domains expect
	// standardized input.
	if d == domain.LungCancer {
		return
	}
	mean := make([]float64, len(features))
	scale := make([]float64, len(features))
	for i := range scale {
		mean[i] = rng.Float64() * 10
		scale[i] = 1 + rng.Float64()
	}
	writeJSON(filepath.Join(dir, "scaler.json"), map[string]any{
		"mean":  mean,
		"scale": scale,
	})
}

func writeImageArtifact(rng *rand.Rand, dir string, sch schema.Schema) {
	inputs := 3 * sch.Image.Height * sch.Image.Width
	weight := make([][]float64, len(sch.Image.Classes))
	bias := make([]float64, len(sch.Image.Classes))
	for i := range weight {
		weight[i] = make([]float64, inputs)
		for j := range weight[i] {
			weight[i][j] = rng.NormFloat64() * 0.001
		}
		bias[i] = rng.NormFloat64() * 0.1
	}
	writeJSON(filepath.Join(dir, "model.json"), map[string]any{
		"classes": sch.Image.Classes,
		"weight":  weight,
		"bias":    bias,
	})
}

func writeJSON(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
}
