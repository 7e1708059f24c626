package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"medpredict/internal/domain"
	"medpredict/internal/schema"
)

// writeTabularArtifacts writes a schema-consistent model (and scaler, when
// required) for a domain under dir.
func writeTabularArtifacts(t *testing.T, dir string, d domain.Domain, withScaler bool) {
	t.Helper()

	features := schema.For(d).FeatureNames()
	coef := make([]float64, len(features))
	for i := range coef {
		coef[i] = 0.1
	}

	domainDir := filepath.Join(dir, string(d))
	if err := os.MkdirAll(domainDir, 0o755); err != nil {
		t.Fatalf("Failed to create artifact dir: %v", err)
	}

	writeJSON(t, filepath.Join(domainDir, "model.json"), map[string]any{
		"features":    features,
		"coef":        coef,
		"intercept":   -0.5,
		"probability": true,
	})

	if withScaler {
		mean := make([]float64, len(features))
		scale := make([]float64, len(features))
		for i := range scale {
			scale[i] = 1
		}
		writeJSON(t, filepath.Join(domainDir, "scaler.json"), map[string]any{
			"mean":  mean,
			"scale": scale,
		})
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal artifact: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
}

func TestCache_AcquireMemoizes(t *testing.T) {
	dir := t.TempDir()
	writeTabularArtifacts(t, dir, domain.LungCancer, false)
	cache := NewCache(dir)

	first, err := cache.Acquire(domain.LungCancer)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := cache.Acquire(domain.LungCancer)
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	if first != second {
		t.Error("Expected the same memoized handle on repeat acquire")
	}
}

func TestCache_MissingArtifactNotMemoized(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)

	_, err := cache.Acquire(domain.LungCancer)
	derr, ok := err.(*domain.Error)
	if !ok || derr.Kind != domain.KindResourceUnavailable {
		t.Fatalf("Expected resource-unavailable error, got %v", err)
	}

	// Supplying the artifact afterwards must heal without a restart.
	writeTabularArtifacts(t, dir, domain.LungCancer, false)
	if _, err := cache.Acquire(domain.LungCancer); err != nil {
		t.Errorf("Expected acquire to succeed after artifact appeared, got %v", err)
	}
}

func TestCache_ScalerRequiredDomains(t *testing.T) {
	dir := t.TempDir()
	// Model present but scaler missing for a scaler-required domain.
	writeTabularArtifacts(t, dir, domain.Covid, false)
	cache := NewCache(dir)

	_, err := cache.Acquire(domain.Covid)
	derr, ok := err.(*domain.Error)
	if !ok || derr.Kind != domain.KindResourceUnavailable {
		t.Fatalf("Expected resource-unavailable without scaler, got %v", err)
	}

	writeTabularArtifacts(t, dir, domain.Covid, true)
	h, err := cache.Acquire(domain.Covid)
	if err != nil {
		t.Fatalf("Acquire failed with scaler present: %v", err)
	}
	if h.Scaler == nil {
		t.Error("Expected handle to carry the fitted scaler")
	}
}

func TestCache_LungHasNoScaler(t *testing.T) {
	dir := t.TempDir()
	writeTabularArtifacts(t, dir, domain.LungCancer, false)
	cache := NewCache(dir)

	h, err := cache.Acquire(domain.LungCancer)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h.Scaler != nil {
		t.Error("Lung model is trained unscaled; handle should have no scaler")
	}
}

func TestCache_ColumnMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	domainDir := filepath.Join(dir, string(domain.LungCancer))
	if err := os.MkdirAll(domainDir, 0o755); err != nil {
		t.Fatalf("Failed to create artifact dir: %v", err)
	}
	writeJSON(t, filepath.Join(domainDir, "model.json"), map[string]any{
		"features":    []string{"wrong", "columns"},
		"coef":        []float64{1, 2},
		"intercept":   0,
		"probability": true,
	})

	cache := NewCache(dir)
	_, err := cache.Acquire(domain.LungCancer)
	derr, ok := err.(*domain.Error)
	if !ok || derr.Kind != domain.KindResourceUnavailable {
		t.Fatalf("Expected column mismatch to surface as unavailable, got %v", err)
	}
}

func TestCache_Loaded(t *testing.T) {
	dir := t.TempDir()
	writeTabularArtifacts(t, dir, domain.LungCancer, false)
	cache := NewCache(dir)

	loaded := cache.Loaded()
	for d, ok := range loaded {
		if ok {
			t.Errorf("Expected nothing loaded before first acquire, %s is", d)
		}
	}

	if _, err := cache.Acquire(domain.LungCancer); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	loaded = cache.Loaded()
	if !loaded[domain.LungCancer] {
		t.Error("Expected lung-cancer to report loaded")
	}
	if loaded[domain.Covid] {
		t.Error("Loaded probe must not trigger loads for other domains")
	}
}

func TestCache_OnLoadFiresOncePerDomain(t *testing.T) {
	dir := t.TempDir()
	writeTabularArtifacts(t, dir, domain.LungCancer, false)
	cache := NewCache(dir)

	var notified []domain.Domain
	cache.OnLoad(func(d domain.Domain) { notified = append(notified, d) })

	// A failed load must not notify.
	if _, err := cache.Acquire(domain.Covid); err == nil {
		t.Fatal("Expected covid acquire to fail without artifacts")
	}
	if len(notified) != 0 {
		t.Errorf("Expected no notification on failed load, got %v", notified)
	}

	if _, err := cache.Acquire(domain.LungCancer); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := cache.Acquire(domain.LungCancer); err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}

	if len(notified) != 1 || notified[0] != domain.LungCancer {
		t.Errorf("Expected one notification for lung-cancer, got %v", notified)
	}
}

func TestCache_ConcurrentFirstAcquire(t *testing.T) {
	dir := t.TempDir()
	writeTabularArtifacts(t, dir, domain.LungCancer, false)
	cache := NewCache(dir)

	features := make([]float64, len(schema.For(domain.LungCancer).FeatureNames()))
	for i := range features {
		features[i] = 1
	}

	var wg sync.WaitGroup
	results := make([]int, 16)
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := cache.Acquire(domain.LungCancer)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = h.Scorer.Predict(features)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("goroutine %d: prediction %d differs from %d", i, results[i], results[0])
		}
	}
}

func TestCache_ImageDomain(t *testing.T) {
	dir := t.TempDir()
	spec := schema.For(domain.EyeDisease).Image
	inputs := 3 * spec.Height * spec.Width

	weight := make([][]float64, len(spec.Classes))
	bias := make([]float64, len(spec.Classes))
	for i := range weight {
		weight[i] = make([]float64, inputs)
	}

	domainDir := filepath.Join(dir, string(domain.EyeDisease))
	if err := os.MkdirAll(domainDir, 0o755); err != nil {
		t.Fatalf("Failed to create artifact dir: %v", err)
	}
	// No embedded classes: the schema fallback list applies.
	writeJSON(t, filepath.Join(domainDir, "model.json"), map[string]any{
		"weight": weight,
		"bias":   bias,
	})

	cache := NewCache(dir)
	h, err := cache.Acquire(domain.EyeDisease)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h.Image == nil {
		t.Fatal("Expected image model on handle")
	}
	if got := h.Image.Classes(); len(got) != len(spec.Classes) || got[0] != spec.Classes[0] {
		t.Errorf("Expected fallback classes %v, got %v", spec.Classes, got)
	}
}
