package model

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"medpredict/internal/domain"
	"medpredict/internal/schema"
)

// Handle is the opaque resource bundle for one domain: a scorer plus, for
// tabular domains, the fitted scaler that must be applied before scoring.
// Handles are created once on first use, owned by the Cache for the process
// lifetime, and treated as immutable once constructed. The pipeline only
// holds a borrowed reference for the duration of one request.
type Handle struct {
	Domain domain.Domain
	Scorer Scorer      // tabular domains
	Scaler *Scaler     // nil for models trained on unscaled features
	Image  *ImageModel // image domain only
}

// Cache lazily loads and memoizes model handles per domain. Load failures
// are never memoized, so every request re-attempts the load and the service
// self-heals once an operator supplies a missing artifact without a restart.
// Concurrent first-time loads for the same domain may race; duplicate loads
// are tolerated and the first memoized handle wins.
type Cache struct {
	dir    string
	onLoad func(domain.Domain)

	mu      sync.RWMutex
	handles map[domain.Domain]*Handle
}

// NewCache creates a cache rooted at the artifact directory. Artifacts live
// under <dir>/<domain>/model.json with an optional sibling scaler.json.
func NewCache(dir string) *Cache {
	return &Cache{
		dir:     dir,
		handles: make(map[domain.Domain]*Handle),
	}
}

// OnLoad registers a callback invoked once per domain, after its first
// successful load is memoized. Set during wiring, before the cache serves
// requests.
func (c *Cache) OnLoad(fn func(domain.Domain)) {
	c.onLoad = fn
}

// scalerRequired marks the domains whose models were trained on standardized
// features. For those, a missing scaler makes the model unusable.
var scalerRequired = map[domain.Domain]bool{
	domain.Covid:            true,
	domain.Cardiovascular:   true,
	domain.CardiovascularV2: true,
}

// Acquire returns the memoized handle for a domain, loading it on first use.
func (c *Cache) Acquire(d domain.Domain) (*Handle, error) {
	c.mu.RLock()
	h := c.handles[d]
	c.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	// Load outside the lock: redundant concurrent loads waste time but
	// never corrupt state, since handles are immutable once constructed.
	h, err := c.load(d)
	if err != nil {
		log.Warn().Err(err).Str("domain", string(d)).Msg("model artifact load failed")
		return nil, domain.Unavailable(d)
	}

	c.mu.Lock()
	stored := false
	if existing := c.handles[d]; existing != nil {
		h = existing
	} else {
		c.handles[d] = h
		stored = true
		log.Info().Str("domain", string(d)).Msg("model loaded")
	}
	c.mu.Unlock()

	if stored && c.onLoad != nil {
		c.onLoad(d)
	}
	return h, nil
}

// Loaded reports, per domain, whether its backing resources are currently in
// memory. It probes without triggering a load, for the liveness endpoint.
func (c *Cache) Loaded() map[domain.Domain]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.Domain]bool, len(domain.All()))
	for _, d := range domain.All() {
		out[d] = c.handles[d] != nil
	}
	return out
}

func (c *Cache) load(d domain.Domain) (*Handle, error) {
	modelPath := filepath.Join(c.dir, string(d), "model.json")

	if d.IsImage() {
		spec := schema.For(d).Image
		img, err := LoadImage(modelPath, spec.Classes)
		if err != nil {
			return nil, err
		}
		return &Handle{Domain: d, Image: img}, nil
	}

	m, err := LoadLinear(modelPath)
	if err != nil {
		return nil, err
	}
	if got, want := m.Features(), schema.For(d).FeatureNames(); !sameColumns(got, want) {
		return nil, fmt.Errorf("model %s trained on columns %v, schema declares %v", modelPath, got, want)
	}

	var scaler *Scaler
	scalerPath := filepath.Join(c.dir, string(d), "scaler.json")
	scaler, err = LoadScaler(scalerPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || scalerRequired[d] {
			return nil, fmt.Errorf("scaler for %s: %w", d, err)
		}
		scaler = nil
	}

	return &Handle{Domain: d, Scorer: m, Scaler: scaler}, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
