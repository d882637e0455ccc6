package symgo

import (
	"encoding/json"
	"sync"
)

// The construction cache makes applied-function nodes canonical by identity:
// two Apply calls with the same function and structurally equal arguments
// return the same node object. Keys are derived from the canonical JSON form
// of the arguments (deterministic: encoding/json sorts object keys), plus the
// function name and normalized options.
//
// The cache is process-wide and never evicts by default; EvictionPolicy is
// the hook for bounding it later. Concurrent construction of the same key is
// resolved first-writer-wins under a single mutex.

// EvictionPolicy decides which cached keys to drop after each store.
// The default policy keeps everything.
type EvictionPolicy interface {
	// OnStore is called with the stored key and the current entry count;
	// any returned keys are removed from the cache.
	OnStore(key string, size int) []string
}

type keepAll struct{}

func (keepAll) OnStore(string, int) []string { return nil }

type constructionCache struct {
	mu       sync.Mutex
	entries  map[string]Expr
	inflight map[string]int
	policy   EvictionPolicy
}

var appCache = &constructionCache{
	entries:  map[string]Expr{},
	inflight: map[string]int{},
	policy:   keepAll{},
}

// SetCachePolicy installs an eviction policy on the process-wide
// construction cache. Passing nil restores the keep-everything default.
func SetCachePolicy(p EvictionPolicy) {
	appCache.mu.Lock()
	defer appCache.mu.Unlock()
	if p == nil {
		p = keepAll{}
	}
	appCache.policy = p
}

// ResetCache drops all cached constructions. Intended for tests.
func ResetCache() {
	appCache.mu.Lock()
	defer appCache.mu.Unlock()
	appCache.entries = map[string]Expr{}
	appCache.inflight = map[string]int{}
}

// lookup returns the cached node for key, or marks the key in flight.
// reentrant is true when an identical construction is already running higher
// on the call stack; the caller must then skip its canonical-form rule (the
// rule is what recursed) and build the raw node instead.
func (c *constructionCache) lookup(key string) (cached Expr, reentrant bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, false
	}
	reentrant = c.inflight[key] > 0
	c.inflight[key]++
	return nil, reentrant
}

// complete stores the constructed node for key unless another construction
// won the race, and returns the canonical node either way.
func (c *constructionCache) complete(key string, e Expr) Expr {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key]--
	if c.inflight[key] <= 0 {
		delete(c.inflight, key)
	}
	if prior, ok := c.entries[key]; ok {
		return prior
	}
	c.entries[key] = e
	for _, victim := range c.policy.OnStore(key, len(c.entries)) {
		delete(c.entries, victim)
	}
	return e
}

// abandon releases an in-flight marker without storing (construction
// panicked or short-circuited outside the cache).
func (c *constructionCache) abandon(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[key]--
	if c.inflight[key] <= 0 {
		delete(c.inflight, key)
	}
}

// cacheKey builds the canonical construction key for a function application.
func cacheKey(name string, args []Expr, evaluate bool) string {
	parts := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a.toJSON())
		if err != nil {
			// toJSON never produces unmarshalable values; fall back to
			// the printed form rather than fail construction.
			b = []byte(`"` + a.String() + `"`)
		}
		parts = append(parts, b)
	}
	payload, _ := json.Marshal(parts)
	suffix := ""
	if !evaluate {
		suffix = "#raw"
	}
	return name + suffix + string(payload)
}
