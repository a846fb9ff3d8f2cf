// ABOUTME: Persistent embedding cache over a key-value store such as Charm KV
// ABOUTME: Keys combine the provider model and a digest of the text so spaces never mix
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/charmbracelet/log"
	"github.com/harper/actes-verif/internal/logging"
)

// KeyPrefix namespaces cached embeddings in the key-value store
const KeyPrefix = "embedding:"

// KV is the subset of a key-value store the cache needs
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Cache decorates a Provider with a persistent key-value cache
type Cache struct {
	inner  Provider
	kv     KV
	logger *log.Logger
}

// NewCache wraps inner with a cache stored in kv
func NewCache(inner Provider, kv KV, logger *log.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{inner: inner, kv: kv, logger: logger}
}

// Model returns the wrapped provider's embedding space identifier
func (c *Cache) Model() string {
	return c.inner.Model()
}

// CacheKey returns the key under which the vector of text for model is cached
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return KeyPrefix + model + ":" + hex.EncodeToString(sum[:16])
}

// Embed returns the cached vector for text or computes and caches it
func (c *Cache) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := c.get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(text, v)
	return v, nil
}

// EmbedBatch serves cached texts and sends only misses to the provider
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := c.get(t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(len(missTexts), len(vectors)); err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		c.put(missTexts[j], vectors[j])
	}
	return out, nil
}

func (c *Cache) get(text string) ([]float64, bool) {
	data, err := c.kv.Get(CacheKey(c.inner.Model(), text))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	v, err := DecodeVector(data)
	if err != nil {
		c.logger.Warn("discarding corrupt cached embedding", "err", err)
		return nil, false
	}
	return v, true
}

func (c *Cache) put(text string, v []float64) {
	if err := c.kv.Set(CacheKey(c.inner.Model(), text), EncodeVector(v)); err != nil {
		c.logger.Warn("caching embedding failed", "err", err)
	}
}
