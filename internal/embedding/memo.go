// ABOUTME: Bounded in-memory LRU memoization of embeddings keyed by exact text
// ABOUTME: Repeated concepts and queries reuse vectors instead of calling the provider again
package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize is the default number of memoized texts
const DefaultMemoSize = 2048

// Memo decorates a Provider with a bounded LRU memo
type Memo struct {
	inner  Provider
	cache  *lru.Cache[string, []float64]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemo wraps inner with a memo holding up to size texts
func NewMemo(inner Provider, size int) *Memo {
	if size <= 0 {
		size = DefaultMemoSize
	}
	// lru.New only fails for non-positive sizes
	cache, _ := lru.New[string, []float64](size)
	return &Memo{inner: inner, cache: cache}
}

// Model returns the wrapped provider's embedding space identifier
func (m *Memo) Model() string {
	return m.inner.Model()
}

// Embed returns the memoized vector for text or computes and stores it
func (m *Memo) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := m.lookup(text); ok {
		return v, nil
	}
	v, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Add(text, v)
	return v, nil
}

// EmbedBatch serves memoized texts locally and sends only misses to the provider
func (m *Memo) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := m.lookup(t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := m.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(len(missTexts), len(vectors)); err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		m.cache.Add(missTexts[j], vectors[j])
	}
	return out, nil
}

// Stats returns memo hit and miss counts
func (m *Memo) Stats() (hits, misses int) {
	return int(m.hits.Load()), int(m.misses.Load())
}

func (m *Memo) lookup(text string) ([]float64, bool) {
	v, ok := m.cache.Get(text)
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return v, ok
}

// checkBatch rejects provider responses that do not carry one vector per text
func checkBatch(want, got int) error {
	if want != got {
		return fmt.Errorf("provider returned %d vectors for %d texts", got, want)
	}
	return nil
}
