// ABOUTME: Local deterministic embedding provider using feature hashing of French tokens
// ABOUTME: Needs no network or model files; used offline and as the stub provider in tests
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultHashingDimension is the default vector size of the hashing provider
const DefaultHashingDimension = 4096

var tokenPattern = regexp.MustCompile(`\p{L}+`)

// Hashing embeds text as an L2-normalized bag of hashed lowercase word counts.
// All weights are non-negative, so hash collisions only ever raise a similarity.
type Hashing struct {
	dimension int
	stopwords map[string]struct{}
}

// NewHashing creates a hashing provider with the given dimension
func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &Hashing{
		dimension: dimension,
		stopwords: frenchStopwords(),
	}
}

// Model returns the embedding space identifier
func (h *Hashing) Model() string {
	return fmt.Sprintf("hashing-%d", h.dimension)
}

// Dimension returns the vector size
func (h *Hashing) Dimension() int {
	return h.dimension
}

// Embed computes the hashed embedding of text
func (h *Hashing) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, h.dimension)
	for _, tok := range h.Tokenize(text) {
		vec[h.bucket(tok)]++
	}
	return Normalize(vec), nil
}

// EmbedBatch embeds each text in order
func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Tokenize lowercases text and keeps letter runs that are not stopwords or single letters
func (h *Hashing) Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if utf8.RuneCountInString(t) < 2 {
			continue
		}
		if _, stop := h.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (h *Hashing) bucket(token string) int {
	f := fnv.New64a()
	_, _ = f.Write([]byte(token))
	return int(f.Sum64() % uint64(h.dimension))
}

func frenchStopwords() map[string]struct{} {
	words := []string{
		"au", "aux", "avec", "ce", "ces", "cet", "cette", "dans", "de", "des", "du", "elle", "elles",
		"en", "est", "et", "été", "être", "il", "ils", "la", "le", "les", "leur", "leurs", "lui", "mais",
		"me", "même", "ne", "ni", "nos", "notre", "nous", "on", "ou", "où", "par", "pas", "pour", "qu",
		"que", "qui", "sa", "se", "ses", "si", "son", "sont", "sur", "ta", "te", "tes", "ton", "tu",
		"un", "une", "vos", "votre", "vous", "ont", "sera", "seront", "fait", "peut", "peuvent",
		"article", "articles", "alinéa",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
