package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/port"
)

// DefaultMatchLimit caps how many keyword matches are shown.
const DefaultMatchLimit = 5

// KeywordMatcher matches when any query token (two characters or more)
// is a substring of the product title, or of the description when
// MatchDescriptions is set. Results keep catalog order.
type KeywordMatcher struct {
	MatchDescriptions bool
	Limit             int
}

// Match implements port.Matcher.
func (m KeywordMatcher) Match(_ context.Context, query string, snapshot []domain.Product) ([]domain.Product, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	limit := m.Limit
	if limit <= 0 {
		limit = DefaultMatchLimit
	}

	var out []domain.Product
	for _, p := range snapshot {
		if m.matches(tokens, p) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m KeywordMatcher) matches(tokens []string, p domain.Product) bool {
	title := strings.ToLower(p.Title)
	desc := ""
	if m.MatchDescriptions {
		desc = strings.ToLower(p.Description)
	}
	for _, tok := range tokens {
		if strings.Contains(title, tok) {
			return true
		}
		if desc != "" && strings.Contains(desc, tok) {
			return true
		}
	}
	return false
}

// Tokenize lowercases and splits on whitespace, dropping single-character tokens.
func Tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// EmbeddingMatcher ranks products by cosine similarity between the query
// vector and each product's precomputed vector.
type EmbeddingMatcher struct {
	embedder port.Embedder
	topK     int
	minScore float64
}

// NewEmbeddingMatcher creates an embedding matcher returning at most topK
// products scoring at least minScore.
func NewEmbeddingMatcher(embedder port.Embedder, topK int, minScore float64) *EmbeddingMatcher {
	if topK < 1 {
		topK = 1
	}
	return &EmbeddingMatcher{embedder: embedder, topK: topK, minScore: minScore}
}

type scored struct {
	product domain.Product
	score   float64
}

// Match implements port.Matcher. Embedding failures and vectors that do not
// match the catalog's dimension are returned to the caller, which answers
// with a "couldn't find" message.
func (m *EmbeddingMatcher) Match(ctx context.Context, query string, snapshot []domain.Product) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(snapshot) == 0 {
		return nil, nil
	}

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates := make([]scored, 0, len(snapshot))
	for _, p := range snapshot {
		if len(p.Embedding) == 0 {
			continue
		}
		if len(p.Embedding) != len(vec) {
			return nil, fmt.Errorf("query vector has dimension %d but %q has %d", len(vec), p.Handle, len(p.Embedding))
		}
		s := CosineSimilarity(vec, p.Embedding)
		if s >= m.minScore {
			candidates = append(candidates, scored{product: p, score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > m.topK {
		candidates = candidates[:m.topK]
	}
	out := make([]domain.Product, len(candidates))
	for i, c := range candidates {
		out[i] = c.product
	}
	return out, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Vectors of different length,
// empty vectors and zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case math.IsNaN(s):
		return 0
	}
	return s
}
