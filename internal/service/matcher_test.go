package service_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/service"
)

// --- Mocks ---

type mockEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vectors[text], nil
}

// --- Tests ---

func searchCatalog() []domain.Product {
	return []domain.Product{
		{Title: "Kraft Paper Bag 5kg", Handle: "kraft-bag-5kg", Description: "brown bag"},
		{Title: "Paper Cup 250ml", Handle: "paper-cup-250", Description: "hot drinks"},
		{Title: "White Sweet Box", Handle: "sweet-box", Description: "for mithai and bakery"},
		{Title: "Butter Paper Sheets", Handle: "butter-paper", Description: "grease proof wrap"},
	}
}

func TestKeywordMatcher_KraftBag(t *testing.T) {
	m := service.KeywordMatcher{}

	got, err := m.Match(context.Background(), "kraft bag", searchCatalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Title != "Kraft Paper Bag 5kg" {
		t.Errorf("expected Kraft Paper Bag 5kg, got %s", got[0].Title)
	}
}

func TestKeywordMatcher_ResultsAreSubsetInCatalogOrder(t *testing.T) {
	snapshot := searchCatalog()
	queries := []string{"paper", "PAPER cup", "a box", "sheets bag", "x", "", "   "}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			got, err := service.KeywordMatcher{}.Match(context.Background(), q, snapshot)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) > service.DefaultMatchLimit {
				t.Errorf("expected at most %d results, got %d", service.DefaultMatchLimit, len(got))
			}

			tokens := service.Tokenize(q)
			last := -1
			for _, p := range got {
				idx := indexOf(snapshot, p.Handle)
				if idx < 0 {
					t.Fatalf("result %s not in snapshot", p.Handle)
				}
				if idx <= last {
					t.Errorf("result %s out of catalog order", p.Handle)
				}
				last = idx

				if !titleHasToken(p.Title, tokens) {
					t.Errorf("result %s matches no token of %q", p.Title, q)
				}
			}
		})
	}
}

func TestKeywordMatcher_DropsSingleCharacterTokens(t *testing.T) {
	got, _ := service.KeywordMatcher{}.Match(context.Background(), "a", searchCatalog())
	if len(got) != 0 {
		t.Errorf("expected no matches for a single character, got %d", len(got))
	}
}

func TestKeywordMatcher_Descriptions(t *testing.T) {
	snapshot := searchCatalog()

	got, _ := service.KeywordMatcher{}.Match(context.Background(), "mithai", snapshot)
	if len(got) != 0 {
		t.Errorf("titles only: expected no match, got %d", len(got))
	}

	got, _ = service.KeywordMatcher{MatchDescriptions: true}.Match(context.Background(), "mithai", snapshot)
	if len(got) != 1 || got[0].Handle != "sweet-box" {
		t.Errorf("with descriptions: expected sweet-box, got %+v", got)
	}
}

func TestKeywordMatcher_Limit(t *testing.T) {
	var snapshot []domain.Product
	for i := 0; i < 8; i++ {
		snapshot = append(snapshot, domain.Product{Title: "Paper item", Handle: string(rune('a' + i))})
	}

	got, _ := service.KeywordMatcher{}.Match(context.Background(), "paper", snapshot)
	if len(got) != service.DefaultMatchLimit {
		t.Errorf("expected %d, got %d", service.DefaultMatchLimit, len(got))
	}

	got, _ = service.KeywordMatcher{Limit: 2}.Match(context.Background(), "paper", snapshot)
	if len(got) != 2 {
		t.Errorf("expected 2, got %d", len(got))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCosineSimilarity_SymmetricAndBounded(t *testing.T) {
	vectors := [][]float64{
		{0.3, -1.2, 4.5},
		{1e-8, 2, -2},
		{100, 200, 300},
		{-0.5, -0.5, -0.5},
	}

	for i := range vectors {
		for j := range vectors {
			ab := service.CosineSimilarity(vectors[i], vectors[j])
			ba := service.CosineSimilarity(vectors[j], vectors[i])
			if ab != ba {
				t.Errorf("asymmetric for %d,%d: %v vs %v", i, j, ab, ba)
			}
			if ab < -1 || ab > 1 {
				t.Errorf("out of bounds for %d,%d: %v", i, j, ab)
			}
		}
	}
}

func TestEmbeddingMatcher_TopK(t *testing.T) {
	snapshot := []domain.Product{
		{Title: "Bag", Handle: "bag", Embedding: []float64{1, 0}},
		{Title: "Cup", Handle: "cup", Embedding: []float64{0, 1}},
		{Title: "Box", Handle: "box", Embedding: []float64{0.7, 0.7}},
		{Title: "Unembedded", Handle: "none"},
	}
	emb := &mockEmbedder{vectors: map[string][]float64{"carry bag": {0.9, 0.1}}}

	got, err := service.NewEmbeddingMatcher(emb, 1, 0).Match(context.Background(), "carry bag", snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Handle != "bag" {
		t.Fatalf("expected bag, got %+v", got)
	}

	got, _ = service.NewEmbeddingMatcher(emb, 2, 0).Match(context.Background(), "carry bag", snapshot)
	if len(got) != 2 || got[0].Handle != "bag" || got[1].Handle != "box" {
		t.Errorf("expected [bag box], got %+v", got)
	}
}

func TestEmbeddingMatcher_MinScore(t *testing.T) {
	snapshot := []domain.Product{
		{Title: "Cup", Handle: "cup", Embedding: []float64{0, 1}},
	}
	emb := &mockEmbedder{vectors: map[string][]float64{"bag": {1, 0}}}

	got, err := service.NewEmbeddingMatcher(emb, 3, 0.5).Match(context.Background(), "bag", snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no match below min score, got %+v", got)
	}
}

func TestEmbeddingMatcher_EmbedderError(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("quota exceeded")}

	_, err := service.NewEmbeddingMatcher(emb, 1, 0).Match(context.Background(), "bag", searchCatalog())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbeddingMatcher_DimensionMismatchIsError(t *testing.T) {
	snapshot := []domain.Product{
		{Title: "Bag", Handle: "bag", Embedding: []float64{1, 0}},
		{Title: "Cup", Handle: "cup", Embedding: []float64{0, 1}},
	}
	emb := &mockEmbedder{vectors: map[string][]float64{"bag": {0.1, 0.2, 0.3}}}

	got, err := service.NewEmbeddingMatcher(emb, 1, 0).Match(context.Background(), "bag", snapshot)
	if err == nil {
		t.Fatalf("expected error for a 3-dim query against 2-dim products, got %+v", got)
	}
	if len(got) != 0 {
		t.Errorf("expected no products, got %+v", got)
	}
}

func TestEmbeddingMatcher_EmptyQuerySkipsEmbedder(t *testing.T) {
	emb := &mockEmbedder{}

	got, err := service.NewEmbeddingMatcher(emb, 1, 0).Match(context.Background(), "  ", searchCatalog())
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %+v, %v", got, err)
	}
	if emb.calls != 0 {
		t.Errorf("expected no embed calls, got %d", emb.calls)
	}
}

func indexOf(products []domain.Product, handle string) int {
	for i, p := range products {
		if p.Handle == handle {
			return i
		}
	}
	return -1
}

func titleHasToken(title string, tokens []string) bool {
	title = strings.ToLower(title)
	for _, tok := range tokens {
		if strings.Contains(title, tok) {
			return true
		}
	}
	return false
}
