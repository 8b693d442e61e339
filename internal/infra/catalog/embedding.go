package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

// EmbeddingTable is the on-disk format of a precomputed catalog:
// products and their vectors as parallel arrays.
type EmbeddingTable struct {
	Model      string           `json:"model,omitempty"`
	Products   []domain.Product `json:"products"`
	Embeddings [][]float64      `json:"embeddings"`
}

// Embedded serves products carrying their precomputed vectors.
type Embedded struct {
	model    string
	dim      int
	products []domain.Product
}

// LoadEmbeddingTable reads the table from path.
func LoadEmbeddingTable(path string) (*Embedded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embedding table: %w", err)
	}
	defer f.Close()
	return ReadEmbeddingTable(f)
}

// ReadEmbeddingTable decodes a table. Arrays of different length, empty
// vectors and vectors of differing dimension are errors.
func ReadEmbeddingTable(r io.Reader) (*Embedded, error) {
	var table EmbeddingTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode embedding table: %w", err)
	}
	if len(table.Products) != len(table.Embeddings) {
		return nil, fmt.Errorf("embedding table has %d products but %d embeddings",
			len(table.Products), len(table.Embeddings))
	}

	dim := -1
	products := make([]domain.Product, len(table.Products))
	for i, p := range table.Products {
		vec := table.Embeddings[i]
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		if dim == -1 {
			dim = len(vec)
		} else if len(vec) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(vec), dim)
		}
		p.Embedding = vec
		products[i] = p
	}
	return &Embedded{model: table.Model, dim: dim, products: products}, nil
}

// WriteEmbeddingTable encodes products and their vectors.
func WriteEmbeddingTable(w io.Writer, model string, products []domain.Product) error {
	table := EmbeddingTable{
		Model:      model,
		Products:   make([]domain.Product, len(products)),
		Embeddings: make([][]float64, len(products)),
	}
	for i, p := range products {
		table.Embeddings[i] = p.Embedding
		p.Embedding = nil
		table.Products[i] = p
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}

func (e *Embedded) Name() string { return "embedding" }

// Model is the embedding model the table was built with, empty if unrecorded.
func (e *Embedded) Model() string { return e.model }

// Dimensions is the vector length shared by every product.
func (e *Embedded) Dimensions() int { return e.dim }

// CheckModel rejects a table built with a model other than model.
// Tables that do not record their model pass.
func (e *Embedded) CheckModel(model string) error {
	if e.model != "" && e.model != model {
		return fmt.Errorf("embedding table was built with %q, configured model is %q", e.model, model)
	}
	return nil
}

// Products returns the loaded products with their vectors.
func (e *Embedded) Products(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(e.products))
	copy(out, e.products)
	return out, nil
}
