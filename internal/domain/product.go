package domain

// Unit describes how a product is sold.
type Unit string

const (
	UnitWeight Unit = "weight"
	UnitBox    Unit = "box"
)

// Product is one catalog entry as seen by the conversation.
// Price is kept in minor currency units (paise for INR).
type Product struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Unit        Unit      `json:"unit"`
	ImageURL    string    `json:"image_url,omitempty"`
	Handle      string    `json:"handle"`
	Variants    []string  `json:"variants,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// HasVariants reports whether the user must pick sizes before quantity.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// FindProduct returns the product with the given handle from a snapshot.
func FindProduct(snapshot []Product, handle string) (Product, bool) {
	for _, p := range snapshot {
		if p.Handle == handle {
			return p, true
		}
	}
	return Product{}, false
}
