package domain

import "time"

// Step is the position of a session in the conversation state machine.
type Step string

const (
	StepIdle                  Step = "idle"
	StepAwaitingVariant       Step = "awaiting_variant"
	StepAwaitingQuantity      Step = "awaiting_quantity"
	StepConfirmSavedInfo      Step = "confirm_saved_info"
	StepAwaitingName          Step = "awaiting_name"
	StepAwaitingShop          Step = "awaiting_shop"
	StepAwaitingAddress       Step = "awaiting_address"
	StepAwaitingPaymentMethod Step = "awaiting_payment_method"
)

// QuantityItem is one "<amount><unit> for <variant>" entry of a quantity answer.
type QuantityItem struct {
	Amount  float64 `json:"amount"`
	Unit    string  `json:"unit,omitempty"`
	Variant string  `json:"variant,omitempty"`
}

// Session is an in-progress order for one phone number.
type Session struct {
	Phone            string         `json:"phone"`
	Step             Step           `json:"step"`
	ProductHandle    string         `json:"product_handle,omitempty"`
	ProductTitle     string         `json:"product_title,omitempty"`
	Variants         []string       `json:"variants,omitempty"`
	SelectedVariants []string       `json:"selected_variants,omitempty"`
	VariantOffset    int            `json:"variant_offset"`
	QuantityNote     string         `json:"quantity_note,omitempty"`
	Quantity         float64        `json:"quantity"`
	QuantityItems    []QuantityItem `json:"quantity_items,omitempty"`
	Name             string         `json:"name,omitempty"`
	Shop             string         `json:"shop,omitempty"`
	Address          string         `json:"address,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SelectVariant appends v unless already selected. It reports whether
// the selection changed.
func (s *Session) SelectVariant(v string) bool {
	for _, existing := range s.SelectedVariants {
		if existing == v {
			return false
		}
	}
	s.SelectedVariants = append(s.SelectedVariants, v)
	return true
}

// Clone returns a deep copy so stored sessions never share slices with callers.
func (s Session) Clone() Session {
	c := s
	c.Variants = append([]string(nil), s.Variants...)
	c.SelectedVariants = append([]string(nil), s.SelectedVariants...)
	c.QuantityItems = append([]QuantityItem(nil), s.QuantityItems...)
	return c
}

// Profile holds the last-used contact details of a phone number.
type Profile struct {
	Name              string    `json:"name"`
	Shop              string    `json:"shop"`
	Address           string    `json:"address"`
	LastProductHandle string    `json:"last_product_handle,omitempty"`
	LastQuantity      string    `json:"last_quantity,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}
