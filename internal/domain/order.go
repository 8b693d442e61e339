package domain

import "time"

// Payment methods shown in the confirmation message.
const (
	PaymentCashOnDelivery = "Cash on Delivery"
	PaymentOnline         = "Online"
)

// Order is a confirmed order, produced when a session completes.
type Order struct {
	ID             string    `json:"id" db:"id"`
	Phone          string    `json:"phone" db:"phone"`
	ProductHandle  string    `json:"product_handle" db:"product_handle"`
	ProductTitle   string    `json:"product_title" db:"product_title"`
	Variants       []string  `json:"variants" db:"-"`
	QuantityNote   string    `json:"quantity_note" db:"quantity_note"`
	Quantity       float64   `json:"quantity" db:"quantity"`
	Name           string    `json:"name" db:"name"`
	Shop           string    `json:"shop" db:"shop"`
	Address        string    `json:"address" db:"address"`
	PaymentMethod  string    `json:"payment_method" db:"payment_method"`
	AmountMinor    int64     `json:"amount_minor" db:"amount_minor"`
	Currency       string    `json:"currency" db:"currency"`
	PaymentOrderID string    `json:"payment_order_id,omitempty" db:"payment_order_id"`
	PaymentLink    string    `json:"payment_link,omitempty" db:"payment_link"`
	CreatedAt      time.Time `json:"created_at" db:"-"`
}

// PaymentOrderRequest is sent to the payment provider. Amount is in minor units.
type PaymentOrderRequest struct {
	Amount      int64
	Currency    string
	Receipt     string
	AutoCapture bool
	Notes       map[string]string
}

// PaymentOrder is the provider's answer, with the link the user pays through.
type PaymentOrder struct {
	ID     string
	Amount int64
	Link   string
}
