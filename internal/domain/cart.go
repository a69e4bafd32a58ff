package domain

import "time"

const MaxLineQuantity = 99

type Cart struct {
	ID        string      `bson:"_id,omitempty" json:"id"`
	UserID    string      `bson:"user_id" json:"user_id"`
	Items     []CartLine  `bson:"items" json:"items"`
	Summary   CartSummary `bson:"summary" json:"summary"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
}

// CartLine is one product/variant pair. UnitPrice is the catalog price captured when the line was last changed.
type CartLine struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Name      string    `bson:"name" json:"name"`
	Variant   string    `bson:"variant" json:"variant"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	UnitPrice float64   `bson:"unit_price" json:"unit_price"`
	LineTotal float64   `bson:"line_total" json:"line_total"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// CartSummary is derived from the lines; it is never edited directly.
type CartSummary struct {
	Subtotal  float64 `bson:"subtotal" json:"subtotal"`
	Tax       float64 `bson:"tax" json:"tax"`
	Discount  float64 `bson:"discount" json:"discount"`
	Total     float64 `bson:"total" json:"total"`
	ItemCount int     `bson:"item_count" json:"item_count"`
}

// FindLine returns the index of the line for productID/variant or -1.
func (c *Cart) FindLine(productID, variant string) int {
	for i, l := range c.Items {
		if l.ProductID == productID && l.Variant == variant {
			return i
		}
	}
	return -1
}
