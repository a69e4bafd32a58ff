package domain

// Product is the read-only catalog view needed to price a cart line.
type Product struct {
	ID       string             `bson:"_id"`
	Name     string             `bson:"name"`
	Active   bool               `bson:"active"`
	Variants map[string]float64 `bson:"variants"` // license/plan -> unit price
}
