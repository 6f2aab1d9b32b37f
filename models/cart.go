package models

// CartItem is a denormalized snapshot of a variant taken when it was added
// to the cart. Name, price and image drift from the catalog until the cart
// reconciler brings them back in line.
type CartItem struct {
	ProductID string  `json:"productId" bson:"productId"`
	VariantID string  `json:"variantId" bson:"variantId"`
	Name      string  `json:"name" bson:"name"`
	Weight    string  `json:"weight" bson:"weight"`
	Price     float64 `json:"price" bson:"price"` // unit price
	Image     string  `json:"image" bson:"image"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

// Key identifies the cart row; one row per product variant.
func (c CartItem) Key() string {
	return c.ProductID + "/" + c.VariantID
}

// Subtotal is price times quantity.
func (c CartItem) Subtotal() float64 {
	return c.Price * float64(c.Quantity)
}
