package models

// Scope is the geographic granularity of an inventory override.
type Scope string

const (
	ScopeState   Scope = "STATE"
	ScopeCity    Scope = "CITY"
	ScopePincode Scope = "PINCODE"
)

// ProductVariant is a sellable unit of a product (e.g. "500g", "1kg").
type ProductVariant struct {
	ID       string   `json:"id" bson:"id"`
	Weight   string   `json:"weight" bson:"weight"` // weight/unit label
	Price    float64  `json:"price" bson:"price"`
	Stock    int      `json:"stock" bson:"stock"`
	Discount *float64 `json:"discount,omitempty" bson:"discount,omitempty"` // percent
}

// InventoryRule overrides a variant's price/stock/discount for one location.
type InventoryRule struct {
	ID           string   `json:"id" bson:"id"`
	VariantID    string   `json:"variantId" bson:"variantId"`
	Scope        Scope    `json:"scope" bson:"scope"`
	LocationName string   `json:"locationName" bson:"locationName"`
	Price        float64  `json:"price" bson:"price"`
	Stock        int      `json:"stock" bson:"stock"`
	Discount     *float64 `json:"discount,omitempty" bson:"discount,omitempty"`
}

type Review struct {
	UserID  string `json:"userId" bson:"userId"`
	Rating  int    `json:"rating" bson:"rating"`
	Comment string `json:"comment" bson:"comment"`
}

// Product is a catalog entry owned by a seller.
type Product struct {
	ID                string           `json:"id" bson:"id"`
	Name              string           `json:"name" bson:"name"`
	Description       string           `json:"description" bson:"description"`
	Category          string           `json:"category" bson:"category"`
	SellerID          string           `json:"sellerId" bson:"sellerId"`
	ImageURLs         []string         `json:"imageUrls" bson:"imageUrls"`
	AvailablePincodes []string         `json:"availablePincodes" bson:"availablePincodes"`
	Reviews           []Review         `json:"reviews" bson:"reviews"`
	Variants          []ProductVariant `json:"variants" bson:"variants"`
	InventoryRules    []InventoryRule  `json:"inventoryRules" bson:"inventoryRules"`
}

// Variant returns the variant with the given id.
func (p *Product) Variant(id string) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Image is the primary image shown in listings and cart rows.
func (p *Product) Image() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// Normalize replaces nil collections with empty ones so that freshly created
// products persist arrays rather than nulls.
func (p *Product) Normalize() {
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	if p.AvailablePincodes == nil {
		p.AvailablePincodes = []string{}
	}
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
	if p.Variants == nil {
		p.Variants = []ProductVariant{}
	}
	if p.InventoryRules == nil {
		p.InventoryRules = []InventoryRule{}
	}
}
