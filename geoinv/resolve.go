// Package geoinv resolves the effective price, stock and discount of a
// product variant for a delivery location.
//
// Overrides are applied by strict specificity: an exact pincode rule beats a
// city rule, which beats a state rule, which beats the variant's base values.
// Tiers never blend. Within a tier the first-declared matching rule wins.
package geoinv

import (
	"strings"

	"bazaar/models"
)

// Resolution is the effective offer for one variant at one location.
type Resolution struct {
	Price    float64  `json:"price"`
	Stock    int      `json:"stock"`
	Discount *float64 `json:"discount,omitempty"`
	Weight   string   `json:"weight"`
	RuleID   string   `json:"ruleId,omitempty"` // winning override, empty for base values
}

// Unavailable is returned for variants the product does not carry.
var Unavailable = Resolution{Weight: "N/A"}

// Resolve returns the effective price/stock/discount of variantID on p for
// addr. It never fails: an unknown variant yields Unavailable and a nil
// address yields base values.
func Resolve(p *models.Product, variantID string, addr *models.Address) Resolution {
	if p == nil {
		return Unavailable
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return Unavailable
	}
	base := Resolution{
		Price:    v.Price,
		Stock:    v.Stock,
		Discount: v.Discount,
		Weight:   v.Weight,
	}
	if addr == nil || len(p.InventoryRules) == 0 {
		return base
	}

	rule := match(p.InventoryRules, variantID, addr)
	if rule == nil {
		return base
	}
	return Resolution{
		Price:    rule.Price,
		Stock:    rule.Stock,
		Discount: rule.Discount,
		Weight:   v.Weight,
		RuleID:   rule.ID,
	}
}

// match picks the winning rule for addr, or nil when only base values apply.
func match(rules []models.InventoryRule, variantID string, addr *models.Address) *models.InventoryRule {
	var city, state *models.InventoryRule
	for i := range rules {
		r := &rules[i]
		if r.VariantID != variantID {
			continue
		}
		switch r.Scope {
		case models.ScopePincode:
			if addr.Pincode != "" && r.LocationName == addr.Pincode {
				return r
			}
		case models.ScopeCity:
			if city == nil && sameName(r.LocationName, addr.City) {
				city = r
			}
		case models.ScopeState:
			if state == nil && sameName(r.LocationName, addr.State) {
				state = r
			}
		}
	}
	if city != nil {
		return city
	}
	return state
}

func sameName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// FinalPrice is the price after the resolved discount percent.
func FinalPrice(r Resolution) float64 {
	if r.Discount == nil || *r.Discount <= 0 {
		return r.Price
	}
	d := *r.Discount
	if d > 100 {
		d = 100
	}
	return r.Price * (100 - d) / 100
}
