package geoinv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/models"
)

func pct(v float64) *float64 { return &v }

func atta() *models.Product {
	return &models.Product{
		ID:   "p1",
		Name: "Atta",
		Variants: []models.ProductVariant{
			{ID: "v1", Weight: "1kg", Price: 75, Stock: 50, Discount: pct(5)},
			{ID: "v2", Weight: "5kg", Price: 340, Stock: 10},
		},
		InventoryRules: []models.InventoryRule{
			{ID: "r-pin", VariantID: "v1", Scope: models.ScopePincode, LocationName: "400001", Price: 60, Stock: 30},
			{ID: "r-city", VariantID: "v1", Scope: models.ScopeCity, LocationName: "Pune", Price: 70, Stock: 12},
			{ID: "r-state", VariantID: "v1", Scope: models.ScopeState, LocationName: "Karnataka", Price: 80, Stock: 4, Discount: pct(10)},
		},
	}
}

func TestResolve_UnknownVariant(t *testing.T) {
	got := Resolve(atta(), "nope", &models.Address{Pincode: "400001"})
	assert.Equal(t, Unavailable, got)
	assert.Equal(t, "N/A", got.Weight)
	assert.Zero(t, got.Price)
	assert.Zero(t, got.Stock)
}

func TestResolve_NilProduct(t *testing.T) {
	assert.Equal(t, Unavailable, Resolve(nil, "v1", nil))
}

func TestResolve_NoAddressUsesBase(t *testing.T) {
	got := Resolve(atta(), "v1", nil)
	assert.Equal(t, 75.0, got.Price)
	assert.Equal(t, 50, got.Stock)
	require.NotNil(t, got.Discount)
	assert.Equal(t, 5.0, *got.Discount)
	assert.Equal(t, "1kg", got.Weight)
	assert.Empty(t, got.RuleID)
}

func TestResolve_NoRulesUsesBase(t *testing.T) {
	p := atta()
	p.InventoryRules = nil
	got := Resolve(p, "v1", &models.Address{Pincode: "400001"})
	assert.Equal(t, 75.0, got.Price)
	assert.Equal(t, 50, got.Stock)
}

func TestResolve_PincodeScenario(t *testing.T) {
	got := Resolve(atta(), "v1", &models.Address{Pincode: "400001"})
	assert.Equal(t, 60.0, got.Price)
	assert.Equal(t, 30, got.Stock)
	assert.Equal(t, "r-pin", got.RuleID)
	assert.Nil(t, got.Discount, "overrides do not blend with base discount")
}

func TestResolve_Specificity(t *testing.T) {
	p := atta()

	t.Run("pincode beats city", func(t *testing.T) {
		got := Resolve(p, "v1", &models.Address{Pincode: "400001", City: "Pune"})
		assert.Equal(t, "r-pin", got.RuleID)
	})

	t.Run("city when pincode differs", func(t *testing.T) {
		got := Resolve(p, "v1", &models.Address{Pincode: "411001", City: "pune", State: "Karnataka"})
		assert.Equal(t, "r-city", got.RuleID)
		assert.Equal(t, 70.0, got.Price)
	})

	t.Run("state case-insensitive", func(t *testing.T) {
		got := Resolve(p, "v1", &models.Address{Pincode: "560001", City: "Bengaluru", State: "KARNATAKA"})
		assert.Equal(t, "r-state", got.RuleID)
		assert.Equal(t, 4, got.Stock)
	})

	t.Run("no match falls back to base", func(t *testing.T) {
		got := Resolve(p, "v1", &models.Address{Pincode: "110001", City: "Delhi", State: "Delhi"})
		assert.Empty(t, got.RuleID)
		assert.Equal(t, 75.0, got.Price)
	})

	t.Run("rules for other variants ignored", func(t *testing.T) {
		got := Resolve(p, "v2", &models.Address{Pincode: "400001"})
		assert.Empty(t, got.RuleID)
		assert.Equal(t, 340.0, got.Price)
	})
}

func TestResolve_PincodeIsExact(t *testing.T) {
	p := atta()
	got := Resolve(p, "v1", &models.Address{Pincode: " 400001"})
	assert.NotEqual(t, "r-pin", got.RuleID)
}

func TestResolve_FirstDeclaredWins(t *testing.T) {
	p := atta()
	p.InventoryRules = append(p.InventoryRules,
		models.InventoryRule{ID: "r-pin-2", VariantID: "v1", Scope: models.ScopePincode, LocationName: "400001", Price: 1, Stock: 1})
	got := Resolve(p, "v1", &models.Address{Pincode: "400001"})
	assert.Equal(t, "r-pin", got.RuleID)
}

func TestFinalPrice(t *testing.T) {
	assert.Equal(t, 100.0, FinalPrice(Resolution{Price: 100}))
	assert.InDelta(t, 90.0, FinalPrice(Resolution{Price: 100, Discount: pct(10)}), 1e-9)
	assert.Equal(t, 0.0, FinalPrice(Resolution{Price: 100, Discount: pct(150)}))
	assert.Equal(t, 100.0, FinalPrice(Resolution{Price: 100, Discount: pct(-5)}))
}

func TestConflicts(t *testing.T) {
	rules := []models.InventoryRule{
		{ID: "a", VariantID: "v1", Scope: models.ScopeCity, LocationName: "Pune"},
		{ID: "b", VariantID: "v1", Scope: models.ScopeCity, LocationName: "PUNE"},
		{ID: "c", VariantID: "v2", Scope: models.ScopeCity, LocationName: "Pune"},
		{ID: "d", VariantID: "v1", Scope: models.ScopeState, LocationName: "Pune"},
	}
	got := Conflicts(rules)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].First)
	assert.Equal(t, "b", got[0].Shadowed)
	assert.Contains(t, got[0].String(), "shadowed by a")

	_, clash := ConflictsWith(rules, models.InventoryRule{ID: "e", VariantID: "v2", Scope: models.ScopeCity, LocationName: "pune"})
	assert.True(t, clash)
	_, clash = ConflictsWith(rules, models.InventoryRule{ID: "c", VariantID: "v2", Scope: models.ScopeCity, LocationName: "pune"})
	assert.False(t, clash, "a rule never conflicts with itself")
}
