package cart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/models"
)

func catalog() []models.Product {
	return []models.Product{
		{
			ID:        "p1",
			Name:      "Toor Dal",
			ImageURLs: []string{"dal.jpg"},
			Variants: []models.ProductVariant{
				{ID: "v1", Weight: "1kg", Price: 40, Stock: 50},
				{ID: "v2", Weight: "500g", Price: 22, Stock: 0},
			},
			InventoryRules: []models.InventoryRule{
				{ID: "r1", VariantID: "v1", Scope: models.ScopePincode, LocationName: "400001", Price: 38, Stock: 0},
			},
		},
		{
			ID:        "p2",
			Name:      "Basmati Rice",
			ImageURLs: []string{"rice.jpg"},
			Variants:  []models.ProductVariant{{ID: "v1", Weight: "5kg", Price: 500, Stock: 10}},
		},
	}
}

func row(pid, vid, name string, price float64, qty int, image string) models.CartItem {
	return models.CartItem{ProductID: pid, VariantID: vid, Name: name, Price: price, Quantity: qty, Image: image}
}

func classes(p Pass) []NoticeClass {
	var out []NoticeClass
	for _, n := range p.Notices {
		out = append(out, n.Class)
	}
	return out
}

func TestReconcile_CleanCart(t *testing.T) {
	items := []models.CartItem{row("p1", "v1", "Toor Dal", 40, 2, "dal.jpg")}
	pass := Reconcile(catalog(), items, nil)
	assert.True(t, pass.Clean())
	assert.Empty(t, pass.Notices)
}

func TestReconcile_Removals(t *testing.T) {
	items := []models.CartItem{
		row("gone", "v1", "Ghee", 600, 1, ""),
		row("p2", "v9", "Basmati Rice", 500, 1, "rice.jpg"),
		row("p1", "v2", "Toor Dal", 22, 1, "dal.jpg"),
	}
	pass := Reconcile(catalog(), items, nil)
	require.Len(t, pass.Patches, 3)
	for _, p := range pass.Patches {
		assert.Equal(t, ActionRemove, p.Action)
	}
	require.Len(t, pass.Notices, 1, "removed fires once for all rows")
	assert.Equal(t, NoticeRemoved, pass.Notices[0].Class)
	assert.Equal(t, []string{"Ghee", "Basmati Rice", "Toor Dal"}, pass.Notices[0].Items)
	assert.Contains(t, pass.Notices[0].Message, "3 items were removed")

	assert.Empty(t, Apply(items, pass.Patches))
}

func TestReconcile_OutOfStockAtLocation(t *testing.T) {
	items := []models.CartItem{row("p1", "v1", "Toor Dal", 40, 2, "dal.jpg")}
	pass := Reconcile(catalog(), items, &models.Address{Pincode: "400001"})
	require.Len(t, pass.Patches, 1)
	assert.Equal(t, ActionRemove, pass.Patches[0].Action)
	assert.Equal(t, "out of stock at this location", pass.Patches[0].Reason)
}

func TestReconcile_ClampAndReprice(t *testing.T) {
	products := catalog()
	items := []models.CartItem{row("p1", "v1", "Toor Dal", 40, 5, "dal.jpg")}

	// Seller drops stock to 2 and price to 35.
	products[0].Variants[0].Stock = 2
	products[0].Variants[0].Price = 35

	pass := Reconcile(products, items, nil)
	require.Len(t, pass.Patches, 1)
	p := pass.Patches[0]
	assert.Equal(t, ActionUpdate, p.Action)
	assert.Equal(t, 2, p.Item.Quantity)
	assert.Equal(t, 35.0, p.Item.Price)
	assert.Equal(t, []NoticeClass{NoticeQuantityAdjusted, NoticePriceUpdated}, classes(pass))

	fixed := Apply(items, pass.Patches)
	require.Len(t, fixed, 1)
	assert.Equal(t, 2, fixed[0].Quantity)
	assert.Equal(t, 35.0, fixed[0].Price)
	assert.Equal(t, 5, items[0].Quantity, "input cart untouched")
}

func TestReconcile_SilentListingRefresh(t *testing.T) {
	items := []models.CartItem{row("p2", "v1", "Rice", 500, 1, "old.jpg")}
	pass := Reconcile(catalog(), items, nil)
	require.Len(t, pass.Patches, 1)
	assert.Equal(t, "Basmati Rice", pass.Patches[0].Item.Name)
	assert.Equal(t, "rice.jpg", pass.Patches[0].Item.Image)
	assert.Empty(t, pass.Notices)
}

func TestReconcile_FixedPoint(t *testing.T) {
	products := catalog()
	products[1].Variants[0].Price = 480
	products[1].Variants[0].Stock = 3
	items := []models.CartItem{
		row("p1", "v1", "Dal", 41, 1, ""),
		row("p2", "v1", "Basmati Rice", 500, 7, "rice.jpg"),
		row("gone", "v1", "Ghee", 600, 1, ""),
	}
	addr := &models.Address{Pincode: "560001"}

	first := Reconcile(products, items, addr)
	require.False(t, first.Clean())
	once := Apply(items, first.Patches)

	second := Reconcile(products, once, addr)
	assert.True(t, second.Clean())
	assert.Empty(t, second.Notices)
	assert.Equal(t, once, Apply(once, second.Patches))
}

func TestReconcile_DuplicateRowsShareStock(t *testing.T) {
	products := catalog()
	products[0].Variants[0].Stock = 2
	items := []models.CartItem{
		row("p1", "v1", "Toor Dal", 40, 3, "dal.jpg"),
		row("p1", "v1", "Toor Dal", 40, 3, "dal.jpg"),
	}

	first := Reconcile(products, items, nil)
	require.Len(t, first.Patches, 1)
	assert.Equal(t, ActionUpdate, first.Patches[0].Action)
	assert.Equal(t, []NoticeClass{NoticeQuantityAdjusted}, classes(first))

	once := Apply(items, first.Patches)
	require.Len(t, once, 1)
	assert.Equal(t, 2, once[0].Quantity)

	second := Reconcile(products, once, nil)
	assert.True(t, second.Clean())
}

func TestReconcile_DuplicateRowsMergeWithinStock(t *testing.T) {
	items := []models.CartItem{
		row("p2", "v1", "Basmati Rice", 500, 1, "rice.jpg"),
		row("p1", "v1", "Toor Dal", 40, 1, "dal.jpg"),
		row("p2", "v1", "Basmati Rice", 500, 2, "rice.jpg"),
	}
	pass := Reconcile(catalog(), items, nil)
	require.Len(t, pass.Patches, 1)
	assert.Equal(t, "duplicate rows merged", pass.Patches[0].Reason)
	assert.Empty(t, pass.Notices)

	out := Apply(items, pass.Patches)
	require.Len(t, out, 2)
	assert.Equal(t, "p2/v1", out[0].Key())
	assert.Equal(t, 3, out[0].Quantity)
	assert.Equal(t, "p1/v1", out[1].Key())
}

func TestReconcile_UnpricedRuleSettles(t *testing.T) {
	products := catalog()
	products[0].InventoryRules = append(products[0].InventoryRules, models.InventoryRule{
		ID: "r2", VariantID: "v1", Scope: models.ScopeCity, LocationName: "Pune", Price: math.NaN(), Stock: 5,
	})
	addr := &models.Address{Pincode: "411001", City: "Pune"}
	items := []models.CartItem{row("p1", "v1", "Toor Dal", 40, 1, "dal.jpg")}

	first := Reconcile(products, items, addr)
	require.Len(t, first.Patches, 1)
	once := Apply(items, first.Patches)

	second := Reconcile(products, once, addr)
	assert.True(t, second.Clean())
	assert.Empty(t, second.Notices)
}

func TestApply_RemoveWinsOverUpdate(t *testing.T) {
	items := []models.CartItem{row("p1", "v1", "Dal", 40, 1, "")}
	patches := []Patch{
		{Action: ActionUpdate, Key: "p1/v1", Item: row("p1", "v1", "Dal", 41, 1, "")},
		{Action: ActionRemove, Key: "p1/v1"},
	}
	assert.Empty(t, Apply(items, patches))
}

func TestApply_NoPatchesCopies(t *testing.T) {
	items := []models.CartItem{row("p1", "v1", "Dal", 40, 1, "")}
	out := Apply(items, nil)
	out[0].Quantity = 9
	assert.Equal(t, 1, items[0].Quantity)
	assert.NotNil(t, Apply(nil, nil))
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "remove", ActionRemove.String())
	assert.Equal(t, "update", ActionUpdate.String())
	assert.Equal(t, "unknown", Action(0).String())
}
