// Package cart keeps denormalized cart rows coherent with the live catalog.
//
// A pass is split into a read phase and a commit phase. Reconcile inspects an
// immutable snapshot of catalog, cart and location and returns the patches
// it would make; Apply commits them in one step. Nothing is mutated while
// the snapshot is being read.
package cart

import (
	"math"

	"bazaar/geoinv"
	"bazaar/models"
)

type Action int

const (
	// ActionRemove drops every cart row with the patch key.
	ActionRemove Action = iota + 1
	// ActionUpdate replaces the row with the patch item.
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionRemove:
		return "remove"
	case ActionUpdate:
		return "update"
	}
	return "unknown"
}

// Patch is one correction computed by a read pass.
type Patch struct {
	Action Action          `json:"action"`
	Key    string          `json:"key"`
	Item   models.CartItem `json:"item"` // corrected row for updates, original row for removals
	Reason string          `json:"reason"`
}

// Pass is the outcome of one reconciliation read.
type Pass struct {
	Patches []Patch  `json:"patches"`
	Notices []Notice `json:"notices"`
}

// Clean reports whether the cart already matched the catalog.
func (p Pass) Clean() bool {
	return len(p.Patches) == 0
}

// Reconcile compares every cart row against the catalog as seen from addr.
//
// Per row, in order: a missing product or variant removes the row; zero live
// stock removes it; quantity above live stock is clamped; a price, name or
// image difference updates the row carrying the clamped quantity. Rows that
// share a key are first folded into one whose quantity is their sum.
func Reconcile(products []models.Product, items []models.CartItem, addr *models.Address) Pass {
	catalog := make(map[string]*models.Product, len(products))
	for i := range products {
		if _, dup := catalog[products[i].ID]; !dup {
			catalog[products[i].ID] = &products[i]
		}
	}

	var pass Pass
	notices := newNoticeSet()

	merged, folded := mergeRows(items)
	for _, item := range merged {
		p, ok := catalog[item.ProductID]
		if !ok {
			pass.Patches = append(pass.Patches, Patch{Action: ActionRemove, Key: item.Key(), Item: item, Reason: "product no longer listed"})
			notices.add(NoticeRemoved, item.Name)
			continue
		}
		if _, ok := p.Variant(item.VariantID); !ok {
			pass.Patches = append(pass.Patches, Patch{Action: ActionRemove, Key: item.Key(), Item: item, Reason: "variant no longer offered"})
			notices.add(NoticeRemoved, item.Name)
			continue
		}

		live := geoinv.Resolve(p, item.VariantID, addr)
		if live.Stock <= 0 {
			pass.Patches = append(pass.Patches, Patch{Action: ActionRemove, Key: item.Key(), Item: item, Reason: "out of stock at this location"})
			notices.add(NoticeRemoved, item.Name)
			continue
		}

		qty := item.Quantity
		clamped := false
		if qty > live.Stock {
			qty = live.Stock
			clamped = true
		}
		repriced := !samePrice(item.Price, live.Price)
		image := p.Image()

		if !clamped && !repriced && !folded[item.Key()] && item.Name == p.Name && item.Image == image {
			continue
		}

		fixed := item
		fixed.Name = p.Name
		fixed.Price = live.Price
		fixed.Image = image
		fixed.Weight = live.Weight
		fixed.Quantity = qty
		pass.Patches = append(pass.Patches, Patch{Action: ActionUpdate, Key: item.Key(), Item: fixed, Reason: reason(clamped, repriced, folded[item.Key()])})

		if clamped {
			notices.add(NoticeQuantityAdjusted, p.Name)
		}
		if repriced {
			notices.add(NoticePriceUpdated, p.Name)
		}
	}

	pass.Notices = notices.list()
	return pass
}

// mergeRows folds rows sharing a key into the first of them, summing
// quantities. folded marks the keys that had more than one row.
func mergeRows(items []models.CartItem) ([]models.CartItem, map[string]bool) {
	at := make(map[string]int, len(items))
	folded := make(map[string]bool)
	out := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if i, seen := at[k]; seen {
			out[i].Quantity += it.Quantity
			folded[k] = true
			continue
		}
		at[k] = len(out)
		out = append(out, it)
	}
	return out, folded
}

// samePrice treats two NaN prices as equal.
func samePrice(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func reason(clamped, repriced, folded bool) string {
	switch {
	case clamped && repriced:
		return "quantity clamped to stock and price refreshed"
	case clamped:
		return "quantity clamped to stock"
	case repriced:
		return "price refreshed"
	case folded:
		return "duplicate rows merged"
	}
	return "listing details refreshed"
}

// Apply commits patches to items and returns the new cart. items is not
// modified. Removal wins over update for the same key, and an updated key
// keeps a single row.
func Apply(items []models.CartItem, patches []Patch) []models.CartItem {
	if len(patches) == 0 {
		return append([]models.CartItem{}, items...)
	}
	removed := make(map[string]bool)
	updated := make(map[string]models.CartItem)
	for _, p := range patches {
		switch p.Action {
		case ActionRemove:
			removed[p.Key] = true
		case ActionUpdate:
			updated[p.Key] = p.Item
		}
	}

	out := make([]models.CartItem, 0, len(items))
	written := make(map[string]bool)
	for _, it := range items {
		k := it.Key()
		if removed[k] {
			continue
		}
		if u, ok := updated[k]; ok {
			if written[k] {
				continue
			}
			written[k] = true
			it = u
		}
		out = append(out, it)
	}
	return out
}
