package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"bazaar/geoinv"
	"bazaar/models"
	"bazaar/store"
	"bazaar/utils"
)

// Resolve prices a variant at an address.
func (a *API) Resolve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		ProductID string          `json:"productId"`
		VariantID string          `json:"variantId"`
		Address   *models.Address `json:"address"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	p, ok := a.Store.Product(body.ProductID)
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	res := geoinv.Resolve(&p, body.VariantID, body.Address)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"resolution": res,
		"finalPrice": geoinv.FinalPrice(res),
	})
}

// AddRule adds or replaces a location rule on one of the seller's products.
// Carts holding the product are re-priced and their owners notified.
func (a *API) AddRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	productID := ps.ByName("id")
	p, ok := a.Store.Product(productID)
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	userID := utils.GetUserIDFromRequest(r)
	if p.SellerID != userID && !utils.Contains(utils.GetRolesFromRequest(r), models.RoleAdmin) {
		utils.RespondWithError(w, http.StatusForbidden, "Not your product")
		return
	}

	var rule models.InventoryRule
	if !utils.DecodeJSON(w, r, &rule) {
		return
	}
	saved, err := a.Store.UpsertRule(productID, rule)
	if err != nil {
		utils.RespondWithError(w, store.HTTPStatus(err), err.Error())
		return
	}
	a.reconcileAll()
	utils.RespondWithJSON(w, http.StatusCreated, saved)
}
