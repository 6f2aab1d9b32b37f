package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"bazaar/cart"
	"bazaar/models"
	"bazaar/store"
	"bazaar/utils"
)

type cartView struct {
	Cart            []models.CartItem `json:"cart"`
	Total           float64           `json:"total"`
	SelectedAddress *models.Address   `json:"selectedAddress,omitempty"`
	Notices         []cart.Notice     `json:"notices"`
}

func (a *API) cartView(userID string, pass cart.Pass) cartView {
	sess := a.Store.Session(userID)
	notices := pass.Notices
	if notices == nil {
		notices = []cart.Notice{}
	}
	return cartView{
		Cart:            sess.Cart,
		Total:           models.ItemsTotal(sess.Cart),
		SelectedAddress: sess.SelectedAddress,
		Notices:         notices,
	}
}

// reconcile runs the cart pass and pushes its notices to the user.
func (a *API) reconcile(userID string) cart.Pass {
	pass := a.Store.ReconcileCart(userID)
	a.publishNotices(userID, pass)
	return pass
}

// reconcileAll re-checks every held cart after a catalog change.
func (a *API) reconcileAll() {
	for userID, pass := range a.Store.ReconcileAllCarts() {
		a.publishNotices(userID, pass)
	}
}

func (a *API) publishNotices(userID string, pass cart.Pass) {
	if len(pass.Notices) == 0 {
		return
	}
	msgs := make([]string, 0, len(pass.Notices))
	for _, n := range pass.Notices {
		msgs = append(msgs, n.Message)
	}
	a.publish(userID, "cart", msgs, pass.Notices)
}

// GetCart reconciles the caller's cart against the live catalog and returns it.
func (a *API) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	pass := a.reconcile(userID)
	utils.RespondWithJSON(w, http.StatusOK, a.cartView(userID, pass))
}

func (a *API) ReconcileCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	pass := a.reconcile(userID)
	utils.RespondWithJSON(w, http.StatusOK, a.cartView(userID, pass))
}

func (a *API) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		ProductID string `json:"productId"`
		VariantID string `json:"variantId"`
		Quantity  int    `json:"quantity"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	userID := utils.GetUserIDFromRequest(r)
	item, pass, err := a.Store.AddToCart(userID, body.ProductID, body.VariantID, body.Quantity)
	if err != nil {
		utils.RespondWithError(w, store.HTTPStatus(err), err.Error())
		return
	}
	a.publishNotices(userID, pass)
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

func (a *API) RemoveFromCart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	a.Store.RemoveFromCart(userID, ps.ByName("productid"), ps.ByName("variantid"))
	utils.RespondWithJSON(w, http.StatusOK, a.cartView(userID, cart.Pass{}))
}

// SelectAddress switches the location the caller shops for. Either an id
// from the caller's address book or an inline address is accepted; the cart
// is re-priced for the new location.
func (a *API) SelectAddress(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		AddressID string          `json:"addressId"`
		Address   *models.Address `json:"address"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	userID := utils.GetUserIDFromRequest(r)

	addr := body.Address
	if body.AddressID != "" {
		u, ok := a.Store.User(userID)
		if !ok {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		found, ok := u.Address(body.AddressID)
		if !ok {
			utils.RespondWithError(w, http.StatusNotFound, "Address not found")
			return
		}
		addr = found
	}
	a.Store.SelectAddress(userID, addr)
	pass := a.reconcile(userID)
	utils.RespondWithJSON(w, http.StatusOK, a.cartView(userID, pass))
}

// Checkout places the caller's cart as an order.
func (a *API) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		PaymentMethod string `json:"paymentMethod"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	userID := utils.GetUserIDFromRequest(r)
	order, pass, err := a.Store.PlaceOrder(userID, body.PaymentMethod)
	if err != nil {
		utils.RespondWithError(w, store.HTTPStatus(err), err.Error())
		return
	}
	notices := pass.Notices
	if notices == nil {
		notices = []cart.Notice{}
	}
	a.publish(userID, "order", []string{"Order " + order.ID + " placed"}, order)
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"order": order, "notices": notices})
}
