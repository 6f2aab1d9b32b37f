// Package dispatch serves delivery routing: sequencing an agent's orders,
// the printable route sheet, and the order status lifecycle.
package dispatch

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"bazaar/models"
	"bazaar/notify"
	"bazaar/routing"
	"bazaar/store"
	"bazaar/utils"
)

type Handlers struct {
	Store *store.Store
	Hub   *notify.Hub // optional
	Now   func() time.Time
}

// Route is a sequenced batch of orders.
type Route struct {
	Orders  []models.Order `json:"orders"`
	Stops   []routing.Stop `json:"stops"`
	TotalKm float64        `json:"totalKm"`
}

// NewRoute sequences orders and annotates the legs.
func NewRoute(orders []models.Order) Route {
	seq := routing.Sequence(orders)
	if seq == nil {
		seq = []models.Order{}
	}
	return Route{Orders: seq, Stops: routing.Stops(seq), TotalKm: routing.Distance(seq)}
}

// Sequence orders the posted batch by nearest neighbour.
func (h *Handlers) Sequence(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Orders []models.Order `json:"orders"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, NewRoute(body.Orders))
}

// AgentRoute sequences the agent's active orders from the store.
func (h *Handlers) AgentRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID := ps.ByName("agentid")
	utils.RespondWithJSON(w, http.StatusOK, NewRoute(h.Store.OrdersForAgent(agentID)))
}

// AgentSheet renders the agent's route as a PDF.
func (h *Handlers) AgentSheet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	agentID := ps.ByName("agentid")
	route := NewRoute(h.Store.OrdersForAgent(agentID))

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	pdf, err := RouteSheet(agentID, route.Orders, now())
	if err != nil {
		log.Printf("[dispatch] sheet for %s: %v", agentID, err)
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=route-"+agentID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// AdvanceStatus moves an order along its lifecycle.
func (h *Handlers) AdvanceStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Status string `json:"status"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	if !models.ValidStatus(body.Status) {
		utils.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", body.Status))
		return
	}
	o, err := h.Store.AdvanceOrder(ps.ByName("id"), models.OrderStatus(body.Status))
	if err != nil {
		utils.RespondWithError(w, store.HTTPStatus(err), err.Error())
		return
	}
	h.notify(o)
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// Assign hands an active order to a delivery agent.
func (h *Handlers) Assign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		AgentID string `json:"agentId"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	if body.AgentID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	o, err := h.Store.AssignAgent(ps.ByName("id"), body.AgentID)
	if err != nil {
		utils.RespondWithError(w, store.HTTPStatus(err), err.Error())
		return
	}
	h.notify(o)
	utils.RespondWithJSON(w, http.StatusOK, o)
}

func (h *Handlers) notify(o models.Order) {
	if h.Hub == nil {
		return
	}
	h.Hub.Publish(o.UserID, "order", []string{fmt.Sprintf("Order %s is %s", o.ID, o.Status)}, o)
}

