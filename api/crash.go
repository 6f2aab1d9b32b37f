package api

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"bazaar/crash"
	"bazaar/utils"
)

// TriggerCrash reports an unhandled client-side failure.
func (a *API) TriggerCrash(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Cause string `json:"cause"`
	}
	if !utils.DecodeJSON(w, r, &body) {
		return
	}
	if body.Cause == "" {
		body.Cause = "unknown failure"
	}
	userID := utils.GetUserIDFromRequest(r)
	d, err := a.Governors.Get(userID).Trigger(r.Context(), errors.New(body.Cause))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publish(userID, "crash", d.Log, d)
	utils.RespondWithJSON(w, http.StatusOK, d)
}

// Started arms the stability timer after a successful (re)start.
func (a *API) Started(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	g := a.Governors.Get(utils.GetUserIDFromRequest(r))
	g.Started()
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"armed": g.Armed()})
}

func (a *API) CrashStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	g := a.Governors.Get(utils.GetUserIDFromRequest(r))
	n, err := g.Count(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := utils.M{"count": n, "armed": g.Armed()}
	if n > 0 {
		status["tier"] = crash.TierFor(n)
	}
	utils.RespondWithJSON(w, http.StatusOK, status)
}

// ResetCrash is the manual factory reset.
func (a *API) ResetCrash(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := a.Governors.Get(utils.GetUserIDFromRequest(r)).Reset(r.Context()); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"count": 0})
}
