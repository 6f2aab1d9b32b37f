package api

import (
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"bazaar/notify"
	"bazaar/utils"
)

func (a *API) runPass(w http.ResponseWriter, kind string, pass func() ([]string, error)) {
	out, err := pass()
	if err != nil {
		log.Printf("[integrity] %s: %v", kind, err)
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.publish(notify.AdminRoom, "integrity", out, utils.M{"pass": kind})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"pass": kind, "log": out})
}

func (a *API) Reconcile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	a.runPass(w, "reconcile", a.Store.Repair)
}

func (a *API) Diagnose(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	a.runPass(w, "diagnose", a.Store.DiagnoseAndFix)
}

func (a *API) Cleanup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	a.runPass(w, "cleanup", a.Store.SafeCleanup)
}
