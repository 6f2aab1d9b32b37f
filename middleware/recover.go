package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"bazaar/crash"
	"bazaar/globals"
	"bazaar/utils"
)

// Recover turns a handler panic into a crash-governor trigger for the
// calling client and answers with the decision. It must run inside
// Authenticate so the client is known.
func Recover(governors *crash.Registry, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			client, _ := r.Context().Value(globals.UserIDKey).(string)
			if client == "" {
				client = "anonymous"
			}
			log.Printf("[recover] %s %s panicked for %s: %v", r.Method, r.URL.Path, client, rec)

			d, err := governors.Get(client).Trigger(r.Context(), fmt.Errorf("panic: %v", rec))
			if err != nil {
				log.Printf("[recover] crash governor for %s: %v", client, err)
				utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			utils.RespondWithJSON(w, http.StatusInternalServerError, utils.M{
				"error":    "Internal server error",
				"recovery": d,
			})
		}()
		next(w, r, ps)
	}
}
