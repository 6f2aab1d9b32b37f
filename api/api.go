// Package api holds the HTTP handlers over held state: the cart, geo
// pricing, integrity passes and the crash governor.
package api

import (
	"bazaar/crash"
	"bazaar/notify"
	"bazaar/store"
)

type API struct {
	Store     *store.Store
	Governors *crash.Registry
	Hub       *notify.Hub // optional
}

func (a *API) publish(room, kind string, messages []string, data any) {
	if a.Hub == nil {
		return
	}
	a.Hub.Publish(room, kind, messages, data)
}

