package routes

import (
	"github.com/julienschmidt/httprouter"

	"bazaar/api"
	"bazaar/crash"
	"bazaar/dispatch"
	"bazaar/middleware"
	"bazaar/models"
	"bazaar/notify"
	"bazaar/ratelim"
)

// Deps are the handlers and middleware state the routes bind to.
type Deps struct {
	API         *api.API
	Dispatch    *dispatch.Handlers
	Hub         *notify.Hub
	Governors   *crash.Registry
	RateLimiter *ratelim.RateLimiter
}

// authed rate-limits, authenticates and guards h with the crash governor.
func authed(d Deps, h httprouter.Handle) httprouter.Handle {
	return d.RateLimiter.Limit(middleware.Authenticate(middleware.Recover(d.Governors, h)))
}

func role(d Deps, r string, h httprouter.Handle) httprouter.Handle {
	return authed(d, middleware.RequireRole(r, h))
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/cart", authed(d, d.API.GetCart))
	router.POST("/api/cart", authed(d, d.API.AddToCart))
	router.DELETE("/api/cart/items/:productid/:variantid", authed(d, d.API.RemoveFromCart))
	router.POST("/api/cart/reconcile", authed(d, d.API.ReconcileCart))
	router.POST("/api/cart/address", authed(d, d.API.SelectAddress))
	router.POST("/api/cart/checkout", authed(d, d.API.Checkout))
}

func AddGeoRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/geo/resolve", d.RateLimiter.Limit(d.API.Resolve))
	router.POST("/api/products/:id/rules", role(d, models.RoleSeller, d.API.AddRule))
}

func AddIntegrityRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/integrity/reconcile", role(d, models.RoleAdmin, d.API.Reconcile))
	router.POST("/api/integrity/diagnose", role(d, models.RoleAdmin, d.API.Diagnose))
	router.POST("/api/integrity/cleanup", role(d, models.RoleAdmin, d.API.Cleanup))
}

func AddDispatchRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/dispatch/sequence", role(d, models.RoleDelivery, d.Dispatch.Sequence))
	router.GET("/api/dispatch/agent/:agentid", role(d, models.RoleDelivery, d.Dispatch.AgentRoute))
	router.GET("/api/dispatch/agent/:agentid/sheet", role(d, models.RoleDelivery, d.Dispatch.AgentSheet))
	router.POST("/api/orders/:id/status", role(d, models.RoleSeller, d.Dispatch.AdvanceStatus))
	router.POST("/api/orders/:id/assign", role(d, models.RoleAdmin, d.Dispatch.Assign))
}

func AddCrashRoutes(router *httprouter.Router, d Deps) {
	// No Recover here: a failing crash report must not count as a crash.
	router.POST("/api/crash/trigger", d.RateLimiter.Limit(middleware.Authenticate(d.API.TriggerCrash)))
	router.POST("/api/crash/started", d.RateLimiter.Limit(middleware.Authenticate(d.API.Started)))
	router.GET("/api/crash/status", middleware.Authenticate(d.API.CrashStatus))
	router.POST("/api/crash/reset", middleware.Authenticate(d.API.ResetCrash))
}

func AddNoticeRoutes(router *httprouter.Router, d Deps) {
	router.GET("/ws/notices", middleware.Authenticate(notify.WebSocketHandler(d.Hub)))
}

func RoutesWrapper(router *httprouter.Router, d Deps) {
	AddCartRoutes(router, d)
	AddGeoRoutes(router, d)
	AddIntegrityRoutes(router, d)
	AddDispatchRoutes(router, d)
	AddCrashRoutes(router, d)
	AddNoticeRoutes(router, d)
}
