package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/api"
	"bazaar/crash"
	"bazaar/dispatch"
	"bazaar/middleware"
	"bazaar/models"
	"bazaar/notify"
	"bazaar/ratelim"
	"bazaar/store"
)

func setup(t *testing.T) *httprouter.Router {
	t.Helper()
	s := store.New(nil, nil)
	hub := notify.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	gov := crash.NewRegistry(nil, s, crash.Options{})

	router := httprouter.New()
	RoutesWrapper(router, Deps{
		API:         &api.API{Store: s, Governors: gov, Hub: hub},
		Dispatch:    &dispatch.Handlers{Store: s, Hub: hub},
		Hub:         hub,
		Governors:   gov,
		RateLimiter: ratelim.NewRateLimiter(100, 100),
	})
	return router
}

func request(t *testing.T, r http.Handler, method, path, body string, roles ...string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if roles != nil {
		token, err := middleware.IssueToken("u1", roles, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes_Auth(t *testing.T) {
	r := setup(t)

	assert.Equal(t, http.StatusUnauthorized, request(t, r, http.MethodGet, "/api/cart", ""))
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/api/cart", "", models.RoleCustomer))

	assert.Equal(t, http.StatusForbidden, request(t, r, http.MethodPost, "/api/integrity/diagnose", "", models.RoleCustomer))
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodPost, "/api/integrity/diagnose", "", models.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, request(t, r, http.MethodGet, "/api/dispatch/agent/u1", "", models.RoleCustomer))
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/api/dispatch/agent/u1", "", models.RoleDelivery))
}

func TestRoutes_PublicResolve(t *testing.T) {
	r := setup(t)
	assert.Equal(t, http.StatusNotFound, request(t, r, http.MethodPost, "/api/geo/resolve", `{"productId":"p1","variantId":"v1"}`))
}

func TestRoutes_Crash(t *testing.T) {
	r := setup(t)
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodPost, "/api/crash/trigger", `{"cause":"x"}`, models.RoleCustomer))
	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/api/crash/status", "", models.RoleCustomer))
}
