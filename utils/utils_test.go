package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/globals"
)

func TestGenerateRandomDigitString(t *testing.T) {
	s := GenerateRandomDigitString(4)
	require.Len(t, s, 4)
	for _, r := range s {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusTeapot, "nope")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"nope"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ A int }
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"A":3}`))
	require.True(t, DecodeJSON(rec, req, &v))
	assert.Equal(t, 3, v.A)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.False(t, DecodeJSON(rec, req, &v))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetUserIDFromRequest(req))

	ctx := context.WithValue(req.Context(), globals.UserIDKey, "u1")
	ctx = context.WithValue(ctx, globals.RoleKey, []string{"admin"})
	req = req.WithContext(ctx)
	assert.Equal(t, "u1", GetUserIDFromRequest(req))
	assert.Equal(t, []string{"admin"}, GetRolesFromRequest(req))
}
