package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitepublish/internal/api/middleware"
)

// fullAccess is the identity of a platform key.
var fullAccess = &middleware.APIKeyIdentity{ID: "key-1", Name: "platform", Scopes: []string{"*:*"}, Tenants: []string{"*"}}

// tenantKey is the identity of a key limited to one tenant.
func tenantKey(tenantID string) *middleware.APIKeyIdentity {
	return &middleware.APIKeyIdentity{ID: "key-2", Name: "tenant", Scopes: []string{"*:*"}, Tenants: []string{tenantID}}
}

// withIdentity replaces the request's API key identity.
func withIdentity(r *http.Request, identity *middleware.APIKeyIdentity) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), identity))
}

// newRequest creates a platform-key HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return withIdentity(r, fullAccess)
}

// newRequestRaw creates a platform-key HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return withIdentity(r, fullAccess)
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withChiURLParams adds multiple chi URL parameters to the request context.
func withChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

const validID = "test-id-1"
const validID2 = "test-id-2"
