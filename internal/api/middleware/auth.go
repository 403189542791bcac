package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/edvin/sitepublish/internal/api/response"
	"github.com/edvin/sitepublish/internal/model"
)

type contextKey string

const APIKeyIdentityKey contextKey = "api_key_identity"

// Authenticator resolves a raw API key to a stored, unrevoked key.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*model.APIKey, error)
}

// APIKeyIdentity holds the authenticated key's ID, name, scopes and tenants.
type APIKeyIdentity struct {
	ID      string
	Name    string
	Scopes  []string
	Tenants []string
}

// Auth returns a middleware that validates the X-API-Key header (or a
// Bearer token) against the stored key hashes.
func Auth(keys Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = extractAPIKey(r)
			}
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			k, err := keys.Authenticate(r.Context(), key)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			identity := &APIKeyIdentity{ID: k.ID, Name: k.Name, Scopes: k.Scopes, Tenants: k.Tenants}
			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	// Browsers cannot set headers on websocket upgrades.
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}
