package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitepublish/internal/api/response"
	"github.com/edvin/sitepublish/internal/model"
)

// GetIdentity extracts the APIKeyIdentity from the request context.
func GetIdentity(ctx context.Context) *APIKeyIdentity {
	identity, _ := ctx.Value(APIKeyIdentityKey).(*APIKeyIdentity)
	return identity
}

// WithIdentity returns ctx carrying identity.
func WithIdentity(ctx context.Context, identity *APIKeyIdentity) context.Context {
	return context.WithValue(ctx, APIKeyIdentityKey, identity)
}

// HasScope checks if the identity has the given resource:action scope, the
// resource:* wildcard, or *:*.
func HasScope(identity *APIKeyIdentity, resource, action string) bool {
	if identity == nil {
		return false
	}
	target := resource + ":" + action
	for _, s := range identity.Scopes {
		if s == model.ScopeAll || s == target || s == resource+":*" {
			return true
		}
	}
	return false
}

// HasTenantAccess checks if the identity can act on the given tenant ID.
func HasTenantAccess(identity *APIKeyIdentity, tenantID string) bool {
	if identity == nil {
		return false
	}
	for _, t := range identity.Tenants {
		if t == model.AllTenants || t == tenantID {
			return true
		}
	}
	return false
}

// HasAllTenants checks if the identity has wildcard tenant access.
func HasAllTenants(identity *APIKeyIdentity) bool {
	return HasTenantAccess(identity, model.AllTenants)
}

// RequireScope returns middleware that checks the key has the given resource:action scope.
func RequireScope(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(GetIdentity(r.Context()), resource, action) {
				response.WriteError(w, http.StatusForbidden, "insufficient scope: requires "+resource+":"+action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenantAccess returns middleware that checks the key may act on the
// tenant named by the given URL parameter.
func RequireTenantAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasTenantAccess(GetIdentity(r.Context()), chi.URLParam(r, param)) {
				response.WriteError(w, http.StatusForbidden, "no access to this tenant")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllTenants returns middleware that checks the key has wildcard tenant access.
func RequireAllTenants() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAllTenants(GetIdentity(r.Context())) {
				response.WriteError(w, http.StatusForbidden, "platform access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
