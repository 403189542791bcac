package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/api/middleware"
	"github.com/edvin/sitepublish/internal/api/response"
	"github.com/edvin/sitepublish/internal/core"
	"github.com/edvin/sitepublish/internal/verify"
)

// writeServiceError maps a service error onto an HTTP status. Unknown errors
// are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var terr *verify.TransitionError
	switch {
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrConcurrencyConflict), errors.Is(err, core.ErrConflict):
		response.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrDomainNotActive), errors.As(err, &terr):
		response.WriteError(w, http.StatusConflict, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// checkTenantAccess writes 403 and returns false when the caller's key may
// not act on tenantID.
func checkTenantAccess(w http.ResponseWriter, r *http.Request, tenantID string) bool {
	if !middleware.HasTenantAccess(middleware.GetIdentity(r.Context()), tenantID) {
		response.WriteError(w, http.StatusForbidden, "no access to this tenant")
		return false
	}
	return true
}
