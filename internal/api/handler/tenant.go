package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitepublish/internal/api/request"
	"github.com/edvin/sitepublish/internal/api/response"
	"github.com/edvin/sitepublish/internal/model"
)

// TenantStore is the part of core.TenantService the tenant handlers use.
type TenantStore interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	List(ctx context.Context, limit int, cursor string) ([]model.Tenant, bool, error)
	UpdateArtifact(ctx context.Context, id, artifactRef string) error
	Delete(ctx context.Context, id string) error
}

type Tenant struct {
	svc TenantStore
}

func NewTenant(svc TenantStore) *Tenant {
	return &Tenant{svc: svc}
}

// List godoc
//
//	@Summary		List tenants
//	@Description	Returns tenants ordered by ID. Requires a key with access to all tenants.
//	@Tags			Tenants
//	@Security		ApiKeyAuth
//	@Param			limit query int false "Page size" default(50)
//	@Param			cursor query string false "Tenant ID to continue after"
//	@Success		200 {object} response.PaginatedResponse{items=[]model.Tenant}
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/tenants [get]
func (h *Tenant) List(w http.ResponseWriter, r *http.Request) {
	pg, err := request.ParsePagination(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenants, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	next := request.NextCursor(tenants, hasMore, func(t model.Tenant) string { return t.ID })
	response.WritePaginated(w, http.StatusOK, tenants, next, hasMore)
}

// Create godoc
//
//	@Summary		Create a tenant
//	@Description	Registers a tenant. Its platform subdomain is created with it.
//	@Tags			Tenants
//	@Security		ApiKeyAuth
//	@Param			body body request.CreateTenant true "Tenant details"
//	@Success		201 {object} model.Tenant
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/tenants [post]
func (h *Tenant) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTenant
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant := &model.Tenant{
		Name:        req.Name,
		Slug:        req.Slug,
		ArtifactRef: req.ArtifactRef,
	}
	if err := h.svc.Create(r.Context(), tenant); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, tenant)
}

// Get godoc
//
//	@Summary		Get a tenant
//	@Tags			Tenants
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Success		200 {object} model.Tenant
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID} [get]
func (h *Tenant) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, tenant)
}

// UpdateArtifact godoc
//
//	@Summary		Point a tenant at a new site bundle
//	@Description	Sets the artifact reference the next publish uploads.
//	@Tags			Tenants
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Param			body body request.UpdateArtifact true "Artifact reference"
//	@Success		200 {object} model.Tenant
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/artifact [put]
func (h *Tenant) UpdateArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateArtifact
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.UpdateArtifact(r.Context(), id, req.ArtifactRef); err != nil {
		writeServiceError(w, r, err)
		return
	}

	tenant, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

// Delete godoc
//
//	@Summary		Delete a tenant
//	@Description	Removes the tenant with its deployments and domains.
//	@Tags			Tenants
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Success		204
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID} [delete]
func (h *Tenant) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
