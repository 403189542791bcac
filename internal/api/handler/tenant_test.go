package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sitepublish/internal/core"
	"github.com/edvin/sitepublish/internal/model"
)

// --- Create ---

func TestTenantCreate_InvalidJSON(t *testing.T) {
	h := NewTenant(&mockTenants{})
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/tenants", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestTenantCreate_MissingRequiredFields(t *testing.T) {
	h := NewTenant(&mockTenants{})
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestTenantCreate_InvalidSlug(t *testing.T) {
	tests := []struct {
		name string
		slug string
	}{
		{"uppercase", "AcmeMotors"},
		{"spaces", "acme motors"},
		{"special chars", "acme@motors"},
		{"leading dash", "-acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTenant(&mockTenants{})
			rec := httptest.NewRecorder()
			r := newRequest(http.MethodPost, "/tenants", map[string]any{"name": "Acme Motors", "slug": tt.slug})

			h.Create(rec, r)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTenantCreate_Success(t *testing.T) {
	svc := &mockTenants{}
	svc.On("Create", mock.Anything, mock.MatchedBy(func(tenant *model.Tenant) bool {
		return tenant.Name == "Acme Motors" && tenant.Slug == "acme" && *tenant.ArtifactRef == "acme/v1.tar.gz"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Tenant).ID = validID
	}).Return(nil)

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{
		"name":         "Acme Motors",
		"slug":         "acme",
		"artifact_ref": "acme/v1.tar.gz",
	})

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	var tenant model.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenant))
	assert.Equal(t, validID, tenant.ID)
	svc.AssertExpectations(t)
}

func TestTenantCreate_SlugTaken(t *testing.T) {
	svc := &mockTenants{}
	svc.On("Create", mock.Anything, mock.Anything).
		Return(fmt.Errorf("insert tenant: %w: Key (slug)=(acme) already exists", core.ErrConflict))

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/tenants", map[string]any{"name": "Acme Motors", "slug": "acme"})

	h.Create(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// --- Get ---

func TestTenantGet_EmptyID(t *testing.T) {
	h := NewTenant(&mockTenants{})
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/tenants/", nil)
	r = withChiURLParam(r, "tenantID", "")

	h.Get(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTenantGet_NotFound(t *testing.T) {
	svc := &mockTenants{}
	svc.On("GetByID", mock.Anything, validID).
		Return(nil, fmt.Errorf("get tenant %s: %w", validID, core.ErrNotFound))

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/tenants/"+validID, nil), "tenantID", validID)

	h.Get(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "not found")
}

func TestTenantGet_InternalErrorHidesDetail(t *testing.T) {
	svc := &mockTenants{}
	svc.On("GetByID", mock.Anything, validID).Return(nil, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/tenants/"+validID, nil), "tenantID", validID)

	h.Get(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeErrorResponse(rec)["error"])
}

// --- List ---

func TestTenantList_Paginates(t *testing.T) {
	svc := &mockTenants{}
	svc.On("List", mock.Anything, 2, "").Return([]model.Tenant{{ID: validID}, {ID: validID2}}, true, nil)

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/tenants?limit=2", nil)

	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, validID2, body["next_cursor"])
	assert.Equal(t, true, body["has_more"])
}

func TestTenantList_BadLimit(t *testing.T) {
	svc := &mockTenants{}
	h := NewTenant(svc)
	rec := httptest.NewRecorder()

	h.List(rec, newRequest(http.MethodGet, "/tenants?limit=0", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit must be a positive integer", decodeErrorResponse(rec)["error"])
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

// --- UpdateArtifact ---

func TestTenantUpdateArtifact(t *testing.T) {
	ref := "acme/v2.tar.gz"
	svc := &mockTenants{}
	svc.On("UpdateArtifact", mock.Anything, validID, ref).Return(nil)
	svc.On("GetByID", mock.Anything, validID).Return(&model.Tenant{ID: validID, ArtifactRef: &ref}, nil)

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPut, "/tenants/"+validID+"/artifact", map[string]any{"artifact_ref": ref}), "tenantID", validID)

	h.UpdateArtifact(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestTenantUpdateArtifact_MissingRef(t *testing.T) {
	h := NewTenant(&mockTenants{})
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPut, "/tenants/"+validID+"/artifact", map[string]any{}), "tenantID", validID)

	h.UpdateArtifact(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Delete ---

func TestTenantDelete(t *testing.T) {
	svc := &mockTenants{}
	svc.On("Delete", mock.Anything, validID).Return(nil)

	h := NewTenant(svc)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodDelete, "/tenants/"+validID, nil), "tenantID", validID)

	h.Delete(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
