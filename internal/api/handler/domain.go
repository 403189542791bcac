package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/sitepublish/internal/api/request"
	"github.com/edvin/sitepublish/internal/api/response"
	"github.com/edvin/sitepublish/internal/model"
)

// DomainStore is the part of core.DomainService the domain handlers use.
type DomainStore interface {
	ConnectCustom(ctx context.Context, tenantID, hostname string) (*model.Domain, []model.DNSRecord, error)
	GetByID(ctx context.Context, id string) (*model.Domain, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Domain, error)
	ListRecords(ctx context.Context, domainID string) ([]model.DNSRecord, error)
	StartVerification(ctx context.Context, id string) (string, error)
	SetPrimary(ctx context.Context, id string) (*model.Domain, error)
}

type Domain struct {
	svc DomainStore
}

func NewDomain(svc DomainStore) *Domain {
	return &Domain{svc: svc}
}

// RecordView is one DNS record as shown to the tenant. Records that share a
// non-empty Group are alternatives; publishing one of them is enough.
type RecordView struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Expected string  `json:"expected"`
	Observed *string `json:"observed"`
	TTL      int     `json:"ttl"`
	Matched  bool    `json:"matched"`
	Group    string  `json:"group,omitempty"`
}

func newRecordViews(records []model.DNSRecord) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, RecordView{
			Type:     rec.Type,
			Name:     rec.Name,
			Expected: rec.Expected,
			Observed: rec.Observed,
			TTL:      rec.TTL,
			Matched:  rec.Matched,
			Group:    rec.Group,
		})
	}
	return views
}

// ConnectDomainResponse carries the new domain and the records the tenant
// has to publish at their DNS host.
type ConnectDomainResponse struct {
	Domain  *model.Domain `json:"domain"`
	Records []RecordView  `json:"records"`
}

// VerificationResponse is the latest verification state of a domain.
type VerificationResponse struct {
	Status        string       `json:"status"`
	StatusMessage *string      `json:"status_message,omitempty"`
	SSLStatus     string       `json:"ssl_status"`
	Records       []RecordView `json:"records"`
}

// Connect godoc
//
//	@Summary		Connect a custom domain
//	@Description	Registers a hostname for the tenant and returns the DNS records to publish at the tenant's DNS host.
//	@Tags			Domains
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Param			body body request.ConnectDomain true "Hostname"
//	@Success		201 {object} ConnectDomainResponse
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/domains [post]
func (h *Domain) Connect(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.ConnectDomain
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, records, err := h.svc.ConnectCustom(r.Context(), tenantID, req.Hostname)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, ConnectDomainResponse{
		Domain:  d,
		Records: newRecordViews(records),
	})
}

// ListByTenant godoc
//
//	@Summary		List a tenant's domains
//	@Tags			Domains
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Success		200 {array} model.Domain
//	@Failure		403 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/domains [get]
func (h *Domain) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	domains, err := h.svc.ListByTenant(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if domains == nil {
		domains = []model.Domain{}
	}
	response.WriteJSON(w, http.StatusOK, domains)
}

// Get godoc
//
//	@Summary		Get a domain
//	@Tags			Domains
//	@Security		ApiKeyAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} model.Domain
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/domains/{id} [get]
func (h *Domain) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !checkTenantAccess(w, r, d.TenantID) {
		return
	}
	response.WriteJSON(w, http.StatusOK, d)
}

// Verify godoc
//
//	@Summary		Start DNS verification
//	@Description	Starts checking the domain's DNS records. Verifying an active domain is a no-op that reports active with 200.
//	@Tags			Domains
//	@Security		ApiKeyAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} map[string]string
//	@Success		202 {object} map[string]string
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/domains/{id}/verify [post]
func (h *Domain) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.ownerAccess(w, r, id) {
		return
	}

	status, err := h.svc.StartVerification(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code := http.StatusAccepted
	if status == model.DomainActive {
		code = http.StatusOK
	}
	response.WriteJSON(w, code, map[string]string{"status": status})
}

// Verification godoc
//
//	@Summary		Get verification state
//	@Description	Returns the domain status, SSL status and each DNS record with the value last observed.
//	@Tags			Domains
//	@Security		ApiKeyAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} VerificationResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/domains/{id}/verification [get]
func (h *Domain) Verification(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !checkTenantAccess(w, r, d.TenantID) {
		return
	}
	records, err := h.svc.ListRecords(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, VerificationResponse{
		Status:        d.Status,
		StatusMessage: d.StatusMessage,
		SSLStatus:     d.SSLStatus,
		Records:       newRecordViews(records),
	})
}

// SetPrimary godoc
//
//	@Summary		Make a domain primary
//	@Description	Makes an active domain the tenant's primary. The next publish uses it as the site URL.
//	@Tags			Domains
//	@Security		ApiKeyAuth
//	@Param			id path string true "Domain ID"
//	@Success		200 {object} model.Domain
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/domains/{id}/primary [post]
func (h *Domain) SetPrimary(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.ownerAccess(w, r, id) {
		return
	}

	d, err := h.svc.SetPrimary(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, d)
}

// ownerAccess loads the domain and checks the caller may act on its tenant.
func (h *Domain) ownerAccess(w http.ResponseWriter, r *http.Request, id string) bool {
	d, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return false
	}
	return checkTenantAccess(w, r, d.TenantID)
}
