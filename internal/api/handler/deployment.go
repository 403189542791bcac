package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/api/request"
	"github.com/edvin/sitepublish/internal/api/response"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/pipeline"
	"github.com/edvin/sitepublish/internal/poller"
)

const (
	defaultStreamInterval = 5 * time.Second
	defaultStreamLifetime = 30 * time.Minute
)

// DeploymentStore is the part of core.DeploymentService the deployment
// handlers use.
type DeploymentStore interface {
	StartPublish(ctx context.Context, tenantID, commitMessage string) (*model.Deployment, error)
	GetByID(ctx context.Context, id string) (*model.Deployment, error)
	GetCurrent(ctx context.Context, tenantID string) (*model.Deployment, error)
	ListByTenant(ctx context.Context, tenantID string, limit int, cursor string) ([]model.Deployment, bool, error)
}

type Deployment struct {
	svc            DeploymentStore
	streamInterval time.Duration
	streamLifetime time.Duration
}

func NewDeployment(svc DeploymentStore) *Deployment {
	return &Deployment{svc: svc, streamInterval: defaultStreamInterval, streamLifetime: defaultStreamLifetime}
}

// StartPublishResponse is returned when a publish is accepted.
type StartPublishResponse struct {
	ID      string  `json:"id"`
	Version int     `json:"version"`
	Status  string  `json:"status"`
	SiteURL *string `json:"site_url,omitempty"`
}

// PublishStatus is the polled view of a deployment.
type PublishStatus struct {
	ID       string                 `json:"id"`
	Version  int                    `json:"version"`
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	SiteURL  *string                `json:"site_url,omitempty"`
	Error    *string                `json:"error,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Steps    []model.DeploymentStep `json:"steps"`
}

func newPublishStatus(d *model.Deployment) PublishStatus {
	progress := pipeline.Progress(d.Steps)
	if d.Status == model.DeploymentReady {
		progress = 100
	}
	steps := d.Steps
	if steps == nil {
		steps = []model.DeploymentStep{}
	}
	return PublishStatus{
		ID:       d.ID,
		Version:  d.Version,
		Status:   d.Status,
		Progress: progress,
		SiteURL:  d.SiteURL,
		Error:    d.ErrorMessage,
		Warnings: d.Warnings,
		Steps:    steps,
	}
}

// StartPublish godoc
//
//	@Summary		Start a publish
//	@Description	Queues a new deployment for the tenant. A tenant with a publish already queued or building gets 409.
//	@Tags			Deployments
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Param			body body request.StartPublish false "Optional commit message"
//	@Success		202 {object} StartPublishResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Failure		409 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/deployments [post]
func (h *Deployment) StartPublish(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.StartPublish
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.StartPublish(r.Context(), tenantID, req.CommitMessage)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, StartPublishResponse{
		ID:      d.ID,
		Version: d.Version,
		Status:  d.Status,
		SiteURL: d.SiteURL,
	})
}

// Get godoc
//
//	@Summary		Get a deployment
//	@Tags			Deployments
//	@Security		ApiKeyAuth
//	@Param			id path string true "Deployment ID"
//	@Success		200 {object} model.Deployment
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/deployments/{id} [get]
func (h *Deployment) Get(w http.ResponseWriter, r *http.Request) {
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

// Status godoc
//
//	@Summary		Poll publish status
//	@Description	Returns the deployment's status, per-step progress and overall progress percentage.
//	@Tags			Deployments
//	@Security		ApiKeyAuth
//	@Param			id path string true "Deployment ID"
//	@Success		200 {object} PublishStatus
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/deployments/{id}/status [get]
func (h *Deployment) Status(w http.ResponseWriter, r *http.Request) {
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
	response.WriteJSON(w, http.StatusOK, newPublishStatus(d))
}

// ListByTenant godoc
//
//	@Summary		List a tenant's deployments
//	@Description	Returns the deployment history, newest first. The cursor is a version number.
//	@Tags			Deployments
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Param			limit query int false "Page size" default(50)
//	@Param			cursor query string false "Version to continue below"
//	@Success		200 {object} response.PaginatedResponse{items=[]model.Deployment}
//	@Failure		400 {object} response.ErrorResponse
//	@Failure		403 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/deployments [get]
func (h *Deployment) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pg, err := request.ParsePagination(r)
	if err == nil {
		err = pg.VersionCursor()
	}
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	deployments, hasMore, err := h.svc.ListByTenant(r.Context(), tenantID, pg.Limit, pg.Cursor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	next := request.NextCursor(deployments, hasMore, func(d model.Deployment) string { return strconv.Itoa(d.Version) })
	response.WritePaginated(w, http.StatusOK, deployments, next, hasMore)
}

// Current godoc
//
//	@Summary		Get the live deployment
//	@Description	Returns the tenant's current ready deployment, or 404 when nothing has been published.
//	@Tags			Deployments
//	@Security		ApiKeyAuth
//	@Param			tenantID path string true "Tenant ID"
//	@Success		200 {object} model.Deployment
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/tenants/{tenantID}/deployments/current [get]
func (h *Deployment) Current(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.GetCurrent(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, d)
}

// Stream godoc
//
//	@Summary		Stream publish status
//	@Description	Upgrades to a websocket and pushes a PublishStatus snapshot on every poll until the deployment is terminal or the stream lifetime runs out. Clients may reconnect after close code 1013. Browsers pass the key as the token query parameter.
//	@Tags			Deployments
//	@Security		ApiKeyAuth
//	@Param			id path string true "Deployment ID"
//	@Param			token query string false "API key for browser websocket clients"
//	@Success		101 {object} PublishStatus
//	@Failure		403 {object} response.ErrorResponse
//	@Failure		404 {object} response.ErrorResponse
//	@Router			/deployments/{id}/stream [get]
func (h *Deployment) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Resolve the deployment before upgrading so unknown IDs get a plain 404.
	d, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !checkTenantAccess(w, r, d.TenantID) {
		return
	}

	logger := zerolog.Ctx(r.Context()).With().Str("deployment_id", id).Logger()

	// The server-wide write timeout would cut the stream short.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.CloseNow()

	// CloseRead discards client messages and cancels ctx once the client
	// disconnects.
	ctx, cancel := context.WithCancel(ws.CloseRead(r.Context()))
	defer cancel()

	fetch := func(ctx context.Context) (PublishStatus, error) {
		d, err := h.svc.GetByID(ctx, id)
		if err != nil {
			return PublishStatus{}, err
		}
		return newPublishStatus(d), nil
	}

	_, err = poller.Poll(ctx, fetch, poller.Options[PublishStatus]{
		Interval: h.streamInterval,
		Timeout:  h.streamLifetime,
		IsTerminal: func(s PublishStatus) bool {
			return model.IsTerminalDeploymentStatus(s.Status)
		},
		OnUpdate: func(s PublishStatus) {
			writeCtx, done := context.WithTimeout(ctx, 10*time.Second)
			defer done()
			if err := wsjson.Write(writeCtx, ws, s); err != nil {
				cancel()
			}
		},
	})
	switch {
	case err == nil:
		ws.Close(websocket.StatusNormalClosure, "deployment finished")
	case errors.Is(err, poller.ErrTimeout):
		logger.Debug().Msg("stream lifetime reached")
		ws.Close(websocket.StatusTryAgainLater, "stream lifetime reached")
	case errors.Is(err, context.Canceled):
		logger.Debug().Msg("stream client went away")
	default:
		logger.Warn().Err(err).Msg("deployment stream stopped")
		ws.Close(websocket.StatusInternalError, "status unavailable")
	}
}
