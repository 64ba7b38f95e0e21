package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/internal/bridge"
	"github.com/wasend/campaign-runner/internal/model"
	"github.com/wasend/campaign-runner/internal/runner"
	"github.com/wasend/campaign-runner/internal/store"
	xhttp "github.com/wasend/campaign-runner/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Delete(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Progress(ctx context.Context, id string) (*runner.ProgressReport, error)
	BridgeStatus() bridge.Status
}

type CampaignHandler struct {
	svc CampaignService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.DELETE("/campaigns/{id}", h.DeleteCampaign)
	e.POST("/campaigns/{id}/pause", h.PauseCampaign)
	e.POST("/campaigns/{id}/resume", h.ResumeCampaign)
	e.POST("/campaigns/{id}/cancel", h.CancelCampaign)
	e.GET("/campaigns/{id}/progress", h.GetProgress)
	e.GET("/bridge/status", h.GetBridgeStatus)
}

func NewCampaignHandler(svc CampaignService) *CampaignHandler {
	return &CampaignHandler{svc: svc}
}

type createCampaignRequest struct {
	Message     string            `json:"message"`
	Targets     []model.Target    `json:"targets"`
	Variables   map[string]string `json:"variables"`
	ScheduledAt string            `json:"scheduled_at"`
}

type listResponse struct {
	Items []*model.Campaign `json:"items"`
	Total int64             `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p := model.CampaignCreateRequest{
		Message:   model.Template(req.Message),
		Targets:   req.Targets,
		Variables: req.Variables,
	}
	if req.ScheduledAt != "" {
		t, err := parseTime(req.ScheduledAt)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid scheduled_at: "+err.Error())
			return
		}
		p.ScheduledAt = t
	}

	c, err := h.svc.Create(ctx, p)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, c)
}

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	var f model.CampaignFilter

	if v := query(ctx, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.Statuses = append(f.Statuses, model.CampaignStatus(part))
			}
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	c, err := h.svc.Get(ctx, param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, c)
}

func (h *CampaignHandler) DeleteCampaign(ctx *xhttp.RequestCtx) {
	if err := h.svc.Delete(ctx, param(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusNoContent)
}

func (h *CampaignHandler) PauseCampaign(ctx *xhttp.RequestCtx) {
	if err := h.svc.Pause(ctx, param(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "pausing"})
}

func (h *CampaignHandler) ResumeCampaign(ctx *xhttp.RequestCtx) {
	if err := h.svc.Resume(ctx, param(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "resuming"})
}

func (h *CampaignHandler) CancelCampaign(ctx *xhttp.RequestCtx) {
	if err := h.svc.Cancel(ctx, param(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "cancelling"})
}

func (h *CampaignHandler) GetProgress(ctx *xhttp.RequestCtx) {
	report, err := h.svc.Progress(ctx, param(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, report)
}

func (h *CampaignHandler) GetBridgeStatus(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, xhttp.StatusOK, h.svc.BridgeStatus())
}

/* --------------------------------- Helpers ----------------------------------- */

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, runner.ErrNotRunning), errors.Is(err, runner.ErrActive),
		errors.Is(err, runner.ErrAlreadyRunning):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func param(ctx *xhttp.RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}
