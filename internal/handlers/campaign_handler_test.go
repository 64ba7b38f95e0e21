package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/wasend/campaign-runner/internal/bridge"
	"github.com/wasend/campaign-runner/internal/model"
	"github.com/wasend/campaign-runner/internal/runner"
	"github.com/wasend/campaign-runner/internal/store"
	xhttp "github.com/wasend/campaign-runner/pkg/http"
)

type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCampaignService) Pause(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCampaignService) Resume(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCampaignService) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCampaignService) Progress(ctx context.Context, id string) (*runner.ProgressReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*runner.ProgressReport), args.Error(1)
}

func (m *MockCampaignService) BridgeStatus() bridge.Status {
	return m.Called().Get(0).(bridge.Status)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		body, _ := json.Marshal(createCampaignRequest{
			Message: "Hi {name}",
			Targets: []model.Target{{ID: "t1", Name: "Sara", Phone: "01012345678"}},
		})

		expected := &model.Campaign{ID: "c1", Status: model.CampaignStatusPending, TotalCount: 1}
		svc.On("Create", mock.Anything, mock.MatchedBy(func(req model.CampaignCreateRequest) bool {
			return string(req.Message) == "Hi {name}" && len(req.Targets) == 1
		})).Return(expected, nil)

		ctx := setupTestContext("POST", "/api/v1/campaigns", body)
		handler.CreateCampaign(ctx)

		assert.Equal(t, xhttp.StatusCreated, ctx.Response.StatusCode())
		var got model.Campaign
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, "c1", got.ID)
		svc.AssertExpectations(t)
	})

	t.Run("invalid json", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService))
		ctx := setupTestContext("POST", "/api/v1/campaigns", []byte("{nope"))
		handler.CreateCampaign(ctx)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("invalid scheduled_at", func(t *testing.T) {
		handler := NewCampaignHandler(new(MockCampaignService))
		body, _ := json.Marshal(createCampaignRequest{
			Message:     "hi",
			Targets:     []model.Target{{ID: "t1", Phone: "01012345678"}},
			ScheduledAt: "tomorrowish",
		})
		ctx := setupTestContext("POST", "/api/v1/campaigns", body)
		handler.CreateCampaign(ctx)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("validation error", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, model.ErrNoTargets)

		body, _ := json.Marshal(createCampaignRequest{Message: "hi"})
		ctx := setupTestContext("POST", "/api/v1/campaigns", body)
		handler.CreateCampaign(ctx)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_ListCampaigns(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)

	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.CampaignFilter) bool {
		return len(f.Statuses) == 2 && f.Limit == 10 && f.Desc
	})).Return([]*model.Campaign{{ID: "c1"}}, int64(1), nil)

	ctx := setupTestContext("GET", "/api/v1/campaigns?status=pending,running&limit=10&order=desc", nil)
	handler.ListCampaigns(ctx)

	assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	var got listResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
	assert.Equal(t, int64(1), got.Total)
	require.Len(t, got.Items, 1)
	svc.AssertExpectations(t)
}

func TestCampaignHandler_GetCampaign(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Get", mock.Anything, "c1").Return(&model.Campaign{ID: "c1"}, nil)

		ctx := setupTestContext("GET", "/api/v1/campaigns/c1", nil)
		ctx.SetUserValue("id", "c1")
		handler.GetCampaign(ctx)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	})

	t.Run("missing", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Get", mock.Anything, "nope").Return(nil, store.ErrNotFound)

		ctx := setupTestContext("GET", "/api/v1/campaigns/nope", nil)
		ctx.SetUserValue("id", "nope")
		handler.GetCampaign(ctx)
		assert.Equal(t, xhttp.StatusNotFound, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_LifecycleActions(t *testing.T) {
	t.Run("pause live run", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Pause", mock.Anything, "c1").Return(nil)

		ctx := setupTestContext("POST", "/api/v1/campaigns/c1/pause", nil)
		ctx.SetUserValue("id", "c1")
		handler.PauseCampaign(ctx)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	})

	t.Run("pause without live run conflicts", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Pause", mock.Anything, "c1").Return(runner.ErrNotRunning)

		ctx := setupTestContext("POST", "/api/v1/campaigns/c1/pause", nil)
		ctx.SetUserValue("id", "c1")
		handler.PauseCampaign(ctx)
		assert.Equal(t, xhttp.StatusConflict, ctx.Response.StatusCode())
	})

	t.Run("cancel", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Cancel", mock.Anything, "c1").Return(nil)

		ctx := setupTestContext("POST", "/api/v1/campaigns/c1/cancel", nil)
		ctx.SetUserValue("id", "c1")
		handler.CancelCampaign(ctx)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	})

	t.Run("delete active run conflicts", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)
		svc.On("Delete", mock.Anything, "c1").Return(runner.ErrActive)

		ctx := setupTestContext("DELETE", "/api/v1/campaigns/c1", nil)
		ctx.SetUserValue("id", "c1")
		handler.DeleteCampaign(ctx)
		assert.Equal(t, xhttp.StatusConflict, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_GetProgress(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)
	svc.On("Progress", mock.Anything, "c1").Return(&runner.ProgressReport{
		CampaignID: "c1",
		Status:     model.CampaignStatusRunning,
		Processed:  4,
		Total:      12,
		Countdown:  "2:41",
	}, nil)

	ctx := setupTestContext("GET", "/api/v1/campaigns/c1/progress", nil)
	ctx.SetUserValue("id", "c1")
	handler.GetProgress(ctx)

	assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	var got runner.ProgressReport
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
	assert.Equal(t, 4, got.Processed)
	assert.Equal(t, "2:41", got.Countdown)
}

func TestCampaignHandler_GetBridgeStatus(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)
	svc.On("BridgeStatus").Return(bridge.Status{Connected: true, ExtensionID: "ext-123"})

	ctx := setupTestContext("GET", "/api/v1/bridge/status", nil)
	handler.GetBridgeStatus(ctx)

	assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
	var got bridge.Status
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
	assert.True(t, got.Connected)
	assert.Equal(t, "ext-123", got.ExtensionID)
}
