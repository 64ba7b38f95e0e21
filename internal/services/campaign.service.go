package services

import (
	"context"

	"github.com/wasend/campaign-runner/internal/bridge"
	"github.com/wasend/campaign-runner/internal/model"
	"github.com/wasend/campaign-runner/internal/runner"
)

// CampaignRunner is the slice of runner.Runner the service needs.
type CampaignRunner interface {
	Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Delete(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Progress(ctx context.Context, id string) (*runner.ProgressReport, error)
}

// BridgeStatus reports the extension link for the operator surface.
type BridgeStatus interface {
	Status() bridge.Status
}

// CampaignService fronts the runner for the HTTP layer.
type CampaignService struct {
	runner CampaignRunner
	bridge BridgeStatus
}

func NewCampaignService(r CampaignRunner, b BridgeStatus) *CampaignService {
	return &CampaignService{runner: r, bridge: b}
}

func (s *CampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	return s.runner.Create(ctx, req)
}

func (s *CampaignService) Get(ctx context.Context, id string) (*model.Campaign, error) {
	return s.runner.Get(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	return s.runner.List(ctx, f)
}

func (s *CampaignService) Delete(ctx context.Context, id string) error {
	return s.runner.Delete(ctx, id)
}

func (s *CampaignService) Pause(ctx context.Context, id string) error {
	return s.runner.Pause(ctx, id)
}

func (s *CampaignService) Resume(ctx context.Context, id string) error {
	return s.runner.Resume(ctx, id)
}

func (s *CampaignService) Cancel(ctx context.Context, id string) error {
	return s.runner.Cancel(ctx, id)
}

func (s *CampaignService) Progress(ctx context.Context, id string) (*runner.ProgressReport, error) {
	return s.runner.Progress(ctx, id)
}

func (s *CampaignService) BridgeStatus() bridge.Status {
	if s.bridge == nil {
		return bridge.Status{}
	}
	return s.bridge.Status()
}
