package store

import (
	"context"
	"errors"
	"time"

	"github.com/wasend/campaign-runner/internal/model"
)

var (
	// ErrNotFound is returned when a campaign does not exist.
	ErrNotFound = errors.New("campaign not found")
)

// Store persists campaign records across restarts. Implementations must be
// safe for concurrent use; Put is an upsert keyed by campaign ID.
type Store interface {
	Get(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)

	// ListDue returns pending campaigns whose scheduled time is at or
	// before now, oldest schedule first.
	ListDue(ctx context.Context, now time.Time) ([]*model.Campaign, error)

	Put(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, id string) error
}
