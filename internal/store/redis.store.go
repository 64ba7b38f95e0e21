package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/wasend/campaign-runner/internal/model"
	"github.com/wasend/campaign-runner/pkg/redis"
)

const (
	campaignKeyPrefix = "campaign:"
	campaignIndexKey  = "campaigns"
)

// RedisStore keeps campaigns as JSON values with a set index of IDs. It is
// meant for deployments where several runner hosts share one campaign pool.
type RedisStore struct {
	adapter *redis.Adapter
}

func NewRedisStore(adapter *redis.Adapter) *RedisStore {
	return &RedisStore{adapter: adapter}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Campaign, error) {
	raw, err := s.adapter.Get(ctx, campaignKeyPrefix+id)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var c model.Campaign
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *RedisStore) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	var filtered []*model.Campaign
	for _, c := range all {
		if len(f.Statuses) > 0 && !statusIn(c.Status, f.Statuses) {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if f.Desc {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	total := int64(len(filtered))

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (s *RedisStore) ListDue(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var due []*model.Campaign
	for _, c := range all {
		if c.Status == model.CampaignStatusPending && !c.ScheduledAt.After(now) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due, nil
}

func (s *RedisStore) Put(ctx context.Context, c *model.Campaign) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.adapter.Set(ctx, campaignKeyPrefix+c.ID, raw, 0); err != nil {
		return err
	}
	return s.adapter.SAdd(ctx, campaignIndexKey, c.ID)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.adapter.Del(ctx, campaignKeyPrefix+id); err != nil {
		return err
	}
	return s.adapter.SRem(ctx, campaignIndexKey, id)
}

func (s *RedisStore) loadAll(ctx context.Context) ([]*model.Campaign, error) {
	ids, err := s.adapter.SMembers(ctx, campaignIndexKey)
	if err != nil {
		return nil, err
	}

	campaigns := make([]*model.Campaign, 0, len(ids))
	for _, id := range ids {
		c, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// index can lag behind a delete; skip the stale entry
			continue
		}
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, nil
}

func statusIn(s model.CampaignStatus, set []model.CampaignStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
