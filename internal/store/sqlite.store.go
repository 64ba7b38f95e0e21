package store

import (
	"context"
	"errors"
	"time"

	"github.com/wasend/campaign-runner/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore keeps campaigns in a local sqlite file so that scheduled and
// interrupted campaigns survive a process restart.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the
// campaigns table. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&CampaignEntity{}); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Campaign, error) {
	var entity CampaignEntity
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCampaignModel(&entity)
}

func (s *SQLiteStore) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	q := s.db.WithContext(ctx).Model(&CampaignEntity{})

	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CampaignEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	models, err := toCampaignModels(entities)
	if err != nil {
		return nil, 0, err
	}
	return models, total, nil
}

func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	var entities []*CampaignEntity
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", string(model.CampaignStatusPending), now).
		Order("scheduled_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCampaignModels(entities)
}

func (s *SQLiteStore) Put(ctx context.Context, c *model.Campaign) error {
	entity, err := toCampaignEntity(c)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(entity).Error
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&CampaignEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
