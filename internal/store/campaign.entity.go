package store

import (
	"encoding/json"
	"time"

	"github.com/wasend/campaign-runner/internal/model"
)

// CampaignEntity is the sqlite row shape for a campaign. Targets and
// variables are stored as JSON blobs; the target list is an immutable
// snapshot, never queried by column.
type CampaignEntity struct {
	ID             string     `db:"id"              gorm:"primaryKey;column:id"`
	Message        string     `db:"message"         gorm:"column:message;not null"`
	Targets        string     `db:"targets"         gorm:"column:targets;not null"`
	Variables      string     `db:"variables"       gorm:"column:variables"`
	ScheduledAt    time.Time  `db:"scheduled_at"    gorm:"column:scheduled_at;index"`
	Status         string     `db:"status"          gorm:"column:status;not null;index"`
	CreatedAt      time.Time  `db:"created_at"      gorm:"column:created_at"`
	CompletedAt    *time.Time `db:"completed_at"    gorm:"column:completed_at"`
	ProcessedCount int        `db:"processed_count" gorm:"column:processed_count;not null;default:0"`
	TotalCount     int        `db:"total_count"     gorm:"column:total_count;not null;default:0"`
	SuccessCount   int        `db:"success_count"   gorm:"column:success_count;not null;default:0"`
	FailCount      int        `db:"fail_count"      gorm:"column:fail_count;not null;default:0"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(c *model.Campaign) (*CampaignEntity, error) {
	if c == nil {
		return nil, nil
	}

	targets, err := json.Marshal(c.Targets)
	if err != nil {
		return nil, err
	}

	variables := ""
	if len(c.Variables) > 0 {
		raw, err := json.Marshal(c.Variables)
		if err != nil {
			return nil, err
		}
		variables = string(raw)
	}

	return &CampaignEntity{
		ID:             c.ID,
		Message:        string(c.Message),
		Targets:        string(targets),
		Variables:      variables,
		ScheduledAt:    c.ScheduledAt,
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		CompletedAt:    c.CompletedAt,
		ProcessedCount: c.ProcessedCount,
		TotalCount:     c.TotalCount,
		SuccessCount:   c.SuccessCount,
		FailCount:      c.FailCount,
	}, nil
}

func toCampaignModel(e *CampaignEntity) (*model.Campaign, error) {
	if e == nil {
		return nil, nil
	}

	var targets []model.Target
	if err := json.Unmarshal([]byte(e.Targets), &targets); err != nil {
		return nil, err
	}

	var variables map[string]string
	if e.Variables != "" {
		if err := json.Unmarshal([]byte(e.Variables), &variables); err != nil {
			return nil, err
		}
	}

	return &model.Campaign{
		ID:             e.ID,
		Message:        model.Template(e.Message),
		Targets:        targets,
		Variables:      variables,
		ScheduledAt:    e.ScheduledAt,
		Status:         model.CampaignStatus(e.Status),
		CreatedAt:      e.CreatedAt,
		CompletedAt:    e.CompletedAt,
		ProcessedCount: e.ProcessedCount,
		TotalCount:     e.TotalCount,
		SuccessCount:   e.SuccessCount,
		FailCount:      e.FailCount,
	}, nil
}

func toCampaignModels(entities []*CampaignEntity) ([]*model.Campaign, error) {
	if entities == nil {
		return nil, nil
	}
	models := make([]*model.Campaign, len(entities))
	for i, e := range entities {
		m, err := toCampaignModel(e)
		if err != nil {
			return nil, err
		}
		models[i] = m
	}
	return models, nil
}
