package model

import (
	"errors"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign record.
type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether the status is a final one.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

// Target is one recipient of a campaign. The targets of a campaign are a
// snapshot taken at creation time; mutating the contact source afterwards
// must not affect an in-flight or scheduled campaign.
type Target struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Campaign is the durable unit of state for one bulk-send run.
type Campaign struct {
	ID          string            `json:"id"`
	Message     Template          `json:"message"`
	Targets     []Target          `json:"targets"`
	Variables   map[string]string `json:"variables,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	Status      CampaignStatus    `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`

	// Progress counters. ProcessedCount never exceeds TotalCount and
	// TotalCount is fixed to len(Targets) at creation.
	ProcessedCount int `json:"processed_count"`
	TotalCount     int `json:"total_count"`
	SuccessCount   int `json:"success_count"`
	FailCount      int `json:"fail_count"`
}

var (
	ErrEmptyMessage = errors.New("campaign message cannot be empty")
	ErrNoTargets    = errors.New("campaign needs at least one target")
)

// CampaignCreateRequest is the input for creating a campaign.
type CampaignCreateRequest struct {
	Message     Template          `json:"message"`
	Targets     []Target          `json:"targets"`
	Variables   map[string]string `json:"variables,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

// Validate rejects configuration errors synchronously, before any record is
// created.
func (r CampaignCreateRequest) Validate() error {
	if string(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Targets) == 0 {
		return ErrNoTargets
	}
	return nil
}

// CampaignFilter controls List queries.
type CampaignFilter struct {
	Statuses []CampaignStatus // IN (...)
	Limit    int              // default 50
	Offset   int              // for pagination
	Desc     bool             // order by created_at
}
