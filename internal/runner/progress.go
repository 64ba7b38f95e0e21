package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/wasend/campaign-runner/internal/model"
)

// ProgressReport is the operator-facing view of one campaign's progress.
// Countdown is only set while the run sits in an inter-batch cooldown.
type ProgressReport struct {
	CampaignID   string               `json:"campaign_id"`
	Status       model.CampaignStatus `json:"status"`
	Processed    int                  `json:"processed"`
	Total        int                  `json:"total"`
	Success      int                  `json:"success"`
	Fail         int                  `json:"fail"`
	Batch        int                  `json:"batch,omitempty"`
	TotalBatches int                  `json:"total_batches,omitempty"`
	Countdown    string               `json:"countdown,omitempty"`
}

// Progress reports live numbers for an active run, falling back to the
// stored record for everything else.
func (r *Runner) Progress(ctx context.Context, id string) (*ProgressReport, error) {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &ProgressReport{
		CampaignID: c.ID,
		Status:     c.Status,
		Processed:  c.ProcessedCount,
		Total:      c.TotalCount,
		Success:    c.SuccessCount,
		Fail:       c.FailCount,
	}

	r.mu.Lock()
	sched, ok := r.active[id]
	r.mu.Unlock()
	if !ok {
		return report, nil
	}

	p := sched.Progress()
	report.Processed = p.Processed
	report.Success = p.Success
	report.Fail = p.Fail
	report.Batch = p.Batch
	report.TotalBatches = p.TotalBatches
	if d := sched.Countdown(); d > 0 {
		report.Countdown = FormatCountdown(d)
	}
	return report, nil
}

// FormatCountdown renders a duration as m:ss, rounding partial seconds up
// so a countdown never reads 0:00 while time remains.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
