package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/internal/dispatch"
	"github.com/wasend/campaign-runner/internal/model"
	"github.com/wasend/campaign-runner/internal/scheduler"
	"github.com/wasend/campaign-runner/internal/store"
	"github.com/wasend/campaign-runner/pkg/logger"
	"github.com/wasend/campaign-runner/pkg/phone"
	"github.com/wasend/campaign-runner/pkg/prom"
)

var (
	// ErrAlreadyRunning means a second run of the same campaign was
	// refused; a campaign executes at most once at a time.
	ErrAlreadyRunning = errors.New("runner: campaign already running")
	// ErrNotRunning means pause/resume/cancel targeted a campaign with
	// no live run.
	ErrNotRunning = errors.New("runner: campaign not running")
	// ErrActive means a destructive operation targeted a live run.
	ErrActive = errors.New("runner: campaign has an active run")
)

// Dispatcher is the delivery chain the runner pushes messages through.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatch.Message) (string, error)
}

type Config struct {
	Schedule scheduler.Config
	// PollInterval is how often the runner looks for due campaigns.
	// Defaults to 10s.
	PollInterval time.Duration
}

// Runner owns the campaign lifecycle: it creates records, picks up due ones
// on a poll loop, drives each through the scheduler and keeps the store in
// sync with live progress.
type Runner struct {
	store      store.Store
	dispatcher Dispatcher
	policy     phone.Policy
	cfg        Config

	mu     sync.Mutex
	active map[string]*scheduler.Scheduler

	cancel context.CancelFunc
	done   chan struct{}
}

func New(st store.Store, d Dispatcher, policy phone.Policy, cfg Config) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Runner{
		store:      st,
		dispatcher: d,
		policy:     policy,
		cfg:        cfg,
		active:     make(map[string]*scheduler.Scheduler),
	}
}

// Create validates the request and persists a pending campaign. The target
// list is copied, so later changes to the caller's slice cannot leak into a
// scheduled run. A zero ScheduledAt means run at the next poll.
func (r *Runner) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	targets := make([]model.Target, len(req.Targets))
	copy(targets, req.Targets)

	c := &model.Campaign{
		ID:          uuid.NewString(),
		Message:     req.Message,
		Targets:     targets,
		Variables:   req.Variables,
		ScheduledAt: scheduledAt,
		Status:      model.CampaignStatusPending,
		CreatedAt:   now,
		TotalCount:  len(targets),
	}

	if err := r.store.Put(ctx, c); err != nil {
		return nil, err
	}

	logger.Info("campaign created",
		"campaign_id", c.ID,
		"targets", c.TotalCount,
		"scheduled_at", c.ScheduledAt,
	)
	return c, nil
}

func (r *Runner) Get(ctx context.Context, id string) (*model.Campaign, error) {
	return r.store.Get(ctx, id)
}

func (r *Runner) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	return r.store.List(ctx, f)
}

// Delete removes a campaign record. Campaigns with a live run must be
// cancelled first.
func (r *Runner) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	_, running := r.active[id]
	r.mu.Unlock()
	if running {
		return ErrActive
	}
	return r.store.Delete(ctx, id)
}

// Start launches the poll loop. Due campaigns run one after another; the
// batch pacing exists to protect the sending account, so there is no
// parallelism across campaigns either.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()

		for {
			r.runDue(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the poll loop and aborts any live run.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Runner) runDue(ctx context.Context) {
	due, err := r.store.ListDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("failed to list due campaigns", "error", err)
		return
	}

	for _, c := range due {
		if ctx.Err() != nil {
			return
		}
		if err := r.Run(ctx, c.ID); err != nil && !errors.Is(err, scheduler.ErrCancelled) {
			logger.Error("campaign run failed", "campaign_id", c.ID, "error", err)
		}
	}
}

// Run executes one campaign to completion, pause points included. It is
// normally called from the poll loop but can be invoked directly.
func (r *Runner) Run(ctx context.Context, id string) error {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		return nil
	}

	sched := scheduler.New(r.cfg.Schedule, r.sendFunc(c), &persistObserver{runner: r, campaign: c})

	r.mu.Lock()
	if _, ok := r.active[id]; ok {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.active[id] = sched
	r.mu.Unlock()

	prom.AddActiveRuns(1)
	defer func() {
		r.mu.Lock()
		delete(r.active, id)
		r.mu.Unlock()
		prom.AddActiveRuns(-1)
	}()

	logger.Info("campaign run starting", "campaign_id", id, "targets", c.TotalCount)
	c.Status = model.CampaignStatusRunning
	r.persist(c)

	_, runErr := sched.Run(ctx, c.Targets)

	switch {
	case runErr == nil:
		c.Status = model.CampaignStatusCompleted
	case errors.Is(runErr, scheduler.ErrCancelled):
		c.Status = model.CampaignStatusCancelled
	default:
		// interrupted by shutdown; leave the record as is so an
		// operator can see where it stopped
		logger.Warn("campaign run interrupted", "campaign_id", id, "error", runErr)
		r.persist(c)
		return runErr
	}

	done := time.Now().UTC()
	c.CompletedAt = &done
	r.persist(c)
	prom.ObserveRunFinished(string(c.Status))

	logger.Info("campaign run finished",
		"campaign_id", id,
		"status", c.Status,
		"processed", c.ProcessedCount,
		"success", c.SuccessCount,
		"fail", c.FailCount,
	)
	return runErr
}

// sendFunc builds the per-target delivery closure: normalize the number,
// render the template, push through the dispatch chain.
func (r *Runner) sendFunc(c *model.Campaign) scheduler.SendFunc {
	return func(ctx context.Context, target model.Target) scheduler.SendResult {
		normalized := r.policy.Normalize(target.Phone)
		if !r.policy.IsDialable(normalized) {
			logger.Warn("skipping undialable number",
				"campaign_id", c.ID,
				"target_id", target.ID,
				"phone", target.Phone,
			)
			prom.ObserveTargetProcessed("invalid")
			return scheduler.SendInvalid
		}

		strategy, err := r.dispatcher.Dispatch(ctx, dispatch.Message{
			Phone:       normalized,
			Body:        c.Message.Render(target, c.Variables),
			ContactID:   target.ID,
			ContactName: target.Name,
		})
		if err != nil {
			logger.Warn("delivery failed",
				"campaign_id", c.ID,
				"target_id", target.ID,
				"error", err,
			)
			prom.ObserveTargetProcessed("failed")
			return scheduler.SendFailed
		}

		logger.Debug("message delivered",
			"campaign_id", c.ID,
			"target_id", target.ID,
			"strategy", strategy,
		)
		prom.ObserveTargetProcessed("sent")
		return scheduler.SendOK
	}
}

// Pause suspends a live run at its next wait point.
func (r *Runner) Pause(ctx context.Context, id string) error {
	sched, err := r.liveRun(id)
	if err != nil {
		return err
	}
	sched.Pause()
	return nil
}

// Resume continues a paused live run.
func (r *Runner) Resume(ctx context.Context, id string) error {
	sched, err := r.liveRun(id)
	if err != nil {
		return err
	}
	sched.Resume()
	return nil
}

// Cancel terminates a run. A pending campaign that has not started yet is
// cancelled directly in the store.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	sched, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		sched.Cancel()
		return nil
	}

	c, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		return nil
	}
	if c.Status != model.CampaignStatusPending {
		return ErrNotRunning
	}

	c.Status = model.CampaignStatusCancelled
	done := time.Now().UTC()
	c.CompletedAt = &done
	if err := r.store.Put(ctx, c); err != nil {
		return err
	}
	prom.ObserveRunFinished(string(c.Status))
	return nil
}

func (r *Runner) liveRun(id string) (*scheduler.Scheduler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sched, ok := r.active[id]
	if !ok {
		return nil, ErrNotRunning
	}
	return sched, nil
}

// persist writes the campaign back, logging instead of failing: a broken
// store must not stop an in-flight run.
func (r *Runner) persist(c *model.Campaign) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Put(ctx, c); err != nil {
		logger.Error("failed to persist campaign", "campaign_id", c.ID, "error", err)
		prom.ObservePersistenceError()
	}
}

// persistObserver mirrors scheduler callbacks into the stored record.
type persistObserver struct {
	runner   *Runner
	campaign *model.Campaign
}

func (o *persistObserver) OnProgress(p scheduler.Progress) {
	o.campaign.ProcessedCount = p.Processed
	o.campaign.SuccessCount = p.Success
	o.campaign.FailCount = p.Fail
	o.runner.persist(o.campaign)
}

func (o *persistObserver) OnStateChange(s scheduler.State) {
	switch s {
	case scheduler.StateRunning:
		o.campaign.Status = model.CampaignStatusRunning
	case scheduler.StatePaused:
		o.campaign.Status = model.CampaignStatusPaused
	default:
		// terminal states are persisted by Run with CompletedAt set
		return
	}
	o.runner.persist(o.campaign)
}

func (o *persistObserver) OnCooldownTick(remaining time.Duration) {
	logger.Debug("batch cooldown",
		"campaign_id", o.campaign.ID,
		"remaining", FormatCountdown(remaining),
	)
}
