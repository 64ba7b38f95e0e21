package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/internal/model"
)

// ErrCancelled is returned by Run when the campaign was cancelled before
// every target was processed.
var ErrCancelled = errors.New("scheduler: run cancelled")

// State is the live execution state of one run.
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// SendResult classifies one delivery attempt.
type SendResult int

const (
	// SendOK means the message was handed off.
	SendOK SendResult = iota
	// SendFailed means every delivery path failed for a dialable number.
	SendFailed
	// SendInvalid means the number was rejected before any delivery was
	// tried. Invalid targets skip the per-item pacing delay.
	SendInvalid
)

// SendFunc delivers one rendered message. It must not block past ctx.
type SendFunc func(ctx context.Context, target model.Target) SendResult

// Progress is a point-in-time snapshot of a run.
type Progress struct {
	Batch        int `json:"batch"`
	TotalBatches int `json:"total_batches"`
	Processed    int `json:"processed"`
	Total        int `json:"total"`
	Success      int `json:"success"`
	Fail         int `json:"fail"`
}

// Observer receives run lifecycle callbacks. Callbacks run on the scheduler
// goroutine and must return quickly.
type Observer interface {
	OnProgress(p Progress)
	OnStateChange(s State)
	OnCooldownTick(remaining time.Duration)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) OnProgress(Progress)          {}
func (NopObserver) OnStateChange(State)          {}
func (NopObserver) OnCooldownTick(time.Duration) {}

type Config struct {
	// BatchSize is the number of targets sent back to back before an
	// inter-batch cooldown. Defaults to 10.
	BatchSize int
	// PerItemDelay paces messages inside a batch. Defaults to 2s.
	PerItemDelay time.Duration
	// InterBatchDelay is the cooldown between batches. Defaults to 3m.
	InterBatchDelay time.Duration
	// PausePollInterval is how often a paused run rechecks its flags.
	// Defaults to 1s.
	PausePollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.PerItemDelay <= 0 {
		c.PerItemDelay = 2 * time.Second
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = 3 * time.Minute
	}
	if c.PausePollInterval <= 0 {
		c.PausePollInterval = time.Second
	}
	return c
}

// NumBatches is the batch count for a target list of the given size.
func NumBatches(total, batchSize int) int {
	if total <= 0 {
		return 0
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return (total + batchSize - 1) / batchSize
}

// Scheduler turns a target list into paced batches and drives them through
// a SendFunc, honoring pause, resume and cancel at every wait point.
type Scheduler struct {
	cfg  Config
	send SendFunc
	obs  Observer

	paused    atomic.Bool
	cancelled atomic.Bool

	mu           sync.Mutex
	state        State
	progress     Progress
	cooldownLeft time.Duration

	// test seams; wall clock in production
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(cfg Config, send SendFunc, obs Observer) *Scheduler {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Scheduler{
		cfg:   cfg.withDefaults(),
		send:  send,
		obs:   obs,
		state: StateRunning,
		now:   time.Now,
		sleep: defaultSleep,
	}
}

func defaultSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Pause stops the run at the next wait point. Targets already in flight
// finish; nothing new starts until Resume.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
}

// Resume lets a paused run continue from where it stopped.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
}

// Cancel terminates the run at the next wait point. It wins over Pause.
func (s *Scheduler) Cancel() {
	s.cancelled.Store(true)
}

// State returns the live execution state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns a snapshot of the counters.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Countdown returns the remaining inter-batch cooldown, or zero when no
// cooldown is in progress.
func (s *Scheduler) Countdown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownLeft
}

// Run processes every target. It returns the final progress together with
// ErrCancelled, the context error, or nil when all targets were processed.
func (s *Scheduler) Run(ctx context.Context, targets []model.Target) (Progress, error) {
	total := len(targets)
	batches := NumBatches(total, s.cfg.BatchSize)

	s.mu.Lock()
	s.progress = Progress{Total: total, TotalBatches: batches}
	s.mu.Unlock()
	s.setState(StateRunning)

	for b := 0; b < batches; b++ {
		start := b * s.cfg.BatchSize
		end := start + s.cfg.BatchSize
		if end > total {
			end = total
		}

		s.mu.Lock()
		s.progress.Batch = b + 1
		s.mu.Unlock()

		for i := start; i < end; i++ {
			if err := s.gate(ctx); err != nil {
				return s.Progress(), err
			}

			result := s.send(ctx, targets[i])

			s.mu.Lock()
			s.progress.Processed++
			if result == SendOK {
				s.progress.Success++
			} else {
				s.progress.Fail++
			}
			p := s.progress
			s.mu.Unlock()
			s.obs.OnProgress(p)

			// Invalid numbers never reached a delivery surface, so
			// there is nothing to pace. The final target has no
			// successor to pace either.
			last := b == batches-1 && i == end-1
			if result != SendInvalid && !last {
				if err := s.itemDelay(ctx); err != nil {
					return s.Progress(), err
				}
			}
		}

		if b < batches-1 {
			if err := s.cooldown(ctx); err != nil {
				return s.Progress(), err
			}
		}
	}

	s.setState(StateCompleted)
	return s.Progress(), nil
}

// gate blocks while the run is paused and reports cancellation. It is
// called before every target.
func (s *Scheduler) gate(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cancelled.Load() {
			s.setState(StateCancelled)
			return ErrCancelled
		}
		if !s.paused.Load() {
			s.setState(StateRunning)
			return nil
		}
		s.setState(StatePaused)
		if !s.sleep(ctx, s.cfg.PausePollInterval) {
			return ctx.Err()
		}
	}
}

// itemDelay waits out the per-item pacing delay in poll-sized steps so a
// pause or cancel lands mid-wait instead of after it. Paused time does not
// count against the delay.
func (s *Scheduler) itemDelay(ctx context.Context) error {
	remaining := s.cfg.PerItemDelay
	anchor := s.now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cancelled.Load() {
			s.setState(StateCancelled)
			return ErrCancelled
		}
		if s.paused.Load() {
			s.setState(StatePaused)
			if !s.sleep(ctx, s.cfg.PausePollInterval) {
				return ctx.Err()
			}
			anchor = s.now()
			continue
		}
		s.setState(StateRunning)

		now := s.now()
		remaining -= now.Sub(anchor)
		anchor = now
		if remaining <= 0 {
			return nil
		}

		step := s.cfg.PausePollInterval
		if remaining < step {
			step = remaining
		}
		if !s.sleep(ctx, step) {
			return ctx.Err()
		}
	}
}

// cooldown waits out the inter-batch delay, ticking the remaining time
// roughly once a second. Remaining time is recomputed from the wall clock,
// so an oversleeping timer cannot stretch the cooldown. Paused time does
// not count against the delay.
func (s *Scheduler) cooldown(ctx context.Context) error {
	remaining := s.cfg.InterBatchDelay
	anchor := s.now()

	defer func() {
		s.mu.Lock()
		s.cooldownLeft = 0
		s.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cancelled.Load() {
			s.setState(StateCancelled)
			return ErrCancelled
		}
		if s.paused.Load() {
			s.setState(StatePaused)
			if !s.sleep(ctx, s.cfg.PausePollInterval) {
				return ctx.Err()
			}
			anchor = s.now()
			continue
		}
		s.setState(StateRunning)

		now := s.now()
		remaining -= now.Sub(anchor)
		anchor = now
		if remaining <= 0 {
			return nil
		}

		s.mu.Lock()
		s.cooldownLeft = remaining
		s.mu.Unlock()
		s.obs.OnCooldownTick(remaining)

		step := time.Second
		if remaining < step {
			step = remaining
		}
		if !s.sleep(ctx, step) {
			return ctx.Err()
		}
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed {
		s.obs.OnStateChange(state)
	}
}
