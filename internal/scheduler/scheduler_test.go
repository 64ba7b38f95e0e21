package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasend/campaign-runner/internal/model"
)

type recObserver struct {
	states     []State
	progresses []Progress
	ticks      []time.Duration
}

func (r *recObserver) OnProgress(p Progress)          { r.progresses = append(r.progresses, p) }
func (r *recObserver) OnStateChange(s State)          { r.states = append(r.states, s) }
func (r *recObserver) OnCooldownTick(d time.Duration) { r.ticks = append(r.ticks, d) }

// harness runs the scheduler on a virtual clock: every sleep advances the
// clock instead of blocking, so even three-minute cooldowns finish
// instantly and deterministically.
type harness struct {
	s      *Scheduler
	clock  time.Time
	sleeps []time.Duration

	// beforeSleep runs inside the sleep hook, before the clock advances.
	beforeSleep func(d time.Duration)
}

func newHarness(cfg Config, send SendFunc, obs Observer) *harness {
	h := &harness{clock: time.Unix(1_700_000_000, 0)}
	h.s = New(cfg, send, obs)
	h.s.now = func() time.Time { return h.clock }
	h.s.sleep = func(ctx context.Context, d time.Duration) bool {
		if h.beforeSleep != nil {
			h.beforeSleep(d)
		}
		h.sleeps = append(h.sleeps, d)
		h.clock = h.clock.Add(d)
		return ctx.Err() == nil
	}
	return h
}

func targets(n int) []model.Target {
	ts := make([]model.Target, n)
	for i := range ts {
		ts[i] = model.Target{ID: string(rune('a' + i)), Name: "t", Phone: "201012345678"}
	}
	return ts
}

func TestNumBatches(t *testing.T) {
	assert.Equal(t, 0, NumBatches(0, 10))
	assert.Equal(t, 1, NumBatches(1, 10))
	assert.Equal(t, 1, NumBatches(10, 10))
	assert.Equal(t, 2, NumBatches(11, 10))
	assert.Equal(t, 2, NumBatches(12, 10))
	assert.Equal(t, 5, NumBatches(50, 10))
}

func TestRun_EmptyTargets(t *testing.T) {
	sent := 0
	h := newHarness(Config{}, func(ctx context.Context, tg model.Target) SendResult {
		sent++
		return SendOK
	}, nil)

	p, err := h.s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, Progress{}, p)
	assert.Equal(t, StateCompleted, h.s.State())
}

func TestRun_BatchesAndPacing(t *testing.T) {
	var order []string
	send := func(ctx context.Context, tg model.Target) SendResult {
		order = append(order, tg.ID)
		return SendOK
	}
	obs := &recObserver{}
	cfg := Config{BatchSize: 10, PerItemDelay: 2 * time.Second, InterBatchDelay: 3 * time.Minute}
	h := newHarness(cfg, send, obs)

	ts := targets(12)
	p, err := h.s.Run(context.Background(), ts)
	require.NoError(t, err)

	assert.Equal(t, 12, p.Processed)
	assert.Equal(t, 12, p.Success)
	assert.Equal(t, 0, p.Fail)
	assert.Equal(t, 2, p.TotalBatches)
	assert.Equal(t, 2, p.Batch)
	assert.Equal(t, StateCompleted, h.s.State())

	// order is the creation-time snapshot order
	for i, tg := range ts {
		assert.Equal(t, tg.ID, order[i])
	}

	// 11 per-item delays (none after the final target) plus one full
	// cooldown, all of it slept out in virtual time
	var total time.Duration
	for _, d := range h.sleeps {
		total += d
	}
	assert.Equal(t, 22*time.Second+3*time.Minute, total)

	// countdown ticks shrink monotonically from the full cooldown
	require.NotEmpty(t, obs.ticks)
	assert.Equal(t, 3*time.Minute, obs.ticks[0])
	for i := 1; i < len(obs.ticks); i++ {
		assert.Less(t, obs.ticks[i], obs.ticks[i-1])
	}
}

func TestRun_InvalidSkipsPacing(t *testing.T) {
	send := func(ctx context.Context, tg model.Target) SendResult { return SendInvalid }
	h := newHarness(Config{BatchSize: 10, PerItemDelay: 2 * time.Second}, send, nil)

	p, err := h.s.Run(context.Background(), targets(5))
	require.NoError(t, err)
	assert.Equal(t, 5, p.Processed)
	assert.Equal(t, 5, p.Fail)
	assert.Equal(t, 0, p.Success)
	assert.Empty(t, h.sleeps)
}

func TestRun_Tallies(t *testing.T) {
	results := []SendResult{SendOK, SendFailed, SendInvalid, SendOK}
	i := 0
	send := func(ctx context.Context, tg model.Target) SendResult {
		r := results[i]
		i++
		return r
	}
	h := newHarness(Config{BatchSize: 10, PerItemDelay: time.Second}, send, nil)

	p, err := h.s.Run(context.Background(), targets(4))
	require.NoError(t, err)
	assert.Equal(t, 4, p.Processed)
	assert.Equal(t, 2, p.Success)
	assert.Equal(t, 2, p.Fail)
}

func TestRun_CancelDuringCooldown(t *testing.T) {
	send := func(ctx context.Context, tg model.Target) SendResult { return SendOK }
	h := newHarness(Config{BatchSize: 2, PerItemDelay: time.Second, InterBatchDelay: time.Minute}, send, nil)

	ticks := 0
	h.beforeSleep = func(d time.Duration) {
		if d == time.Second && h.s.Countdown() > 0 {
			ticks++
			if ticks == 5 {
				h.s.Cancel()
			}
		}
	}

	p, err := h.s.Run(context.Background(), targets(4))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 2, p.Processed)
	assert.Equal(t, StateCancelled, h.s.State())
}

func TestRun_CancelBetweenTargets(t *testing.T) {
	h := newHarness(Config{BatchSize: 10, PerItemDelay: time.Second}, nil, nil)
	sent := 0
	h.s.send = func(ctx context.Context, tg model.Target) SendResult {
		sent++
		if sent == 2 {
			h.s.Cancel()
		}
		return SendOK
	}

	p, err := h.s.Run(context.Background(), targets(5))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, p.Processed)
}

func TestRun_CancelDuringItemDelay(t *testing.T) {
	h := newHarness(Config{BatchSize: 10, PerItemDelay: 10 * time.Second, PausePollInterval: time.Second}, nil, nil)
	h.s.send = func(ctx context.Context, tg model.Target) SendResult { return SendOK }

	steps := 0
	h.beforeSleep = func(d time.Duration) {
		steps++
		if steps == 3 {
			h.s.Cancel()
		}
	}

	p, err := h.s.Run(context.Background(), targets(5))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, p.Processed)
	assert.Equal(t, StateCancelled, h.s.State())

	// the cancel lands three seconds into a ten-second wait, and the rest
	// of the delay is not slept out
	var total time.Duration
	for _, d := range h.sleeps {
		total += d
	}
	assert.Equal(t, 3*time.Second, total)
}

func TestRun_PauseDoesNotConsumeItemDelay(t *testing.T) {
	h := newHarness(Config{BatchSize: 10, PerItemDelay: 5 * time.Second, PausePollInterval: time.Second}, nil, nil)
	h.s.send = func(ctx context.Context, tg model.Target) SendResult { return SendOK }

	paused := false
	polls := 0
	h.beforeSleep = func(d time.Duration) {
		if !paused {
			h.s.Pause()
			paused = true
			return
		}
		if h.s.paused.Load() {
			polls++
			if polls == 20 {
				h.s.Resume()
			}
		}
	}

	p, err := h.s.Run(context.Background(), targets(2))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Processed)

	// 20 seconds of paused time must not count against the five-second
	// delay, so total virtual time covers both in full
	var total time.Duration
	for _, d := range h.sleeps {
		total += d
	}
	assert.GreaterOrEqual(t, total, 25*time.Second)
}

func TestRun_PauseAndResume(t *testing.T) {
	obs := &recObserver{}
	h := newHarness(Config{BatchSize: 10, PerItemDelay: time.Second, PausePollInterval: time.Second}, nil, obs)

	var order []string
	h.s.send = func(ctx context.Context, tg model.Target) SendResult {
		order = append(order, tg.ID)
		if len(order) == 2 {
			h.s.Pause()
		}
		return SendOK
	}

	polls := 0
	h.beforeSleep = func(d time.Duration) {
		if h.s.paused.Load() {
			polls++
			if polls == 3 {
				h.s.Resume()
			}
		}
	}

	ts := targets(5)
	p, err := h.s.Run(context.Background(), ts)
	require.NoError(t, err)

	assert.Equal(t, 5, p.Processed)
	for i, tg := range ts {
		assert.Equal(t, tg.ID, order[i])
	}
	assert.Contains(t, obs.states, StatePaused)
	assert.Equal(t, StateCompleted, h.s.State())
}

func TestRun_PauseDoesNotConsumeCooldown(t *testing.T) {
	h := newHarness(Config{BatchSize: 1, PerItemDelay: time.Second, InterBatchDelay: 10 * time.Second}, nil, nil)
	h.s.send = func(ctx context.Context, tg model.Target) SendResult { return SendOK }

	paused := false
	polls := 0
	h.beforeSleep = func(d time.Duration) {
		if !paused && h.s.Countdown() == 10*time.Second {
			h.s.Pause()
			paused = true
			return
		}
		if h.s.paused.Load() {
			polls++
			if polls == 30 {
				h.s.Resume()
			}
		}
	}

	p, err := h.s.Run(context.Background(), targets(2))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Processed)

	// 30 seconds of paused time must not count against the 10s cooldown,
	// so total virtual time covers both in full
	var total time.Duration
	for _, d := range h.sleeps {
		total += d
	}
	assert.GreaterOrEqual(t, total, 40*time.Second)
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(Config{BatchSize: 10, PerItemDelay: time.Second}, nil, nil)
	sent := 0
	h.s.send = func(c context.Context, tg model.Target) SendResult {
		sent++
		if sent == 1 {
			cancel()
		}
		return SendOK
	}

	_, err := h.s.Run(ctx, targets(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sent)
}
