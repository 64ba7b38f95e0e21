package dispatch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/pkg/logger"
	"github.com/wasend/campaign-runner/pkg/prom"
)

// ErrAllStrategiesFailed is returned when every strategy in the chain
// declined or failed to deliver a message.
var ErrAllStrategiesFailed = errors.New("dispatch: all strategies failed")

// Message is one outbound delivery. Phone must already be normalized and
// the body fully rendered.
type Message struct {
	Phone       string
	Body        string
	ContactID   string
	ContactName string
}

// Strategy is one way of getting a message out. Attempt returns nil only
// when the message was handed off; any error makes the chain move on to the
// next strategy.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, msg Message) error
}

// Chain tries its strategies in order and stops at the first success.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Dispatch runs the chain for one message. It returns the name of the
// strategy that delivered it, or ErrAllStrategiesFailed.
func (c *Chain) Dispatch(ctx context.Context, msg Message) (string, error) {
	if len(c.strategies) == 0 {
		return "", ErrAllStrategiesFailed
	}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := attempt(ctx, s, msg)
		if err == nil {
			prom.ObserveDispatchAttempt(s.Name(), true)
			return s.Name(), nil
		}

		prom.ObserveDispatchAttempt(s.Name(), false)
		logger.Debug("dispatch: strategy failed, trying next",
			"strategy", s.Name(),
			"phone", msg.Phone,
			"error", err,
		)
	}

	return "", ErrAllStrategiesFailed
}

// attempt isolates a single strategy call so a panicking strategy cannot
// take down the whole run.
func attempt(ctx context.Context, s Strategy, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("dispatch: strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, msg)
}
