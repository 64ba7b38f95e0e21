package dispatch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/internal/bridge"
)

// bridgeSender is the slice of bridge.Client this strategy needs.
type bridgeSender interface {
	Connected() bool
	Send(ctx context.Context, req bridge.SendRequest) (bridge.SendResponse, error)
}

// BridgeStrategy delivers through the browser-extension bridge. It is the
// preferred path because the extension confirms per-message delivery.
type BridgeStrategy struct {
	client bridgeSender
}

func NewBridgeStrategy(client bridgeSender) *BridgeStrategy {
	return &BridgeStrategy{client: client}
}

func (s *BridgeStrategy) Name() string { return "bridge" }

func (s *BridgeStrategy) Attempt(ctx context.Context, msg Message) error {
	if !s.client.Connected() {
		return bridge.ErrUnavailable
	}

	resp, err := s.client.Send(ctx, bridge.SendRequest{
		PhoneNumber: msg.Phone,
		Message:     msg.Body,
		ContactID:   msg.ContactID,
		ContactName: msg.ContactName,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		if resp.Error == "" {
			return errors.New("bridge: extension reported failure")
		}
		return errors.Errorf("bridge: %s", resp.Error)
	}
	return nil
}
