package dispatch

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasend/campaign-runner/internal/bridge"
)

type fakeStrategy struct {
	name  string
	err   error
	panic bool
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(ctx context.Context, msg Message) error {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &fakeStrategy{name: "first"}
	second := &fakeStrategy{name: "second"}
	chain := NewChain(first, second)

	name, err := chain.Dispatch(context.Background(), Message{Phone: "201012345678", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "first", name)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestChain_FallsThroughOnFailure(t *testing.T) {
	first := &fakeStrategy{name: "first", err: errors.New("down")}
	second := &fakeStrategy{name: "second", err: errors.New("also down")}
	third := &fakeStrategy{name: "third"}
	chain := NewChain(first, second, third)

	name, err := chain.Dispatch(context.Background(), Message{Phone: "201012345678", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "third", name)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(
		&fakeStrategy{name: "first", err: errors.New("down")},
		&fakeStrategy{name: "second", err: errors.New("down")},
	)

	_, err := chain.Dispatch(context.Background(), Message{Phone: "201012345678", Body: "hi"})
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain().Dispatch(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrAllStrategiesFailed)
}

func TestChain_PanicIsContained(t *testing.T) {
	bad := &fakeStrategy{name: "bad", panic: true}
	good := &fakeStrategy{name: "good"}

	name, err := NewChain(bad, good).Dispatch(context.Background(), Message{Phone: "2010", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "good", name)
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeStrategy{name: "s"}
	_, err := NewChain(s).Dispatch(ctx, Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.calls)
}

type fakeBridge struct {
	connected bool
	resp      bridge.SendResponse
	err       error
	last      bridge.SendRequest
}

func (f *fakeBridge) Connected() bool { return f.connected }

func (f *fakeBridge) Send(ctx context.Context, req bridge.SendRequest) (bridge.SendResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestBridgeStrategy(t *testing.T) {
	msg := Message{Phone: "201012345678", Body: "hello", ContactID: "t1", ContactName: "Sara"}

	t.Run("not connected", func(t *testing.T) {
		s := NewBridgeStrategy(&fakeBridge{connected: false})
		assert.ErrorIs(t, s.Attempt(context.Background(), msg), bridge.ErrUnavailable)
	})

	t.Run("success", func(t *testing.T) {
		fb := &fakeBridge{connected: true, resp: bridge.SendResponse{Success: true}}
		s := NewBridgeStrategy(fb)
		require.NoError(t, s.Attempt(context.Background(), msg))
		assert.Equal(t, "201012345678", fb.last.PhoneNumber)
		assert.Equal(t, "Sara", fb.last.ContactName)
	})

	t.Run("extension verdict failure", func(t *testing.T) {
		fb := &fakeBridge{connected: true, resp: bridge.SendResponse{Error: "no session"}}
		err := NewBridgeStrategy(fb).Attempt(context.Background(), msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no session")
	})
}

func TestWebStrategy_NoBrowser(t *testing.T) {
	s := NewWebStrategy(nil, "https://web.whatsapp.com", 0)
	assert.Error(t, s.Attempt(context.Background(), Message{Phone: "2010", Body: "x"}))
}

func TestSendURLs(t *testing.T) {
	web := WebSendURL("https://web.whatsapp.com", "201012345678", "hi there & welcome")
	assert.Equal(t, "https://web.whatsapp.com/send?phone=201012345678&text=hi+there+%26+welcome", web)

	native := NativeSendURI("whatsapp", "201012345678", "hi")
	assert.Equal(t, "whatsapp://send?phone=201012345678&text=hi", native)
}
