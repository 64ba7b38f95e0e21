package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/pkg/logger"
)

// ErrUnavailable is returned when no browser extension is connected.
var ErrUnavailable = errors.New("bridge: extension not connected")

const (
	frameTypePing     = "ping"
	frameTypePong     = "pong"
	frameTypeSend     = "sendMessage"
	frameTypeResponse = "response"

	reconnectDelay = 5 * time.Second
)

// Status describes the extension on the far side of the bridge, as reported
// by its last pong.
type Status struct {
	Connected   bool      `json:"connected"`
	ExtensionID string    `json:"extension_id,omitempty"`
	Version     string    `json:"version,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	LastPing    time.Time `json:"last_ping,omitempty"`
}

// SendRequest asks the extension to deliver one message.
type SendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	ContactID   string `json:"contactId,omitempty"`
	ContactName string `json:"contactName,omitempty"`
}

// SendResponse is the extension's verdict for one SendRequest.
type SendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// frame is the single wire shape for both directions. The type field decides
// which of the optional fields are meaningful.
type frame struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Message     string   `json:"message,omitempty"`
	ContactID   string   `json:"contactId,omitempty"`
	ContactName string   `json:"contactName,omitempty"`
	Success     bool     `json:"success,omitempty"`
	Error       string   `json:"error,omitempty"`
	ExtensionID string   `json:"extensionId,omitempty"`
	Version     string   `json:"version,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type Config struct {
	URL            string
	RequestTimeout time.Duration
	PingInterval   time.Duration
}

// Client maintains a websocket connection to the local browser-extension
// bridge, reconnecting in the background and correlating request frames to
// their responses by ID.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan frame
	status  Status
	subs    []func(connected bool)

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		pending: make(map[string]chan frame),
	}
}

// Start launches the connect/reconnect loop. It returns immediately;
// Connected reports whether a usable extension is on the other end.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Close tears down the connection and stops reconnecting.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	if c.done != nil {
		<-c.done
	}
}

// Connected reports whether an extension answered the most recent ping.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Connected
}

// Status returns a snapshot of the extension's last reported identity.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers fn to be called whenever connectivity flips. The
// callback runs on the bridge goroutine and must not block.
func (c *Client) Subscribe(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Send delivers one message through the extension and waits for its verdict.
func (c *Client) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	resp, err := c.request(ctx, frame{
		Type:        frameTypeSend,
		PhoneNumber: req.PhoneNumber,
		Message:     req.Message,
		ContactID:   req.ContactID,
		ContactName: req.ContactName,
	})
	if err != nil {
		return SendResponse{}, err
	}
	return SendResponse{Success: resp.Success, Error: resp.Error}, nil
}

// Ping probes the extension and refreshes the cached status.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	resp, err := c.request(ctx, frame{Type: frameTypePing})
	if err != nil {
		c.setConnected(false)
		return Status{}, err
	}

	c.mu.Lock()
	c.status = Status{
		Connected:   true,
		ExtensionID: resp.ExtensionID,
		Version:     resp.Version,
		Permissions: resp.Permissions,
		LastPing:    time.Now(),
	}
	status := c.status
	c.mu.Unlock()
	return status, nil
}

func (c *Client) request(ctx context.Context, f frame) (frame, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return frame{}, ErrUnavailable
	}
	f.ID = uuid.NewString()
	ch := make(chan frame, 1)
	c.pending[f.ID] = ch
	err := conn.WriteJSON(f)
	c.mu.Unlock()

	if err != nil {
		c.drop(f.ID)
		return frame{}, errors.Wrap(err, "bridge: write failed")
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		c.drop(f.ID)
		return frame{}, errors.New("bridge: request timed out")
	case <-ctx.Done():
		c.drop(f.ID)
		return frame{}, ctx.Err()
	}
}

func (c *Client) drop(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			logger.Debug("bridge: dial failed", "url", c.cfg.URL, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		// The read loop must be draining before the first ping goes out,
		// or the pong has nobody to deliver it to.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			c.readLoop(conn)
		}()

		// The first ping both verifies the extension and fills the
		// status snapshot before anyone dispatches through us.
		if _, err := c.Ping(ctx); err == nil {
			c.setConnected(true)
		} else {
			logger.Warn("bridge: peer did not answer ping", "error", err)
		}

		pingCtx, stopPing := context.WithCancel(ctx)
		go c.pingLoop(pingCtx, conn)

		<-readDone
		stopPing()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		c.setConnected(false)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- f
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Ping(ctx); err != nil {
				logger.Warn("bridge: ping failed, dropping connection", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// setConnected flips the cached connectivity flag and notifies subscribers
// on transitions only.
func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.status.Connected != connected
	c.status.Connected = connected
	if !connected {
		c.status.ExtensionID = ""
		c.status.Version = ""
		c.status.Permissions = nil
	}
	subs := c.subs
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(connected)
	}
}
