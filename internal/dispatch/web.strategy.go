package dispatch

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"
)

const composeBoxSelector = `[contenteditable="true"][data-tab]`

// WebStrategy drives the web client in a real browser tab. It opens the
// send deep link, waits for the compose box, and submits the prefilled text.
type WebStrategy struct {
	browser *rod.Browser
	baseURL string
	wait    time.Duration
}

// NewWebStrategy wraps an already-connected browser. A nil browser is
// allowed and makes every attempt fail, which lets the chain fall through
// when no browser could be reached at startup.
func NewWebStrategy(browser *rod.Browser, baseURL string, wait time.Duration) *WebStrategy {
	if wait <= 0 {
		wait = 8 * time.Second
	}
	return &WebStrategy{browser: browser, baseURL: baseURL, wait: wait}
}

// ConnectBrowser attaches to a running browser's devtools endpoint, or
// launches a headless one when controlURL is empty.
func ConnectBrowser(controlURL string) (*rod.Browser, error) {
	if controlURL == "" {
		launched, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, errors.Wrap(err, "launch browser")
		}
		controlURL = launched
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, errors.Wrap(err, "connect browser")
	}
	return browser, nil
}

func (s *WebStrategy) Name() string { return "web" }

func (s *WebStrategy) Attempt(ctx context.Context, msg Message) error {
	if s.browser == nil {
		return errors.New("web: no browser attached")
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{
		URL: WebSendURL(s.baseURL, msg.Phone, msg.Body),
	})
	if err != nil {
		return errors.Wrap(err, "web: open page")
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx).Timeout(s.wait)

	if err := page.WaitLoad(); err != nil {
		return errors.Wrap(err, "web: page load")
	}

	// The compose box only renders once the number resolved to a chat.
	// An invalid number lands on an error dialog instead.
	box, err := page.Element(composeBoxSelector)
	if err != nil {
		return errors.Wrap(err, "web: chat did not open")
	}

	if err := box.Type(input.Enter); err != nil {
		return errors.Wrap(err, "web: submit message")
	}
	return nil
}
