package dispatch

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
)

// NativeStrategy hands the message to the desktop client through its URI
// scheme. It is the last resort: the OS opener cannot confirm delivery, so
// success only means the URI was accepted.
type NativeStrategy struct {
	scheme string
	open   func(ctx context.Context, uri string) error
}

func NewNativeStrategy(scheme string) *NativeStrategy {
	return &NativeStrategy{scheme: scheme, open: openURI}
}

func (s *NativeStrategy) Name() string { return "native" }

func (s *NativeStrategy) Attempt(ctx context.Context, msg Message) error {
	return s.open(ctx, NativeSendURI(s.scheme, msg.Phone, msg.Body))
}

func openURI(ctx context.Context, uri string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", uri)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", uri)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", uri)
	}

	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "native: open uri")
	}
	return nil
}
