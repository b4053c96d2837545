package notify

import (
	"context"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
)

// TerminalBell plays the notification sound by ringing the terminal bell.
type TerminalBell struct {
	out io.Writer
}

// NewTerminalBell returns a bell that writes to out.
func NewTerminalBell(out io.Writer) *TerminalBell {
	return &TerminalBell{out: out}
}

// Play rings the bell.
func (b *TerminalBell) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := io.WriteString(b.out, "\a")
	return err
}

// LogNotifier delivers native notifications as structured log entries. It
// counts as focused while the focused callback reports true, so a watched
// view suppresses notifications.
type LogNotifier struct {
	logger    *zap.Logger
	focused   func() bool
	delivered atomic.Int64
}

// NewLogNotifier returns a notifier logging through logger.
func NewLogNotifier(logger *zap.Logger, focused func() bool) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, focused: focused}
}

// PermissionGranted is always true; there is no permission prompt.
func (n *LogNotifier) PermissionGranted() bool {
	return true
}

// HasFocus reports whether a view is currently watching.
func (n *LogNotifier) HasFocus() bool {
	return n.focused != nil && n.focused()
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, title, body string) error {
	n.delivered.Add(1)
	n.logger.Info("notification", zap.String("title", title), zap.String("body", body))
	return nil
}

// Delivered returns how many notifications were raised.
func (n *LogNotifier) Delivered() int64 {
	return n.delivered.Load()
}
