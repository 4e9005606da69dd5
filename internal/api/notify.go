package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Reconnect backoff bounds for the notification listener.
const (
	notifyInitBackoff = 5 * time.Second
	notifyMaxBackoff  = 2 * time.Minute
	notifyBackoffMult = 2
)

// NotifyListener subscribes to the backend's websocket notification
// endpoint and invokes the nudge callback for every message received. The
// message payload is ignored: any server push is treated as a hint that new
// work may be visible, and the sync engine decides what to do with it.
type NotifyListener struct {
	url     string
	onNudge func()
	logger  *slog.Logger
}

// NewNotifyListener creates a listener for the given websocket URL.
func NewNotifyListener(url string, onNudge func(), logger *slog.Logger) *NotifyListener {
	return &NotifyListener{url: url, onNudge: onNudge, logger: logger}
}

// Run connects and reads until the context is canceled, reconnecting with
// capped exponential backoff after any failure. It always returns nil on
// context cancellation — a dropped notification link is a degradation, not
// an error, because the 1-minute chain still drives sync.
func (l *NotifyListener) Run(ctx context.Context) error {
	backoff := notifyInitBackoff

	for {
		if err := l.listenOnce(ctx); err != nil {
			l.logger.Warn("notification link lost",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= notifyBackoffMult
		if backoff > notifyMaxBackoff {
			backoff = notifyMaxBackoff
		}
	}
}

// listenOnce dials the endpoint and pumps messages until the connection or
// context ends. A successful read resets the caller's backoff indirectly by
// keeping the connection alive.
func (l *NotifyListener) listenOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.url, nil)
	if err != nil {
		return err
	}

	defer conn.Close(websocket.StatusNormalClosure, "")

	l.logger.Info("notification link established", slog.String("url", l.url))

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		l.logger.Debug("sync nudge received")
		l.onNudge()
	}
}
