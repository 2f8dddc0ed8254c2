package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Client subscribes to a hub's snapshot stream over websocket and applies
// incoming frames to a local session. Lost connections are redialed with
// exponential backoff; the server pushes a full snapshot on every change,
// so a reconnect misses nothing once the next mutation lands.
type Client struct {
	url    string
	dst    Applier
	logger *slog.Logger

	dialer *websocket.Dialer
}

// NewClient builds a client for a ws:// or wss:// snapshot endpoint.
func NewClient(url string, dst Applier, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		dst:    dst,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run dials and reads until ctx is cancelled. Each successful connection
// resets the backoff.
func (c *Client) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry until cancelled

	operation := func() error {
		if err := c.readOnce(ctx, policy.Reset); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("snapshot stream interrupted", "url", c.url, "error", err)
			return err
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// readOnce dials the endpoint and applies frames until the connection
// drops or ctx is cancelled. connected runs after a successful dial so
// the caller can reset its retry policy.
func (c *Client) readOnce(ctx context.Context, connected func()) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	connected()
	c.logger.Info("snapshot stream connected", "url", c.url)

	// Unblock ReadMessage when ctx is cancelled.
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := DecodeSnapshot(frame)
		if err != nil {
			c.logger.Warn("dropping malformed snapshot frame", "error", err)
			continue
		}
		switch msg.Kind {
		case KindColumns:
			c.dst.OnColumnSnapshot(msg.Columns)
		case KindRows:
			c.dst.OnRowSnapshot(msg.Rows)
		}
	}
}
