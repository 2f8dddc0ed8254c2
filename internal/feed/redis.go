package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// refreshChannel is the pub/sub channel all refresh notices travel on.
// Per-table channels would force a resubscribe whenever a table appears,
// so a single channel is used and subscribers filter locally.
const refreshChannel = "gridsync:refresh"

// RedisNotifier broadcasts refresh notices through Redis pub/sub so
// sessions in other processes see mutations promptly.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisNotifier wraps an existing Redis client. The caller owns the
// client's lifecycle.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// Publish sends r to the shared refresh channel.
func (n *RedisNotifier) Publish(ctx context.Context, r Refresh) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("publish refresh: %w", err)
	}
	if err := n.client.Publish(ctx, refreshChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish refresh: %w", err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription and decodes notices onto the
// returned channel. Malformed payloads are logged and skipped.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan Refresh, func(), error) {
	pubsub := n.client.Subscribe(ctx, refreshChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe refresh: %w", err)
	}

	out := make(chan Refresh, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var r Refresh
			if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
				n.logger.Warn("dropping malformed refresh notice", "error", err)
				continue
			}
			select {
			case out <- r:
			default:
				n.logger.Debug("refresh subscriber lagging, dropping notice",
					"table", r.Table, "kind", r.Kind)
			}
		}
	}()

	cancel := func() { pubsub.Close() }
	return out, cancel, nil
}
