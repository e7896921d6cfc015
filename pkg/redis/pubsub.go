package redis

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publish sends value as JSON on channel. No-op when Redis is disabled.
func (c *Client) Publish(ctx context.Context, channel string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("publish marshal failed: %w", err)
	}

	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", channel, err)
	}
	return nil
}

// Subscribe streams raw payloads received on channel until ctx is done.
// The returned channel is closed when the subscription ends.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("redis is disabled")
	}

	sub := c.rdb.Subscribe(ctx, channel)
	// Wait for confirmation so callers know the subscription is live
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s failed: %w", channel, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
