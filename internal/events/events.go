// Package events carries index events between processes over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/eqindex/internal/contracts"
	"github.com/wonny/eqindex/pkg/logger"
	"github.com/wonny/eqindex/pkg/redis"
)

// Channel is the Redis channel for index events
const Channel = "eqindex:events"

// Publisher sends index events to Redis.
// With Redis disabled every publish is a no-op.
// ⭐ SSOT: 지수 이벤트 발행은 여기서만
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *logger.Logger
}

var _ contracts.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher on Channel
func NewPublisher(client *redis.Client, log *logger.Logger) *Publisher {
	return &Publisher{client: client, channel: Channel, logger: log}
}

// Publish sends one event
func (p *Publisher) Publish(ctx context.Context, event contracts.IndexEvent) error {
	if !p.client.Enabled() {
		return nil
	}
	if err := p.client.Publish(ctx, p.channel, event); err != nil {
		return err
	}

	p.logger.WithFields(map[string]interface{}{
		"type":   event.Type,
		"rows":   event.Rows,
		"run_id": event.RunID,
	}).Debug("Index event published")
	return nil
}

// Subscribe streams decoded events until ctx is done.
// Malformed payloads are logged and dropped.
func Subscribe(ctx context.Context, client *redis.Client, log *logger.Logger) (<-chan contracts.IndexEvent, error) {
	raw, err := client.Subscribe(ctx, Channel)
	if err != nil {
		return nil, err
	}

	out := make(chan contracts.IndexEvent, 16)
	go func() {
		defer close(out)
		for payload := range raw {
			event, err := Decode(payload)
			if err != nil {
				log.WithError(err).Warn("Dropping malformed index event")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Decode parses one event payload
func Decode(payload []byte) (contracts.IndexEvent, error) {
	var event contracts.IndexEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return contracts.IndexEvent{}, fmt.Errorf("decode index event: %w", err)
	}
	if event.Type == "" {
		return contracts.IndexEvent{}, fmt.Errorf("decode index event: missing type")
	}
	return event, nil
}
